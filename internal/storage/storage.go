package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/marksfx/content-agent/internal/models"
)

// Storage persists monitored sources, scored items, voice samples,
// feedback, and content history. Uniqueness of external ids (tweet_id,
// guid, twitter_handle, url) is enforced by the store.
type Storage interface {
	// Monitored accounts
	CreateAccount(ctx context.Context, account *models.MonitoredAccount) error
	GetAccountByHandle(ctx context.Context, handle string) (*models.MonitoredAccount, error)
	ActiveAccounts(ctx context.Context, category models.Category) ([]models.MonitoredAccount, error)
	VoiceReferences(ctx context.Context) ([]models.MonitoredAccount, error)
	SetVoiceReference(ctx context.Context, accountID string, isVoice bool, pillars []models.Pillar) error
	DeactivateAccount(ctx context.Context, accountID string) error
	UpdateAccountCursor(ctx context.Context, accountID, lastTweetID string) error
	KnownHandles(ctx context.Context) ([]string, error)

	// RSS sources
	CreateRSSSource(ctx context.Context, source *models.RSSSource) error
	ActiveRSSSources(ctx context.Context) ([]models.RSSSource, error)
	UpdateRSSSourceChecked(ctx context.Context, sourceID string) error

	// Scored items
	SaveTweet(ctx context.Context, tweet *models.Tweet) error
	MarkTweetNotified(ctx context.Context, tweetID string) error
	SaveRSSItem(ctx context.Context, item *models.RSSItem) error
	MarkRSSItemNotified(ctx context.Context, guid string) error

	// Voice samples
	ReplaceVoiceSamples(ctx context.Context, accountID string, samples []models.VoiceSample) error
	VoiceSamplesForPillar(ctx context.Context, pillar models.Pillar, limit int) ([]models.VoiceSample, error)

	// Feedback store
	AddFeedback(ctx context.Context, fb models.Feedback) error
	RecentFeedback(ctx context.Context, pillar models.Pillar, limit int) ([]models.Feedback, error)
	FeedbackForPrompt(ctx context.Context, pillar models.Pillar, limit int) (string, error)

	// Content history
	AddContentHistory(ctx context.Context, record models.ContentHistory) error
	RecentTopics(ctx context.Context, pillar models.Pillar, limit int) ([]string, error)

	Close() error
}

// FormatFeedback renders feedback records as a prompt block for
// generation. Empty input yields an empty string so prompts stay clean.
func FormatFeedback(items []models.Feedback) string {
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Confirmed style preferences\n")
	b.WriteString("Apply these to the content you generate:\n")
	for _, item := range items {
		pillarName := strings.ReplaceAll(string(item.Pillar), "_", " ")
		fmt.Fprintf(&b, "- [%s] %s\n", pillarName, item.FeedbackText)
	}
	return b.String()
}
