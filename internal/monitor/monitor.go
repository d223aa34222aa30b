package monitor

import (
	"context"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/models"
	"github.com/marksfx/content-agent/internal/twitter"
)

// Notifier delivers alerts to the chat surface.
type Notifier interface {
	SendAlert(ctx context.Context, alert models.Alert) error
}

// RelevanceScorer classifies one item. Satisfied by agent.Scorer.
type RelevanceScorer interface {
	Score(ctx context.Context, content string, meta agent.SourceMeta) agent.Score
}

// TweetFetcher is the slice of the Twitter client the poller uses.
type TweetFetcher interface {
	GetUserByUsername(ctx context.Context, username string) (*twitter.User, error)
	GetUserTweets(ctx context.Context, userID, sinceID string, maxResults int) ([]twitter.Tweet, error)
}

// Thresholds control when a scored item becomes an alert.
type Thresholds struct {
	// Default is the alert bar for priority 2 and 3 sources.
	Default float64
	// HighPriority is the lower bar for priority 1 sources.
	HighPriority float64
}

func (t Thresholds) forPriority(priority int) float64 {
	if priority == 1 {
		return t.HighPriority
	}
	return t.Default
}

// CycleSummary reports what one polling cycle did.
type CycleSummary struct {
	SourcesChecked int
	ItemsFound     int
	AlertsSent     int
	Errors         int
}
