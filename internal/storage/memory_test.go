package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marksfx/content-agent/internal/models"
)

func TestMemoryAccountLifecycle(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	account := &models.MonitoredAccount{
		TwitterHandle: "cbn_updates",
		Category:      models.CategoryNigeria,
	}
	require.NoError(t, s.CreateAccount(ctx, account))
	assert.Equal(t, 2, account.Priority)

	// Handle uniqueness is case-insensitive, matching the schema.
	err := s.CreateAccount(ctx, &models.MonitoredAccount{TwitterHandle: "CBN_Updates"})
	assert.Error(t, err)

	got, err := s.GetAccountByHandle(ctx, "CBN_UPDATES")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, s.DeactivateAccount(ctx, account.ID))
	active, err := s.ActiveAccounts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, active)

	// Deactivated, not deleted.
	got, err = s.GetAccountByHandle(ctx, "cbn_updates")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
}

func TestMemorySaveTweetKeepsFirstWrite(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	first := &models.Tweet{TweetID: "100", Content: "original"}
	require.NoError(t, s.SaveTweet(ctx, first))
	require.NoError(t, s.SaveTweet(ctx, &models.Tweet{TweetID: "100", Content: "rewrite"}))

	require.NoError(t, s.MarkTweetNotified(ctx, "100"))
	assert.Equal(t, "original", s.tweets["100"].Content)
	assert.True(t, s.tweets["100"].Notified)
}

func TestMemoryVoiceSamplesScopedToPillar(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	macro := &models.MonitoredAccount{TwitterHandle: "macro_voice", IsVoiceReference: true,
		VoicePillars: []models.Pillar{models.PillarMarketCommentary}}
	require.NoError(t, s.CreateAccount(ctx, macro))
	require.NoError(t, s.ReplaceVoiceSamples(ctx, macro.ID, []models.VoiceSample{
		{TweetID: "1", Content: "macro take"},
	}))

	universal := &models.MonitoredAccount{TwitterHandle: "all_voice", IsVoiceReference: true}
	require.NoError(t, s.CreateAccount(ctx, universal))
	require.NoError(t, s.ReplaceVoiceSamples(ctx, universal.ID, []models.VoiceSample{
		{TweetID: "2", Content: "general take"},
	}))

	samples, err := s.VoiceSamplesForPillar(ctx, models.PillarMarketCommentary, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	// A voice tagged to another pillar is excluded; the untagged one is not.
	samples, err = s.VoiceSamplesForPillar(ctx, models.PillarEducation, 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "general take", samples[0].Content)
}

func TestMemoryRecentTopicsNewestFirst(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	for _, topic := range []string{"first", "second", "third"} {
		require.NoError(t, s.AddContentHistory(ctx, models.ContentHistory{
			Type: models.ContentWeeklyPost, Pillar: models.PillarEducation, Topic: topic, Content: "x",
		}))
	}

	topics, err := s.RecentTopics(ctx, models.PillarEducation, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second"}, topics)
}

func TestMemoryRSSSourceKeywordsRoundTrip(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	source := &models.RSSSource{
		Name:     "Nairametrics",
		URL:      "https://feed.example/naira",
		Category: models.CategoryNigeria,
		Keywords: []string{"naira", "CBN"},
	}
	require.NoError(t, s.CreateRSSSource(ctx, source))

	sources, err := s.ActiveRSSSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, []string{"naira", "CBN"}, sources[0].Keywords)
}

func TestFormatFeedback(t *testing.T) {
	assert.Empty(t, FormatFeedback(nil))

	got := FormatFeedback([]models.Feedback{
		{Pillar: models.PillarMarketCommentary, FeedbackText: "Keep posts under 200 characters"},
	})
	assert.Contains(t, got, "market commentary")
	assert.Contains(t, got, "Keep posts under 200 characters")
}
