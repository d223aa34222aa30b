package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/dedup"
	"github.com/marksfx/content-agent/internal/models"
	"github.com/marksfx/content-agent/internal/storage"
)

type fakeFeedFetcher struct {
	items map[string][]FeedItem
	err   error
}

func (f *fakeFeedFetcher) Fetch(_ context.Context, url string) ([]FeedItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[url], nil
}

func seedRSSSource(t *testing.T, store storage.Storage, name, url string, priority int) models.RSSSource {
	t.Helper()
	source := models.RSSSource{
		Name:     name,
		URL:      url,
		Category: models.CategoryNigeria,
		Priority: priority,
	}
	require.NoError(t, store.CreateRSSSource(context.Background(), &source))
	return source
}

func TestRSSCycleAlertsOnRelevantItems(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRSSSource(t, store, "Nairametrics", "https://feed.example/naira", 2)

	fetcher := &fakeFeedFetcher{items: map[string][]FeedItem{
		"https://feed.example/naira": {
			{GUID: "g1", Title: "CBN holds rates", Link: "https://n.example/1", Summary: "Rate decision"},
			{GUID: "g2", Title: "Celebrity gossip", Link: "https://n.example/2"},
		},
	}}
	scorer := &fakeScorer{scores: map[string]agent.Score{
		"CBN holds rates\n\nRate decision": {Value: 0.8, Type: models.RelevanceNews, SuggestedContent: "draft"},
	}}
	notifier := &captureNotifier{}

	m := NewRSSMonitor(store, fetcher, scorer, dedup.NewMemoryStore(), notifier, testThresholds(), zap.NewNop())
	summary := m.RunCycle(context.Background())

	assert.Equal(t, 1, summary.SourcesChecked)
	assert.Equal(t, 2, summary.ItemsFound)
	assert.Equal(t, 1, summary.AlertsSent)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "Nairametrics", notifier.alerts[0].SourceName)
	assert.Equal(t, "https://n.example/1", notifier.alerts[0].Link)
}

func TestRSSCycleSourceKeywordsPreFilter(t *testing.T) {
	store := storage.NewMemoryStorage()
	source := models.RSSSource{
		Name:     "Nairametrics",
		URL:      "https://feed.example/naira",
		Category: models.CategoryNigeria,
		Keywords: []string{"naira", "CBN"},
	}
	require.NoError(t, store.CreateRSSSource(context.Background(), &source))

	fetcher := &fakeFeedFetcher{items: map[string][]FeedItem{
		"https://feed.example/naira": {
			{GUID: "g1", Title: "CBN holds rates", Link: "https://n.example/1"},
			{GUID: "g2", Title: "Celebrity gossip", Summary: "Nothing monetary", Link: "https://n.example/2"},
		},
	}}
	scorer := &fakeScorer{scores: map[string]agent.Score{
		"CBN holds rates": {Value: 0.9, Type: models.RelevanceNews},
	}}
	notifier := &captureNotifier{}

	m := NewRSSMonitor(store, fetcher, scorer, dedup.NewMemoryStore(), notifier, testThresholds(), zap.NewNop())
	summary := m.RunCycle(context.Background())

	// The non-matching item is dropped before any scoring happens.
	assert.Equal(t, 1, scorer.calls)
	assert.Equal(t, 1, summary.ItemsFound)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "CBN holds rates", notifier.alerts[0].Headline)
}

func TestRSSCycleNoKeywordsTakesEverything(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRSSSource(t, store, "Nairametrics", "https://feed.example/naira", 2)

	fetcher := &fakeFeedFetcher{items: map[string][]FeedItem{
		"https://feed.example/naira": {
			{GUID: "g1", Title: "CBN holds rates", Link: "https://n.example/1"},
			{GUID: "g2", Title: "Celebrity gossip", Link: "https://n.example/2"},
		},
	}}
	scorer := &fakeScorer{}

	m := NewRSSMonitor(store, fetcher, scorer, dedup.NewMemoryStore(), &captureNotifier{}, testThresholds(), zap.NewNop())
	summary := m.RunCycle(context.Background())

	assert.Equal(t, 2, scorer.calls)
	assert.Equal(t, 2, summary.ItemsFound)
}

func TestRSSCycleRepeatGUIDNeverAlertsTwice(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRSSSource(t, store, "Nairametrics", "https://feed.example/naira", 2)

	fetcher := &fakeFeedFetcher{items: map[string][]FeedItem{
		"https://feed.example/naira": {
			{GUID: "sticky", Title: "CBN holds rates", Link: "https://n.example/1"},
		},
	}}
	scorer := &fakeScorer{scores: map[string]agent.Score{
		"CBN holds rates": {Value: 0.9, Type: models.RelevanceNews},
	}}
	notifier := &captureNotifier{}

	m := NewRSSMonitor(store, fetcher, scorer, dedup.NewMemoryStore(), notifier, testThresholds(), zap.NewNop())

	// Feeds keep old entries in the window; three cycles see the same guid.
	for i := 0; i < 3; i++ {
		m.RunCycle(context.Background())
	}
	assert.Len(t, notifier.alerts, 1)
}

func TestRSSCycleIsolatesSourceFailures(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRSSSource(t, store, "Broken", "https://feed.example/broken", 2)

	fetcher := &fakeFeedFetcher{err: errors.New("feed 502")}
	notifier := &captureNotifier{}

	m := NewRSSMonitor(store, fetcher, &fakeScorer{}, dedup.NewMemoryStore(), notifier, testThresholds(), zap.NewNop())
	summary := m.RunCycle(context.Background())

	assert.Equal(t, 1, summary.SourcesChecked)
	assert.Equal(t, 1, summary.Errors)
	assert.Empty(t, notifier.alerts)
}

func TestRSSCycleUpdatesCheckedTimestamp(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRSSSource(t, store, "Nairametrics", "https://feed.example/naira", 2)

	fetcher := &fakeFeedFetcher{items: map[string][]FeedItem{}}
	m := NewRSSMonitor(store, fetcher, &fakeScorer{}, dedup.NewMemoryStore(), &captureNotifier{}, testThresholds(), zap.NewNop())
	m.RunCycle(context.Background())

	sources, err := store.ActiveRSSSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.NotNil(t, sources[0].LastCheckedAt)
}

func TestRSSCycleNotifierFailureLeavesItemUnnotified(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRSSSource(t, store, "Nairametrics", "https://feed.example/naira", 2)

	fetcher := &fakeFeedFetcher{items: map[string][]FeedItem{
		"https://feed.example/naira": {
			{GUID: "g1", Title: "CBN holds rates", Link: "https://n.example/1"},
		},
	}}
	scorer := &fakeScorer{scores: map[string]agent.Score{
		"CBN holds rates": {Value: 0.9, Type: models.RelevanceNews},
	}}
	notifier := &captureNotifier{err: errors.New("telegram down")}

	m := NewRSSMonitor(store, fetcher, scorer, dedup.NewMemoryStore(), notifier, testThresholds(), zap.NewNop())
	summary := m.RunCycle(context.Background())

	assert.Zero(t, summary.AlertsSent)
	assert.Equal(t, 1, summary.ItemsFound, "item is still recorded when delivery fails")
}
