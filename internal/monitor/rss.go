package monitor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/dedup"
	"github.com/marksfx/content-agent/internal/models"
	"github.com/marksfx/content-agent/internal/storage"
)

// RSSMonitor polls feed sources for new entries, scores them, and alerts
// on the relevant ones.
type RSSMonitor struct {
	store      storage.Storage
	fetcher    FeedFetcher
	scorer     RelevanceScorer
	dedup      dedup.Store
	notifier   Notifier
	thresholds Thresholds
	logger     *zap.Logger
}

func NewRSSMonitor(store storage.Storage, fetcher FeedFetcher, scorer RelevanceScorer, dd dedup.Store, notifier Notifier, thresholds Thresholds, logger *zap.Logger) *RSSMonitor {
	return &RSSMonitor{
		store:      store,
		fetcher:    fetcher,
		scorer:     scorer,
		dedup:      dd,
		notifier:   notifier,
		thresholds: thresholds,
		logger:     logger,
	}
}

// RunCycle checks every active feed once, isolating per-source failures.
func (m *RSSMonitor) RunCycle(ctx context.Context) CycleSummary {
	var summary CycleSummary

	sources, err := m.store.ActiveRSSSources(ctx)
	if err != nil {
		m.logger.Error("failed to load rss sources", zap.Error(err))
		summary.Errors++
		return summary
	}

	for _, source := range sources {
		found, alerts, err := m.checkSource(ctx, source)
		summary.SourcesChecked++
		summary.ItemsFound += found
		summary.AlertsSent += alerts
		if err != nil {
			summary.Errors++
			m.logger.Warn("feed check failed",
				zap.Error(err),
				zap.String("source", source.Name))
		}
	}
	return summary
}

func (m *RSSMonitor) checkSource(ctx context.Context, source models.RSSSource) (found, alerts int, err error) {
	items, err := m.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		isNew, err := m.dedup.IsNew(ctx, models.SourceRSS, item.GUID)
		if err != nil {
			m.logger.Warn("dedup check failed, skipping item",
				zap.Error(err),
				zap.String("guid", item.GUID))
			continue
		}
		if !isNew {
			continue
		}

		// Per-source keyword pre-filter: items mentioning none of the
		// source's keywords are dropped before any scoring.
		if !matchesKeywords(source.Keywords, item) {
			continue
		}
		found++

		content := item.Title
		if item.Summary != "" {
			content += "\n\n" + item.Summary
		}
		score := m.scorer.Score(ctx, content, agent.SourceMeta{
			Type:     models.SourceRSS,
			Name:     source.Name,
			Category: source.Category,
		})

		record := &models.RSSItem{
			GUID:             item.GUID,
			SourceID:         source.ID,
			SourceName:       source.Name,
			Title:            item.Title,
			URL:              item.Link,
			Summary:          item.Summary,
			PublishedAt:      item.PublishedAt,
			RelevanceScore:   score.Value,
			RelevanceType:    score.Type,
			SuggestedContent: score.SuggestedContent,
		}
		if err := m.store.SaveRSSItem(ctx, record); err != nil {
			m.logger.Error("failed to save rss item",
				zap.Error(err),
				zap.String("guid", item.GUID))
			continue
		}

		if score.Type == models.RelevanceSkip || score.Value < m.thresholds.forPriority(source.Priority) {
			continue
		}

		alert := models.Alert{
			SourceType:    models.SourceRSS,
			SourceName:    source.Name,
			Category:      source.Category,
			Headline:      item.Title,
			Link:          item.Link,
			Score:         score.Value,
			RelevanceType: score.Type,
			SuggestedPost: score.SuggestedContent,
			PublishedAt:   item.PublishedAt,
		}
		if err := m.notifier.SendAlert(ctx, alert); err != nil {
			m.logger.Error("failed to send alert",
				zap.Error(err),
				zap.String("guid", item.GUID))
			continue
		}
		alerts++
		if err := m.store.MarkRSSItemNotified(ctx, item.GUID); err != nil {
			m.logger.Error("failed to mark rss item notified",
				zap.Error(err),
				zap.String("guid", item.GUID))
		}
	}

	// Cursor is the fetch timestamp, advanced regardless of filtering.
	if err := m.store.UpdateRSSSourceChecked(ctx, source.ID); err != nil {
		m.logger.Error("failed to update source checked time",
			zap.Error(err),
			zap.String("source", source.Name))
	}
	return found, alerts, nil
}

// matchesKeywords reports whether the item mentions any of the source's
// keywords. Sources with no keywords take everything.
func matchesKeywords(keywords []string, item FeedItem) bool {
	if len(keywords) == 0 {
		return true
	}
	content := strings.ToLower(item.Title + " " + item.Summary)
	for _, kw := range keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
