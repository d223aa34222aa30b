package monitor

import (
	"context"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/dedup"
	"github.com/marksfx/content-agent/internal/models"
	"github.com/marksfx/content-agent/internal/storage"
)

// TwitterMonitor polls monitored accounts for new tweets, scores them,
// and alerts on the relevant ones.
type TwitterMonitor struct {
	store      storage.Storage
	fetcher    TweetFetcher
	scorer     RelevanceScorer
	dedup      dedup.Store
	notifier   Notifier
	thresholds Thresholds
	logger     *zap.Logger
}

func NewTwitterMonitor(store storage.Storage, fetcher TweetFetcher, scorer RelevanceScorer, dd dedup.Store, notifier Notifier, thresholds Thresholds, logger *zap.Logger) *TwitterMonitor {
	return &TwitterMonitor{
		store:      store,
		fetcher:    fetcher,
		scorer:     scorer,
		dedup:      dd,
		notifier:   notifier,
		thresholds: thresholds,
		logger:     logger,
	}
}

// RunCycle checks every active account once. A single account's failure
// is isolated: it is logged and the cycle moves on.
func (m *TwitterMonitor) RunCycle(ctx context.Context) CycleSummary {
	var summary CycleSummary

	accounts, err := m.store.ActiveAccounts(ctx, "")
	if err != nil {
		m.logger.Error("failed to load monitored accounts", zap.Error(err))
		summary.Errors++
		return summary
	}

	for _, account := range accounts {
		if account.IsVoiceReference && account.Category == "" {
			continue
		}
		found, alerts, err := m.checkAccount(ctx, account)
		summary.SourcesChecked++
		summary.ItemsFound += found
		summary.AlertsSent += alerts
		if err != nil {
			summary.Errors++
			m.logger.Warn("account check failed",
				zap.Error(err),
				zap.String("handle", account.TwitterHandle))
		}
	}
	return summary
}

func (m *TwitterMonitor) checkAccount(ctx context.Context, account models.MonitoredAccount) (found, alerts int, err error) {
	twitterID := account.TwitterID
	if twitterID == "" {
		user, err := m.fetcher.GetUserByUsername(ctx, account.TwitterHandle)
		if err != nil {
			return 0, 0, err
		}
		if user == nil {
			m.logger.Warn("monitored account not found on twitter",
				zap.String("handle", account.TwitterHandle))
			return 0, 0, nil
		}
		twitterID = user.ID
	}

	tweets, err := m.fetcher.GetUserTweets(ctx, twitterID, account.LastTweetID, 10)
	if err != nil {
		return 0, 0, err
	}

	latestID := account.LastTweetID
	for _, tw := range tweets {
		if newerTweetID(tw.ID, latestID) {
			latestID = tw.ID
		}

		isNew, err := m.dedup.IsNew(ctx, models.SourceTwitter, tw.ID)
		if err != nil {
			// Fail closed: an unreachable dedup store means no emission,
			// never a possible duplicate alert.
			m.logger.Warn("dedup check failed, skipping tweet",
				zap.Error(err),
				zap.String("tweet_id", tw.ID))
			continue
		}
		if !isNew {
			continue
		}
		found++

		score := m.scorer.Score(ctx, tw.Text, agent.SourceMeta{
			Type:     models.SourceTwitter,
			Name:     account.TwitterHandle,
			Category: account.Category,
		})

		record := &models.Tweet{
			TweetID:          tw.ID,
			AccountID:        account.ID,
			AccountHandle:    account.TwitterHandle,
			Content:          tw.Text,
			TweetCreatedAt:   tw.CreatedAt,
			RelevanceScore:   score.Value,
			RelevanceType:    score.Type,
			SuggestedContent: score.SuggestedContent,
		}
		if err := m.store.SaveTweet(ctx, record); err != nil {
			m.logger.Error("failed to save tweet",
				zap.Error(err),
				zap.String("tweet_id", tw.ID))
			continue
		}

		if score.Type == models.RelevanceSkip || score.Value < m.thresholds.forPriority(account.Priority) {
			continue
		}

		alert := models.Alert{
			SourceType:    models.SourceTwitter,
			SourceName:    "@" + account.TwitterHandle,
			Category:      account.Category,
			Headline:      tw.Text,
			Score:         score.Value,
			RelevanceType: score.Type,
			SuggestedPost: score.SuggestedContent,
			FollowerCount: account.FollowerCount,
			PublishedAt:   tw.CreatedAt,
		}
		if err := m.notifier.SendAlert(ctx, alert); err != nil {
			m.logger.Error("failed to send alert",
				zap.Error(err),
				zap.String("tweet_id", tw.ID))
			continue
		}
		alerts++
		if err := m.store.MarkTweetNotified(ctx, tw.ID); err != nil {
			m.logger.Error("failed to mark tweet notified",
				zap.Error(err),
				zap.String("tweet_id", tw.ID))
		}
	}

	// The cursor advances past everything fetched, whatever scoring did,
	// so a bad cycle cannot cause a re-fetch storm.
	if latestID != account.LastTweetID {
		if err := m.store.UpdateAccountCursor(ctx, account.ID, latestID); err != nil {
			m.logger.Error("failed to advance cursor",
				zap.Error(err),
				zap.String("handle", account.TwitterHandle))
		}
	} else if err := m.store.UpdateAccountCursor(ctx, account.ID, ""); err != nil {
		m.logger.Error("failed to update last checked",
			zap.Error(err),
			zap.String("handle", account.TwitterHandle))
	}

	return found, alerts, nil
}

// newerTweetID compares snowflake ids numerically via length-then-lex.
func newerTweetID(candidate, current string) bool {
	if current == "" {
		return true
	}
	if len(candidate) != len(current) {
		return len(candidate) > len(current)
	}
	return candidate > current
}
