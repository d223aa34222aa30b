package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the two polling loops on independent intervals. Each
// entry skips its tick if the previous run is still going, so a slow
// cycle delays only its own loop.
type Scheduler struct {
	cron    *cron.Cron
	twitter *TwitterMonitor
	rss     *RSSMonitor
	logger  *zap.Logger
}

func NewScheduler(tw *TwitterMonitor, rss *RSSMonitor, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		twitter: tw,
		rss:     rss,
		logger:  logger,
	}
}

// Start registers both loops and begins polling. Each loop also runs one
// immediate cycle so a fresh process does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context, twitterInterval, rssInterval time.Duration) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", twitterInterval), func() {
		summary := s.twitter.RunCycle(ctx)
		s.logger.Info("twitter cycle complete",
			zap.Int("accounts", summary.SourcesChecked),
			zap.Int("tweets", summary.ItemsFound),
			zap.Int("alerts", summary.AlertsSent),
			zap.Int("errors", summary.Errors))
	})
	if err != nil {
		return fmt.Errorf("schedule twitter loop: %w", err)
	}

	_, err = s.cron.AddFunc(fmt.Sprintf("@every %s", rssInterval), func() {
		summary := s.rss.RunCycle(ctx)
		s.logger.Info("rss cycle complete",
			zap.Int("sources", summary.SourcesChecked),
			zap.Int("items", summary.ItemsFound),
			zap.Int("alerts", summary.AlertsSent),
			zap.Int("errors", summary.Errors))
	})
	if err != nil {
		return fmt.Errorf("schedule rss loop: %w", err)
	}

	s.cron.Start()

	go func() {
		s.twitter.RunCycle(ctx)
		s.rss.RunCycle(ctx)
	}()

	return nil
}

// Stop halts scheduling and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
