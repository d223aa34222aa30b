package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marksfx/content-agent/internal/agent"
	"github.com/marksfx/content-agent/internal/bot"
	"github.com/marksfx/content-agent/internal/dedup"
	"github.com/marksfx/content-agent/internal/intent"
	"github.com/marksfx/content-agent/internal/monitor"
	"github.com/marksfx/content-agent/internal/session"
	"github.com/marksfx/content-agent/internal/storage"
	"github.com/marksfx/content-agent/internal/twitter"
	"github.com/marksfx/content-agent/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize dedup store
	var dd dedup.Store
	if cfg.Redis.Addr != "" {
		logger.Info("Using Redis dedup store", zap.String("addr", cfg.Redis.Addr))
		dd, err = dedup.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		logger.Info("Using in-memory dedup store")
		dd = dedup.NewMemoryStore()
	}

	// Initialize LLM-backed components
	completer := agent.NewOpenAIClient(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		cfg.OpenAI.Timeout,
		logger,
	)
	scorer := agent.NewScorer(completer, logger)
	generator := agent.NewGenerator(completer, store, logger)
	extractor := agent.NewExtractor(completer, logger)
	parser := intent.NewParser(completer, logger)

	// Initialize draft sessions
	sessions := session.NewManager(
		generator,
		extractor,
		store,
		cfg.Session.Retention,
		cfg.Session.MaxVersions,
		logger,
	)
	sessions.StartJanitor(ctx, time.Hour)

	// Initialize bot
	twitterClient := twitter.NewClient(cfg.Twitter.BearerToken)
	b, err := bot.New(
		cfg.Telegram.Token,
		cfg.Telegram.ChannelID,
		store,
		parser,
		generator,
		sessions,
		twitterClient,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Initialize monitors
	thresholds := monitor.Thresholds{
		Default:      cfg.Monitor.AlertThreshold,
		HighPriority: cfg.Monitor.HighPriorityAlert,
	}
	twitterMonitor := monitor.NewTwitterMonitor(store, twitterClient, scorer, dd, b, thresholds, logger)
	rssMonitor := monitor.NewRSSMonitor(store, monitor.NewFeedFetcher(), scorer, dd, b, thresholds, logger)

	scheduler := monitor.NewScheduler(twitterMonitor, rssMonitor, logger)
	if err := scheduler.Start(ctx, cfg.Monitor.TwitterPollInterval, cfg.Monitor.RSSPollInterval); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
