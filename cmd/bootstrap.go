package cmd

import (
	"context"
	"errors"
	"fmt"

	"eksiblock/features/blocking"
	"eksiblock/features/cache"
	"eksiblock/features/commands"
	"eksiblock/features/favorites"
	"eksiblock/features/history"
	"eksiblock/features/relations"
	"eksiblock/features/store"
	"eksiblock/internal/collector"
	eksicolly "eksiblock/internal/colly"
	"eksiblock/internal/config"
	"eksiblock/internal/db"

	"github.com/rs/zerolog/log"
)

var ErrConfigNotLoaded = errors.New("config not loaded")

// services groups the long lived components a single invocation works with.
type services struct {
	cfg      *config.Config
	store    *store.BadgerStore
	known    *cache.KnownUsers
	history  *history.SQLiteRepository
	metrics  *collector.MetricsCollector
	workflow *blocking.Workflow
	executor *commands.Executor
}

// bootstrap opens the stores and builds the workflow on top of them.
func bootstrap(ctx context.Context, notifier blocking.Notifier) (*services, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, ErrConfigNotLoaded
	}

	if cfg.Site.Cookie == "" {
		log.Warn().Msg("No session cookie configured, block requests will be rejected by the site")
	}

	kv, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	known, err := cache.NewKnownUsers(ctx, kv, cfg.Store.UseBloom)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to load known users: %w", err)
	}

	conn, err := db.GetDB()
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	hist := history.NewSQLiteRepository(conn)

	client, err := eksicolly.InitCollyClient()
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	fetcher := favorites.NewFetcher(client, cfg.Site,
		favorites.WithRetries(cfg.Blocker.FetchRetries),
		favorites.WithRetryInterval(cfg.Blocker.RetryDelay),
	)
	blocker := relations.NewClient(client)
	mc := collector.InitMetricsCollector()

	if notifier == nil {
		notifier = blocking.LogNotifier{Logger: log.Logger}
	}

	wf := blocking.NewWorkflow(fetcher, blocker, kv, blocking.SettingsFromConfig(cfg.Blocker),
		blocking.WithNotifier(notifier),
		blocking.WithRecorder(mc),
		blocking.WithHistory(hist),
		blocking.WithKnownUsers(known),
		blocking.WithLogger(log.Logger),
	)

	return &services{
		cfg:      cfg,
		store:    kv,
		known:    known,
		history:  hist,
		metrics:  mc,
		workflow: wf,
		executor: commands.NewExecutor(wf),
	}, nil
}

// Close pauses any running loop, then releases the stores.
func (s *services) Close() {
	s.workflow.Close()
	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close badger store")
	}
	db.DeferClose()
}
