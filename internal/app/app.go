// Package app initializes and holds the long-lived services of a run and
// drives the crawl over them.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/catalog/spotify"
	"github.com/JakeFAU/music-crawler/internal/clock/system"
	"github.com/JakeFAU/music-crawler/internal/config"
	"github.com/JakeFAU/music-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/music-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/music-crawler/internal/id/uuid"
	"github.com/JakeFAU/music-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/music-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/music-crawler/internal/storage"
	"github.com/JakeFAU/music-crawler/internal/storage/gcs"
	"github.com/JakeFAU/music-crawler/internal/storage/local"
	"github.com/JakeFAU/music-crawler/internal/storage/memory"
	"github.com/JakeFAU/music-crawler/internal/storage/postgres"
	"github.com/JakeFAU/music-crawler/internal/store"
)

// App holds the shared services for one process. It is built once at
// startup and closed when the command finishes.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     store.Repository
	archive   storage.BlobStore
	publisher Publisher
	clock     Clock
	ids       crawler.IDGenerator

	closers []func() error
}

// New initializes the store, the page archive, and the run publisher from
// cfg. Backends that are not configured are left nil, except the store,
// which falls back to an in-memory repository when no DSN is set.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("pubsub", a.publisher != nil),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set; entities are kept in memory for this run only")
		a.store = memory.NewRepository()
		return nil
	}
	repo, err := postgres.Open(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxConns),
		Migrate:  a.cfg.DB.Migrate,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = repo
	a.closers = append(a.closers, func() error { repo.Close(); return nil })
	return nil
}

func (a *App) openArchive(ctx context.Context) error {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.StorageNone:
		return nil
	case config.StorageMemory:
		a.archive = memory.NewBlobStore()
	case config.StorageLocal:
		bs, err := local.New(sc.LocalDir)
		if err != nil {
			return fmt.Errorf("open local archive: %w", err)
		}
		a.archive = bs
	case config.StorageGCS:
		bs, err := gcs.Open(ctx, sc.GCSBucket)
		if err != nil {
			return fmt.Errorf("open gcs archive: %w", err)
		}
		a.archive = bs
		a.closers = append(a.closers, bs.Close)
	default:
		return fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	pc := a.cfg.PubSub
	if pc.TopicName == "" {
		return nil
	}
	pub, err := pubsubpublisher.Open(ctx, pc.ProjectID, pc.TopicName)
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the entity repository.
func (a *App) Store() store.Repository { return a.store }

// Archive returns the raw page archive, or nil when archiving is disabled.
func (a *App) Archive() storage.BlobStore { return a.archive }

// Publisher returns the run summary publisher, or nil.
func (a *App) Publisher() Publisher { return a.publisher }

// NewRunID returns a fresh run identifier.
func (a *App) NewRunID() (string, error) { return a.ids.NewID() }

// CrawlDeps builds the page fetcher and catalog client for a crawl run.
// Only the crawl command calls it, since the aggregate command does not talk
// to either site.
func (a *App) CrawlDeps(ctx context.Context, runID string) (crawler.Deps, error) {
	if err := a.cfg.RequireSpotify(); err != nil {
		return crawler.Deps{}, err
	}
	cc := a.cfg.Crawler

	opts := []collyfetcher.Option{
		collyfetcher.WithLimiter(ratelimit.New(ratelimit.Config{Interval: cc.Delay(), Burst: cc.Burst})),
		collyfetcher.WithLogger(a.logger.Named("fetcher")),
	}
	if cc.ArchivePages && a.archive != nil {
		opts = append(opts, collyfetcher.WithArchive(a.archive))
	}
	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent:          cc.UserAgent,
		RespectRobots:      cc.RespectRobots,
		Timeout:            cc.Timeout(),
		ArchivePrefix:      a.cfg.Storage.Prefix,
		ArchiveContentType: a.cfg.Storage.ContentType,
		RunID:              runID,
	}, opts...)

	sc := a.cfg.Spotify
	catalog, err := spotify.New(ctx, spotify.Config{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		TokenURL:     sc.TokenURL,
		APIURL:       sc.APIURL,
		Market:       sc.Market,
	},
		spotify.WithLimiter(ratelimit.PerSecond(sc.RequestsPerSecond, 1)),
		spotify.WithLogger(a.logger.Named("spotify")),
	)
	if err != nil {
		return crawler.Deps{}, fmt.Errorf("init catalog: %w", err)
	}

	return crawler.Deps{
		Pages:                  pages,
		Catalog:                catalog,
		Store:                  a.store,
		Logger:                 a.logger.Named("crawler").With(zap.String("run_id", runID)),
		SiteURL:                cc.SiteURL,
		ConcurrentDependencies: cc.ConcurrentDependencies,
	}, nil
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error shutting down services", zap.Error(err))
	}
	_ = a.logger.Sync()
}
