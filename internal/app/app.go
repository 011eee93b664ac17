// Package app wires configuration into a ready-to-run discovery service.
// Both cmd/server and cmd/worker build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/smart-affiliate/internal/config"
	"github.com/ignite/smart-affiliate/internal/digest"
	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/distlock"
	"github.com/ignite/smart-affiliate/internal/pkg/httpretry"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
	"github.com/ignite/smart-affiliate/internal/registry"
	"github.com/ignite/smart-affiliate/internal/repository/memory"
	"github.com/ignite/smart-affiliate/internal/repository/postgres"
	"github.com/ignite/smart-affiliate/internal/sources"
	"github.com/ignite/smart-affiliate/internal/sources/adstransparency"
	"github.com/ignite/smart-affiliate/internal/sources/channelfeed"
	"github.com/ignite/smart-affiliate/internal/sources/youtube"
	"github.com/ignite/smart-affiliate/internal/storage"
	"github.com/ignite/smart-affiliate/internal/worker"
)

// RunLockKey names the distributed lock guarding discovery runs.
const RunLockKey = "discovery-run"

// RunStore records run reports and lists recent ones.
type RunStore interface {
	discovery.RunHistory
	RecentRuns(ctx context.Context, limit int) ([]discovery.RunReport, error)
}

// App holds the long-lived collaborators of a process.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Storage   *storage.Storage
	Runs      RunStore
	Collector *sources.Collector
	Service   *discovery.Service
	Digest    *digest.Renderer

	log *logger.Logger
}

// ConfigureLogging applies the logging section to the process logger.
func ConfigureLogging(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactSecrets(cfg.RedactSecrets)
}

// Build connects optional backends and assembles the discovery service.
// Missing Postgres or Redis configuration falls back to in-process stores.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, log: logger.New("app")}

	if cfg.Database.URL != "" {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.log.Info("connected to database", "database_url", logger.RedactURL(cfg.Database.URL))
	}

	if cfg.Redis.URL != "" {
		rdb, err := openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		a.log.Info("connected to redis", "redis_url", logger.RedactURL(cfg.Redis.URL))
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	a.Storage = store
	a.Runs = newRunStore(a.DB, store)

	renderer, err := newDigest(cfg.Digest)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Digest = renderer

	adapters := BuildAdapters(ctx, cfg)
	a.Collector = sources.NewCollector(adapters, cfg.Sources.Timeout(), cfg.Sources.MaxConcurrency)

	repo := a.repository(ctx)
	a.Service = discovery.NewService(a.Collector, discovery.Options{
		Registry:   a.registry(),
		Repository: repo,
		Exporter:   store,
		History:    a.Runs,
		Lock: func() distlock.DistLock {
			return distlock.NewLock(a.Redis, a.DB, RunLockKey, cfg.Schedule.LockTTL())
		},
	})

	a.log.Info("discovery service ready", "adapters", len(adapters), "storage", cfg.Storage.Type,
		"postgres", a.DB != nil, "redis", a.Redis != nil)
	return a, nil
}

// StartScheduler creates and starts the cron scheduler for runner. Both
// parse and start failures are returned.
func StartScheduler(runner worker.Runner, cfg config.ScheduleConfig) (*worker.DiscoveryScheduler, error) {
	scheduler, err := worker.NewDiscoveryScheduler(runner, cfg.Cron, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	return scheduler, nil
}

// BuildAdapters creates every enabled source adapter. Adapters that cannot
// be configured are logged and skipped.
func BuildAdapters(ctx context.Context, cfg *config.Config) []sources.Adapter {
	log := logger.New("app")
	var adapters []sources.Adapter

	if cfg.YouTube.Enabled {
		yt, err := youtube.New(ctx, youtube.Config{
			APIKey:      cfg.YouTube.APIKey,
			AccessToken: cfg.YouTube.AccessToken,
			Queries:     cfg.YouTube.Queries,
			MaxResults:  cfg.YouTube.MaxResults,
			Lookback:    cfg.YouTube.Lookback(),
			RegionCode:  cfg.YouTube.RegionCode,
		})
		if err != nil {
			log.Warn("youtube adapter disabled", "error", err)
		} else {
			adapters = append(adapters, yt)
		}
	}

	if cfg.ChannelFeeds.Enabled && len(cfg.ChannelFeeds.Channels) > 0 {
		channels := make([]channelfeed.Channel, 0, len(cfg.ChannelFeeds.Channels))
		for _, ch := range cfg.ChannelFeeds.Channels {
			channels = append(channels, channelfeed.Channel{ID: ch.ID, Subscribers: ch.Subscribers})
		}
		adapters = append(adapters, channelfeed.New(channelfeed.Config{
			FeedURL:  cfg.ChannelFeeds.FeedURL,
			Channels: channels,
			Lookback: cfg.ChannelFeeds.Lookback(),
		}, nil))
	}

	if cfg.AdsTransparency.Enabled {
		if cfg.AdsTransparency.APIKey == "" {
			log.Warn("ads transparency adapter disabled", "error", "missing api key")
		} else {
			client := httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, cfg.AdsTransparency.MaxRetries)
			adapters = append(adapters, adstransparency.New(adstransparency.Config{
				APIKey:             cfg.AdsTransparency.APIKey,
				BaseURL:            cfg.AdsTransparency.BaseURL,
				Engine:             cfg.AdsTransparency.Engine,
				Region:             cfg.AdsTransparency.Region,
				Queries:            cfg.AdsTransparency.Queries,
				ActiveWindow:       cfg.AdsTransparency.ActiveWindow(),
				CostPerCreativeDay: cfg.AdsTransparency.CostPerCreativeDay,
			}, client))
		}
	}
	return adapters
}

// newRunStore keeps run history in Postgres when a database is configured,
// otherwise in the snapshot storage (DynamoDB or local files).
func newRunStore(db *sql.DB, store *storage.Storage) RunStore {
	if db != nil {
		return postgres.NewRunRepo(db)
	}
	return store
}

func (a *App) registry() opportunity.SeenRegistry {
	if a.Redis != nil {
		return registry.NewRedis(a.Redis, a.Config.Redis.KeyPrefix, a.Config.Redis.SeenTTL())
	}
	return registry.NewMemory()
}

// repository returns the Postgres store, or an in-memory store warmed from
// the latest exported snapshot.
func (a *App) repository(ctx context.Context) discovery.Repository {
	if a.DB != nil {
		return postgres.NewProductRepo(a.DB)
	}

	repo := memory.NewProductRepo()
	snap, err := a.Storage.LatestSnapshot(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return repo
	}
	if err != nil {
		a.log.Warn("could not load latest snapshot", "error", err)
		return repo
	}
	for _, p := range snap.Products {
		if err := repo.Put(ctx, p); err != nil {
			a.log.Warn("could not restore product", "key", p.Key(), "error", err)
		}
	}
	a.log.Info("restored products from snapshot", "run_id", snap.Report.RunID, "products", len(snap.Products))
	return repo
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warn("closing redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.log.Warn("closing database", "error", err)
		}
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func newDigest(cfg config.DigestConfig) (*digest.Renderer, error) {
	var source string
	if cfg.TemplatePath != "" {
		data, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read digest template: %w", err)
		}
		source = string(data)
	}
	renderer, err := digest.New(cfg.TopN, source)
	if err != nil {
		return nil, err
	}
	return renderer, nil
}
