package container

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"catalog/browser/internal/aggregator"
	"catalog/browser/internal/cache"
	"catalog/browser/internal/cli"
	"catalog/browser/internal/client"
	"catalog/browser/internal/config"
	"catalog/browser/internal/connectivity"
	"catalog/browser/internal/favorites"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Client     client.CatalogClient
	Store      cache.Store
	Favorites  *favorites.Manager
	Aggregator *aggregator.Aggregator
	Prober     *connectivity.Prober
	CLI        *cli.CLI

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized, reading
// commands from stdin
func New(cfg *config.Config) (*Container, error) {
	return NewWithIO(cfg, os.Stdin, os.Stdout)
}

// NewWithIO is New with the CLI bound to in and out
func NewWithIO(cfg *config.Config, in io.Reader, out io.Writer) (*Container, error) {
	container := &Container{}

	var store cache.Store
	switch cfg.Cache.Driver {
	case config.CacheDriverPostgres:
		db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		container.db = db

		store, err = cache.NewPostgresStore(context.Background(), db)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info("✅ Connected to PostgreSQL successfully")
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		// Test connection
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		container.redis = rdb

		store = cache.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
		log.Info("✅ Connected to Redis successfully")
	}

	container.wire(cfg, store, in, out)
	return container, nil
}

// wire builds everything above the cache store
func (c *Container) wire(cfg *config.Config, store cache.Store, in io.Reader, out io.Writer) {
	c.Config = cfg
	c.Store = store
	c.Client = client.NewCatalogClient(cfg.API)
	c.Favorites = favorites.NewManager(store)

	// The aggregator reports changes to the CLI, which is built afterwards
	var front *cli.CLI
	c.Aggregator = aggregator.New(c.Client, cache.NewSnapshotStore(store), c.Favorites, aggregator.Options{
		PageSize:       cfg.API.CategoryPageSize,
		SearchDebounce: cfg.Search.Debounce(),
		OnChange: func() {
			if front != nil {
				front.Notify()
			}
		},
	})
	front = cli.New(c.Aggregator, c.Client, in, out)
	c.CLI = front

	c.Prober = connectivity.NewProber(cfg.API.BaseURL,
		cfg.Connectivity.IntervalDuration(),
		cfg.Connectivity.TimeoutDuration())
}

// Run drives the browser until the CLI exits or ctx is cancelled. The first
// probe completes before any command is read.
func (c *Container) Run(ctx context.Context) error {
	online := c.Prober.Check(ctx)
	log.Infof("🌐 Initial connectivity: %s", connectivity.Describe(online))
	c.Aggregator.Mount(ctx, online)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Prober.Watch(ctx, func(online bool) {
			c.Aggregator.SetConnectivity(ctx, online)
		})
	})

	g.Go(func() error {
		defer cancel()
		return c.CLI.Run(ctx)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	c.Aggregator.Close()
	if err := c.Prober.Close(); err != nil {
		log.Warnf("⚠️ Failed to close connectivity prober: %v", err)
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
