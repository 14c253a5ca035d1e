package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"buildprice/priceworker/config"
	"buildprice/priceworker/helpers"
	"buildprice/priceworker/internal"
	"buildprice/priceworker/internal/crawler"
	"buildprice/priceworker/logger"
	"buildprice/priceworker/services/cache"
	"buildprice/priceworker/services/publisher"
	"buildprice/priceworker/services/rates"
	"buildprice/priceworker/services/store"
	"buildprice/priceworker/services/worker"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sources")
	}
	dict, err := config.LoadAliases(cfg.AliasesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load alias dictionary")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Int("sources", len(sources)).
		Int("aliases", dict.Len()).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	deps, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer cleanup(deps)

	// Create crawlers
	fetcher := helpers.NewFetcher(cfg.FetchTimeout)
	crawlers := crawler.CreateCrawlers(sources, fetcher, deps.Cache, cfg.BlockTime)
	if len(crawlers) == 0 {
		log.Fatal().Msg("No crawlers were created")
	}

	// Create and start worker
	w := worker.NewWorker(crawlers, dict, deps, worker.Options{
		CrawlInterval:  cfg.CrawlInterval,
		SourceDelay:    cfg.SourceDelay,
		MaxConcurrency: cfg.MaxConcurrency,
		RunTimeout:     cfg.RunTimeout,
	})

	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting price worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		// In-flight work is abandoned; partial results are still persisted
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
			cleanup(deps)
			os.Exit(1)
		}
		log.Info().Msg("Worker exited normally")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// cleanup closes all services
func cleanup(deps internal.Dependencies) {
	if deps.Publisher != nil {
		if err := deps.Publisher.Close(); err != nil {
			logger.Error("Failed to close publisher: %v", err)
		}
	}
	if deps.Store != nil {
		if err := deps.Store.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (internal.Dependencies, error) {
	var deps internal.Dependencies

	// Initialize cache service
	if cfg.MemcacheAddr == "" {
		deps.Cache = cache.NewMemoryCache()
		logger.Info("No memcache configured, using in-process cache")
	} else {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).
				Msg("Memcache unreachable, using in-process cache")
			deps.Cache = cache.NewMemoryCache()
		} else {
			deps.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	// Initialize store
	var base store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		base = store.NewMemoryStore()
		logger.Warn("Using in-memory store, results are not kept between restarts")
	default:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return deps, err
		}
		base = pg
		logger.Info("Connected to PostgreSQL")
	}
	deps.Store = store.NewRetryingStore(base, store.RetryConfig{
		MaxAttempts: cfg.PersistRetries,
		BaseDelay:   time.Second,
	})

	// Exchange rate, remembered across runs through the cache
	deps.Rates = rates.NewCachedProvider(rates.NewStaticProvider(cfg.ExchangeRate), deps.Cache)

	// Initialize publisher
	if cfg.PublishEnabled {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("addr", cfg.RedisAddr).
				Msg("Redis unreachable, publishing disabled")
			redisPublisher.Close()
		} else {
			deps.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return deps, nil
}
