// cmd/dashboard/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lead-radar/internal/common/config"
	"lead-radar/internal/common/database"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/observability"
	"lead-radar/internal/pipeline"
	"lead-radar/internal/pipeline/dedup"
	"lead-radar/internal/pipeline/ingest"
	"lead-radar/internal/pipeline/notify"
	"lead-radar/internal/pipeline/review"
	"lead-radar/internal/pipeline/score"
	"lead-radar/internal/server"
	"lead-radar/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lead radar dashboard...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("portfolios", len(cfg.Portfolios)),
	)

	obs := observability.New("lead-radar")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry; unreachable means limited mode, not exit ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "PostgreSQL connection")

	var leadStore *store.LeadStore
	if err != nil {
		zapLog.Warn("postgres unreachable, running in limited mode: decisions will not survive restarts", zap.Error(err))
		pg = nil
	} else {
		defer pg.Close()
		leadStore = store.NewLeadStore(pg.DB, log)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Elasticsearch with retry; unreachable degrades dedup to exact-only ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 5, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Warn("elasticsearch unreachable, similarity dedup disabled", zap.Error(err))
		esClient = nil
	} else {
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init Redis with retry; unreachable degrades the seen-cache tier ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Warn("redis unreachable, seen cache disabled", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Build the pipeline ---
	ingestService := ingest.NewService(ingest.NewConfig(cfg), log)
	scorer := score.NewScorer(score.NewConfig(cfg), log)

	dedupCfg := dedup.NewConfig(cfg)
	var similarity *dedup.SimilarityClient
	if esClient != nil {
		similarity = dedup.NewSimilarityClient(esClient, dedupCfg, log)
		if err := similarity.EnsureIndex(ctx); err != nil {
			zapLog.Warn("lead index setup failed, similarity dedup disabled", zap.Error(err))
			similarity = nil
		}
	}

	var filter *dedup.Filter
	if similarity != nil {
		filter = dedup.NewFilter(dedupCfg, redis, leadStoreOrNil(leadStore), similarity, scorer, log)
	} else {
		filter = dedup.NewFilter(dedupCfg, redis, leadStoreOrNil(leadStore), nil, nil, log)
	}

	notifier, err := notify.NewNotifier(notify.NewConfig(cfg), log)
	if err != nil {
		zapLog.Fatal("notifier initialization failed", zap.Error(err))
	}

	queue := review.NewQueue(review.NewConfig(cfg), queueStoreOrNil(leadStore), notifier, log)
	if err := queue.Hydrate(ctx); err != nil {
		zapLog.Warn("pending lead hydration failed", zap.Error(err))
	}

	runner := pipeline.NewRunner(cfg, ingestService, scorer, filter, queue, obs, log)

	// --- HTTP API + scrape loop ---
	srv := server.New(cfg, queue, runner, recentOrNil(leadStore), log)

	go runner.Start(ctx)
	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	zapLog.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}

// Typed-nil guards: a nil *LeadStore stored in a non-nil interface would
// defeat the nil checks downstream.

func leadStoreOrNil(s *store.LeadStore) dedup.LeadChecker {
	if s == nil {
		return nil
	}
	return s
}

func queueStoreOrNil(s *store.LeadStore) review.Store {
	if s == nil {
		return nil
	}
	return s
}

func recentOrNil(s *store.LeadStore) server.RecentLister {
	if s == nil {
		return nil
	}
	return s
}
