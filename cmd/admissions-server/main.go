// cmd/admissions-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"admissions-service/internal/blob"
	"admissions-service/internal/common/aws"
	"admissions-service/internal/common/config"
	"admissions-service/internal/common/database"
	"admissions-service/internal/common/logger"
	"admissions-service/internal/events"
	"admissions-service/internal/fallback"
	"admissions-service/internal/identity"
	"admissions-service/internal/notify"
	"admissions-service/internal/store"
	"admissions-service/internal/submission"
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
			delay *= 2 // Exponential backoff
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

	zapLog.Info("Starting admissions server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis (local-fallback store) with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (analytics sink) with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Blob Storage ---
	blobs, err := blob.NewMinioStore(cfg.BlobStorage)
	if err != nil {
		zapLog.Fatal("blob store init failed", zap.Error(err))
	}
	if err := blobs.EnsureBucket(ctx, cfg.BlobStorage.Region); err != nil {
		zapLog.Fatal("blob bucket check failed", zap.Error(err))
	}
	zapLog.Info("Blob storage ready", zap.String("bucket", cfg.BlobStorage.Bucket))

	// --- Init Notification Clients ---
	// Notification channels are optional: a missing AWS environment disables
	// them instead of blocking startup.
	var emailSender notify.EmailSender
	var publisher notify.Publisher
	if cfg.Notifications.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.AWS.Region, cfg.AWS.SenderEmail)
		if err != nil {
			zapLog.Warn("SES client unavailable, email notifications disabled", zap.Error(err))
		} else {
			emailSender = ses
		}
		sns, err := aws.NewSNSClient(ctx, cfg.AWS.Region, cfg.AWS.SNSTopicARN)
		if err != nil {
			zapLog.Warn("SNS client unavailable, push notifications disabled", zap.Error(err))
		} else {
			publisher = sns
		}
	}
	notifier := notify.New(emailSender, publisher, log, cfg.Notifications.Enabled)

	// --- Init Identity Provider ---
	var idp identity.Provider
	if cfg.Identity.Enabled {
		idp = identity.NewKeycloakProvider(
			cfg.Identity.URL,
			cfg.Identity.Realm,
			cfg.Identity.ClientID,
			cfg.Identity.ClientSecret,
		)
		zapLog.Info("Identity provider configured", zap.String("realm", cfg.Identity.Realm))
	}

	// --- Assemble the orchestrator dependencies ---
	records := store.NewPostgresStore(pg.DB, log)
	fb := fallback.New(redis.Client, cfg.Autosave.FallbackTTL)
	sink := events.NewESRecorder(esClient, cfg.Database.Elasticsearch.EventIndex, log)

	registry := newSessionRegistry(sessionDeps{
		records:   records,
		blobs:     blobs,
		fallback:  fb,
		sink:      sink,
		notifier:  notifier,
		identity:  idp,
		logger:    log,
		autosave:  cfg.Autosave,
		documents: cfg.Documents,
		pipeline: submission.Options{
			ProgressTick:     cfg.Submission.ProgressTick,
			FinalizeDelay:    cfg.Submission.FinalizeDelay,
			MinSavingsReport: cfg.Submission.MinSavingsReport,
		},
	})

	// --- HTTP API ---
	mux := http.NewServeMux()
	registerRoutes(mux, registry, log)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ready"}
		if err := pg.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "not ready", "error": err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
	srv := &http.Server{
		Addr:              cfg.App.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Metrics get their own listener so the scrape endpoint never shares the
	// public surface.
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, metricsMux); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP shutdown error", zap.Error(err))
	}
	registry.closeAll()

	zapLog.Info("Admissions server stopped gracefully")
}
