// cmd/tracker-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"property-tracker/internal/api"
	"property-tracker/internal/auth"
	"property-tracker/internal/autosync"
	awsclient "property-tracker/internal/common/aws"
	"property-tracker/internal/common/config"
	"property-tracker/internal/common/database"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/observability"
	"property-tracker/internal/editsession"
	"property-tracker/internal/extraction"
	"property-tracker/internal/scoring"
	"property-tracker/internal/search"
	"property-tracker/internal/store"
	visitreminder "property-tracker/internal/workers/visit-reminder"
)

const metricsAddress = ":9090"

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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	if built, err := logger.Build(cfg.Logging); err != nil {
		zapLog.Warn("logging config rejected, keeping console logger", zap.Error(err))
	} else {
		zapLog = built
		defer zapLog.Sync()
	}
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting property tracker...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New("property-tracker")
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

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

	if err := pg.Migrate(ctx, store.Schema); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
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

	healthChecks := map[string]api.HealthCheck{
		"postgres": pg.Ping,
		"redis":    redis.Ping,
	}

	// --- Init Elasticsearch (optional) ---
	var esClient *elasticsearch.Client
	if cfg.Database.Elasticsearch.Enabled() {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, search disabled", zap.Error(err))
		} else if err := es.EnsureIndex(ctx, searchIndexName(cfg), search.Mapping); err != nil {
			zapLog.Warn("search index setup failed, search disabled", zap.Error(err))
		} else {
			esClient = es.Client
			healthChecks["elasticsearch"] = es.Ping
			zapLog.Info("Elasticsearch connected successfully")
		}
	}
	searchIndex := search.NewIndex(esClient, searchIndexName(cfg), log)

	// --- Domain services ---
	st := store.New(pg.DB, store.WithListener(searchIndex))

	authService := auth.NewService(auth.LoadConfig(cfg.Auth), st.Users, redis.Client, log)
	extractionCfg := extraction.LoadConfig(cfg)
	extractor := extraction.NewExtractor(extractionCfg, log)
	flow := extraction.NewFlow(extractor, st.Properties, log)
	sessions := editsession.NewManager(autosync.LoadConfig(cfg.Sync), st.Groups, st.Properties, log,
		editsession.WithIdleTimeout(time.Duration(cfg.Sync.SessionIdleMS)*time.Millisecond))

	// --- Idle reaping ---
	reapInterval := time.Duration(cfg.Sync.ReapIntervalMS) * time.Millisecond
	stopSessionReaper := sessions.StartReaper(reapInterval)
	stopSlotReaper := autosync.Every(autosync.RealClock(), reapInterval, func() {
		flow.ReapIdle(extractionCfg.SlotIdle)
	})

	router := api.NewRouter(api.Deps{
		Auth:          authService,
		Groups:        st.Groups,
		Properties:    st.Properties,
		EditSessions:  sessions,
		Extractions:   flow,
		Search:        searchIndex,
		Scorer:        scoring.NewScorer(cfg.Scoring),
		PublicOrigin:  cfg.Server.PublicOrigin,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Observability: obs,
		HealthChecks:  healthChecks,
		Logger:        log,
	})
	server := api.NewServer(cfg.Server, router, log)

	// --- Visit reminders ---
	if cfg.Reminders.Enabled {
		reminders, err := newReminderHandler(ctx, cfg, st.Properties, log)
		if err != nil {
			zapLog.Error("visit reminders disabled", zap.Error(err))
		} else {
			go reminders.Run(ctx)
		}
	}

	// --- Metrics Server ---
	metricsServer := &http.Server{Addr: metricsAddress, Handler: promhttp.Handler()}
	go func() {
		zapLog.Info("Metrics server listening on " + metricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		zapLog.Error("Error stopping http server", zap.Error(err))
	}
	stopSessionReaper()
	stopSlotReaper()
	if err := sessions.FlushAll(shutdownCtx); err != nil {
		zapLog.Error("Some drafts could not be saved", zap.Error(err))
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	zapLog.Info("Property tracker stopped gracefully")
}

func searchIndexName(cfg *config.Config) string {
	if cfg.Database.Elasticsearch.Index != "" {
		return cfg.Database.Elasticsearch.Index
	}
	return "properties"
}

func newReminderHandler(ctx context.Context, cfg *config.Config, visits visitreminder.VisitStore, log logger.Logger) (*visitreminder.Handler, error) {
	var email visitreminder.EmailSender
	var events visitreminder.EventPublisher

	if cfg.Reminders.FromEmail != "" {
		ses, err := awsclient.NewSESClient(ctx, cfg.Reminders.Region, cfg.Reminders.FromEmail)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		email = ses
	}
	if cfg.Reminders.TopicARN != "" {
		sns, err := awsclient.NewSNSClient(ctx, cfg.Reminders.Region, cfg.Reminders.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		events = sns
	}

	return visitreminder.NewHandler(visitreminder.LoadConfig(cfg.Reminders), visits, email, events, log), nil
}
