// Server wires the onboarding engine: flow registry, collaborator adapters,
// session persistence, audit outbox, and the HTTP transport. Business logic
// lives in the internal packages; main only assembles and supervises.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	catalogapi "onboard/internal/catalog/adapters/httpclient"
	catalogports "onboard/internal/catalog/ports"
	docapiclient "onboard/internal/docapi/adapters/httpclient"
	"onboard/internal/documents"
	"onboard/internal/flow"
	"onboard/internal/flow/fieldrules"
	"onboard/internal/onboarding"
	partyapi "onboard/internal/party/adapters/httpclient"
	partyports "onboard/internal/party/ports"
	partypg "onboard/internal/party/store/postgres"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	platformredis "onboard/internal/platform/redis"
	"onboard/internal/progress"
	"onboard/internal/schema"
	"onboard/internal/session"
	sessionmem "onboard/internal/session/store/memory"
	sessionredis "onboard/internal/session/store/redis"
	transport "onboard/internal/transport/http"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/audit/sink"
	auditmem "onboard/pkg/platform/audit/store/memory"
	auditpg "onboard/pkg/platform/audit/store/postgres"
	"onboard/pkg/platform/audit/worker"
)

// outboxInterval is how often the relay drains pending audit events to Kafka.
const outboxInterval = 5 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	compiler := schema.NewCompiler()
	registry, err := flow.DefaultRegistry(fieldrules.NewDefaultResolver(), compiler)
	if err != nil {
		return err
	}

	// Durable stores share one Postgres pool when a DSN is configured.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
	}

	var auditStore audit.Store
	if db != nil {
		auditStore = auditpg.New(db)
	} else {
		auditStore = auditmem.New()
	}
	publisher := audit.NewPublisher(auditStore)

	// The outbox relay only runs when a Kafka sink is configured; events
	// stay queued in the store otherwise.
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		relay := worker.New(auditStore.(audit.Outbox), kafka, outboxInterval, log)
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("outbox relay stopped", "error", err)
			}
		}()
	}

	// Party data lives upstream unless this deployment owns it via Postgres.
	var parties partyports.Store
	if db != nil {
		parties = partypg.New(db)
	} else {
		parties = partyapi.New(cfg.PartyStoreURL, partyapi.WithLogger(log))
	}

	var catalog catalogports.Catalog = catalogapi.New(cfg.CatalogURL, catalogapi.WithLogger(log))
	docs := docapiclient.New(cfg.DocumentAPIURL, docapiclient.WithLogger(log))

	var sessions session.Store
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionredis.NewStore(redisClient.Client, cfg.SessionTTL)
		log.Info("session snapshots in redis", "ttl", cfg.SessionTTL)
	} else {
		sessions = sessionmem.NewStore(sessionmem.WithTTL(cfg.SessionTTL))
		log.Info("session snapshots in memory, restarts drop sessions")
	}

	aggregator := progress.NewAggregator(registry, progress.WithLogger(log))
	controller := session.NewController(registry, aggregator, sessions,
		session.WithLogger(log),
		session.WithAudit(publisher),
		session.WithMetrics(m),
	)
	service := onboarding.NewService(
		registry,
		compiler,
		documents.NewTracker(documents.WithLogger(log)),
		aggregator,
		controller,
		parties,
		catalog,
		docs,
		onboarding.WithLogger(log),
		onboarding.WithAudit(publisher),
		onboarding.WithMetrics(m),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	transport.NewHandler(service, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("onboarding engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
