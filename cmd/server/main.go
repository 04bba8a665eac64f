// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Engine logic lives in internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"caseguard/internal/anomaly"
	"caseguard/internal/audit"
	kafkastore "caseguard/internal/audit/store/kafka"
	memstore "caseguard/internal/audit/store/memory"
	pgstore "caseguard/internal/audit/store/postgres"
	"caseguard/internal/audit/worker"
	"caseguard/internal/authtoken"
	"caseguard/internal/csrf"
	"caseguard/internal/guard"
	"caseguard/internal/platform/config"
	"caseguard/internal/platform/httpserver"
	"caseguard/internal/platform/logger"
	"caseguard/internal/platform/metrics"
	platformredis "caseguard/internal/platform/redis"
	rlmiddleware "caseguard/internal/ratelimit/middleware"
	rlmodels "caseguard/internal/ratelimit/models"
	"caseguard/internal/ratelimit/ports"
	rlservice "caseguard/internal/ratelimit/service"
	rlmemory "caseguard/internal/ratelimit/store/memory"
	rlredis "caseguard/internal/ratelimit/store/redis"
	"caseguard/internal/report"
	"caseguard/internal/signer"
	httptransport "caseguard/internal/transport/http"
	"caseguard/pkg/platform/middleware/auth"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sig, err := signer.New(cfg.Secret)
	if err != nil {
		log.Error("signer init failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	recorder, err := audit.NewRecorder(sig,
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithCapacity(cfg.RingCapacity),
		audit.WithQueueSize(cfg.QueueSize),
	)
	if err != nil {
		log.Error("recorder init failed", "error", err)
		os.Exit(1)
	}

	sink, cleanup, err := buildSink(ctx, cfg, log)
	if err != nil {
		log.Error("durable sink init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	auditWorker := worker.New(sink, recorder.Queue(),
		worker.WithLogger(log),
		worker.WithMetrics(m),
		worker.WithWriteTimeout(cfg.WriteTimeout),
	)

	counters, redisClient, err := buildCounterStore(cfg, log)
	if err != nil {
		log.Error("rate limit store init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	limiter, err := rlservice.New(counters,
		rlservice.WithLogger(log),
		rlservice.WithAuditRecorder(recorder),
		rlservice.WithMetrics(m),
	)
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}

	inputGuard := guard.New(
		guard.WithLogger(log),
		guard.WithAuditRecorder(recorder),
		guard.WithMetrics(m),
	)

	detector, err := anomaly.New(recorder,
		anomaly.WithLogger(log),
		anomaly.WithAuditRecorder(recorder),
		anomaly.WithMetrics(m),
	)
	if err != nil {
		log.Error("anomaly detector init failed", "error", err)
		os.Exit(1)
	}

	csrfSvc, err := csrf.New(sig,
		csrf.WithLogger(log),
		csrf.WithAuditRecorder(recorder),
	)
	if err != nil {
		log.Error("csrf service init failed", "error", err)
		os.Exit(1)
	}

	reports, err := report.New(recorder, report.WithLogger(log))
	if err != nil {
		log.Error("report service init failed", "error", err)
		os.Exit(1)
	}

	tokens := authtoken.New(cfg.AdminJWTKey, "caseguard", "caseguard-operators")

	limitMW := rlmiddleware.New(limiter,
		rlmodels.Config{Window: cfg.RateLimitWindow, MaxRequests: cfg.RateLimitMax},
		log,
		rlmiddleware.WithDisabled(cfg.RateLimitDisabled),
	)

	handler := httptransport.NewHandler(recorder, limiter, inputGuard, detector, csrfSvc, reports, log)
	router := httptransport.NewRouter(handler, tokenValidator{tokens}, limitMW.Limit)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting caseguard", "addr", cfg.Addr)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := auditWorker.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildSink selects the durable audit sink: postgres when configured, then
// kafka, then a process-local store that only serves development runs.
func buildSink(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Store, func(), error) {
	switch {
	case cfg.PostgresURL != "":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool), pool.Close, nil
	case len(cfg.KafkaBrokers) > 0:
		store, err := kafkastore.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		log.Warn("no durable audit sink configured, events persist in memory only")
		return memstore.NewInMemoryStore(), func() {}, nil
	}
}

func buildCounterStore(cfg config.Config, log *slog.Logger) (ports.CounterStore, *platformredis.Client, error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return rlmemory.NewInMemoryCounterStore(), nil, nil
	}
	log.Info("using redis rate limit store")
	return rlredis.New(client.Client), client, nil
}

// tokenValidator adapts the JWT service to the auth middleware interface.
type tokenValidator struct {
	svc *authtoken.Service
}

func (v tokenValidator) Validate(token string) (*auth.Claims, error) {
	claims, err := v.svc.Validate(token)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{ActorID: claims.ActorID, Role: claims.Role}, nil
}
