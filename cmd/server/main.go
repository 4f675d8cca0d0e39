package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"veridata/internal/compare"
	"veridata/internal/dashboard"
	"veridata/internal/dashboard/cache"
	"veridata/internal/dashboard/handler"
	discmetrics "veridata/internal/discrepancy/metrics"
	discservice "veridata/internal/discrepancy/service"
	discstore "veridata/internal/discrepancy/store"
	entrymetrics "veridata/internal/entry/metrics"
	entryservice "veridata/internal/entry/service"
	entrystore "veridata/internal/entry/store"
	"veridata/internal/forms"
	"veridata/internal/identity"
	"veridata/internal/platform/config"
	"veridata/internal/platform/httpserver"
	"veridata/internal/platform/logger"
	platformredis "veridata/internal/platform/redis"
	"veridata/pkg/platform/audit"
	auditkafka "veridata/pkg/platform/audit/kafka"
	auditmemory "veridata/pkg/platform/audit/store/memory"
	auditpostgres "veridata/pkg/platform/audit/store/postgres"
	auditworker "veridata/pkg/platform/audit/worker"
)

// main wires the reconciliation engine: stores, transaction runner, audit
// pipeline and the ops HTTP surface. Business logic lives in the internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db  *sql.DB
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
	}

	// Store wiring: Postgres when configured, in-memory otherwise.
	var (
		entries       entrystore.Store
		discrepancies discstore.Store
		fields        forms.Store
		auditStore    audit.Store
		runner        entryservice.TxRunner
	)
	if db != nil {
		pgEntries := entrystore.NewPostgres(db, log)
		entries = pgEntries
		discrepancies = discstore.NewPostgres(db)
		fields = forms.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		runner = newInstancePostgresTx(db, pgEntries)
	} else {
		log.Warn("no database configured, running on in-memory stores")
		entries = entrystore.NewInMemory()
		discrepancies = discstore.NewInMemory()
		fields = forms.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		runner = entryservice.NewShardedTx()
	}
	// Optional Kafka fan-out for audit events, fed off the request path.
	var fanout chan audit.Event
	g, ctx := errgroup.WithContext(ctx)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("connect kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		fanout = make(chan audit.Event, 256)
		worker := auditworker.NewWorker(producer, fanout, log)
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	var auditOpts []audit.Option
	if fanout != nil {
		auditOpts = append(auditOpts, audit.WithFanout(fanout))
	}
	auditor := audit.NewPublisher(auditStore, auditOpts...)

	var countCache dashboard.CountCache
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		countCache = cache.NewRedisCache(redisClient.Client, cfg.DashboardCacheTTL, log)
	}

	dMetrics := discmetrics.New()
	eMetrics := entrymetrics.New()

	discService := discservice.NewService(discrepancies, fields, auditor, runner, dMetrics, log)
	engine := compare.NewEngine(entries, fields, discService, log)
	entryService := entryservice.NewService(entries, fields, engine, discService, auditor, runner, eMetrics, log)
	dashService := dashboard.NewService(entries, discService, fields, countCache, log)

	var authProvider *identity.Provider
	if cfg.JWTSigningKey != "" {
		authProvider = identity.NewProvider(cfg.JWTSigningKey)
	} else {
		log.Warn("no signing key configured, dashboard routes are unauthenticated")
	}
	dashHandler := handler.New(dashService, entryService, authProvider, log)

	srv := httpserver.New(cfg.OpsAddr, func() error {
		if db != nil {
			return db.PingContext(context.Background())
		}
		return nil
	}, dashHandler.Register)
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.OpsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
}
