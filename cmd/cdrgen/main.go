package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr-service/internal/audit"
	"cdr-service/internal/auth"
	"cdr-service/internal/config"
	"cdr-service/internal/export"
	"cdr-service/internal/generation"
	"cdr-service/internal/publisher"
	"cdr-service/internal/scheduler"
	"cdr-service/internal/storage"
	"cdr-service/pkg/logger"
	"cdr-service/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	driverName = "pgx"

	taskDrain  = "staging-drain"
	taskExport = "export"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("cdrgen failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	db, err := utils.OpenPostgres(ctx, driverName, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := storage.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	directory := storage.NewSubscriberDirectory(db, driverName)
	if n, err := directory.Seed(ctx, cfg.Generation.SeedMSISDNs); err != nil {
		return err
	} else if n > 0 {
		log.Info("subscribers seeded", "added", n)
	}
	repo := storage.NewPostgresRepo(db, loc)

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	pub, err := newPublisher(cfg, rdb, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	genMetrics := generation.NewMetrics(reg)

	pipeline := generation.NewPipeline(generation.NewStagingQueue(), genMetrics)
	orch := generation.NewOrchestrator(pipeline, directory, cfg.Generation.Workers, generation.WorkerConfig{
		MinCalls: cfg.Generation.MinCalls,
		MaxCalls: cfg.Generation.MaxCalls,
		Location: loc,
	}, generation.WithLogger(log))

	drainer := generation.NewDrainer(pipeline.Staging(), repo, orch.Ready(), cfg.Staging.BatchMax,
		rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), genMetrics, log)
	consumer := export.NewConsumer(repo, pub, export.Config{
		Threshold:   cfg.Export.Threshold,
		Destination: cfg.Publisher.Exchange,
		RoutingKey:  cfg.Publisher.RoutingKey,
	}, export.NewMetrics(reg), log)

	opts := []scheduler.Option{scheduler.WithLogger(log), scheduler.WithMetrics(scheduler.NewMetrics(reg))}
	if cfg.Export.LeaseEnabled {
		opts = append(opts, scheduler.WithLease(scheduler.NewRedisLease(rdb, "")))
	}
	runner, err := scheduler.New([]scheduler.Task{
		{Name: taskDrain, Period: cfg.Staging.DrainPeriod, Run: drainer.Drain},
		{Name: taskExport, Period: cfg.Export.Period, Run: consumer.Export},
	}, opts...)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	srv := &http.Server{
		Addr: cfg.HTTPAddr(),
		Handler: newRouter(log, authManager, routeDeps{
			stats:    pipeline,
			ready:    orch,
			tasks:    runner,
			audit:    audit.NewService(audit.NewPostgresRepo(db, driverName)),
			registry: reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info("ops api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	// Generation blocks until every worker has joined; the drainer stays idle until then.
	if err := orch.Initialize(ctx); err != nil {
		shutdown(srv, log)
		if errors.Is(err, context.Canceled) {
			log.Info("generation interrupted by shutdown")
			return nil
		}
		return err
	}

	<-ctx.Done()
	log.Info("shutdown initiated", "staged", pipeline.Staging().Len())
	shutdown(srv, log)
	return nil
}

func shutdown(srv *http.Server, log *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func newPublisher(cfg config.Config, rdb *redis.Client, log *slog.Logger) (publisher.Publisher, error) {
	enc, err := publisher.NewEncoder()
	if err != nil {
		return nil, err
	}
	switch cfg.Publisher.Kind {
	case config.PublisherAMQP:
		return publisher.DialAMQP(publisher.AMQPConfig{
			URL:                         cfg.Publisher.AMQPURL,
			Exchange:                    cfg.Publisher.Exchange,
			Queue:                       cfg.Publisher.Queue,
			RoutingKey:                  cfg.Publisher.RoutingKey,
			DeadLetterExchangePostfix:   cfg.Publisher.DeadLetterExchangePostfix,
			DeadLetterQueuePostfix:      cfg.Publisher.DeadLetterQueuePostfix,
			DeadLetterRoutingKeyPostfix: cfg.Publisher.DeadLetterRoutingKeyPostfix,
		}, enc, log)
	case config.PublisherRedis:
		return publisher.NewRedisStreamPublisher(rdb, enc, cfg.Redis.StreamMaxLen)
	default:
		return nil, publisher.ErrUnknownKind(cfg.Publisher.Kind)
	}
}
