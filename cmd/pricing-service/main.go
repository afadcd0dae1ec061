package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/events"
	eventskafka "github.com/dmehra2102/Reservation-Pricing-Service/internal/events/kafka"
	inventoryapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/application"
	inventorypg "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/infrastructure/postgres"
	inventoryredis "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/infrastructure/redis"
	pricingapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/application"
	pricinghttp "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/infrastructure/http"
	pricingpg "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/infrastructure/postgres"
	productapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/application"
	producthttp "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/infrastructure/http"
	productpg "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/infrastructure/postgres"
	reservationapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/application"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	reservationhttp "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/infrastructure/http"
	reservationoutbox "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/infrastructure/outbox"
	reservationpg "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/infrastructure/postgres"
	"github.com/dmehra2102/Reservation-Pricing-Service/migrations"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/clock"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/config"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/idempotency"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/lock"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/logging"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/outbox"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/pgxtx"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/scheduler"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/shutdown"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := migrations.Apply(ctx, log, pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping failed", "err", err)
		os.Exit(1)
	}

	// Kafka producer
	writer := eventskafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	clk := clock.NewSystem()
	txm := pgxtx.NewManager(pool)

	// Repositories
	policyRepo := pricingpg.NewRepository(log, pool)
	productRepo := productpg.NewRepository(log, pool)
	reservationRepo := reservationpg.NewRepository(log, pool)
	partitions := reservationpg.NewPartitionMaintainer(log, pool)

	// Compensation
	var queue inventoryapp.Queue = inventoryapp.NewMemoryQueue(cfg.CompensationQueueCapacity)
	if cfg.CompensationQueueBackend == "redis" {
		queue = inventoryredis.NewQueue(rdb, inventoryredis.DefaultKey, cfg.CompensationQueueCapacity)
	}
	compensator := inventoryapp.NewCompensator(log, queue, productRepo,
		inventorypg.NewDeadLetterStore(log, pool), clk, cfg.CompensationMaxRetries)

	// Services
	pricingSvc := pricingapp.NewService(log, policyRepo, txm)
	availability := productapp.NewAvailabilityService(reservationRepo)
	productSvc := productapp.NewService(log, productRepo, txm, pricingSvc, availability)
	publisher := reservationoutbox.NewPublisher(
		outbox.NewWriter(log, pool, domain.AggregateType, map[string]string{"source": cfg.ServiceName}))
	reservationSvc := reservationapp.NewService(log, reservationapp.Deps{
		Repo:         reservationRepo,
		Policies:     policyRepo,
		Products:     productRepo,
		Availability: availability,
		Publisher:    publisher,
		Compensation: compensator,
		Tx:           txm,
		Clock:        clk,
	}, cfg.PendingTimeout())

	// Outbox relay
	relay := outbox.NewRelay(log, outbox.NewPostgresStore(log, pool),
		outbox.NewDispatcher(log, writer, cfg.OutboxTopic), cfg.ServiceName+"-relay-"+hostname())

	// Inbound events
	consumer := eventskafka.NewConsumer(log, cfg.KafkaBrokers,
		[]string{cfg.RoomTopic, cfg.ReservationTopic}, cfg.ConsumerGroup,
		events.NewRouter(log, pricingSvc, reservationSvc),
		idempotency.NewStore(rdb, cfg.IdempotencyTTL))

	// Scheduled jobs
	jobs := scheduler.NewRunner(log, lock.NewLocker(log, rdb), cfg.JobLockTTL,
		scheduler.Job{Name: "compensation-retry", Interval: cfg.CompensationInterval, Fn: compensator.RetryPending},
		scheduler.Job{Name: "pending-expiry", Interval: cfg.ExpirySweepInterval, Fn: func(ctx context.Context) error {
			_, err := reservationSvc.CancelExpiredPending(ctx, cfg.ExpirySweepBatch)
			return err
		}},
		scheduler.Job{Name: "slot-partitions", Interval: cfg.PartitionInterval, Fn: func(ctx context.Context) error {
			return partitions.Ensure(ctx, clk.Now(), cfg.PartitionMonthsAhead)
		}},
	)
	if err := partitions.Ensure(ctx, clk.Now(), cfg.PartitionMonthsAhead); err != nil {
		log.Warn("initial partition maintenance failed", "err", err)
	}

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	pricinghttp.NewHandler(log, pricingSvc).Mount(r)
	producthttp.NewHandler(log, productSvc).Mount(r)
	reservationhttp.NewHandler(log, reservationSvc).Mount(r)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// gRPC health
	healthSrv := health.NewServer()
	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	background := map[string]func(context.Context) error{
		"relay":     relay.Run,
		"consumer":  consumer.Run,
		"scheduler": jobs.Run,
	}
	for name, run := range background {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil {
				log.Error(name+" stopped with error", "err", err)
				cancel()
			}
		}(name, run)
	}

	go func() {
		log.Info("grpc health listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc server error", "err", err)
			cancel()
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	wg.Wait()
	log.Info("pricing-service shutdown complete")
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return h
}
