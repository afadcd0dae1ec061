//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmehra2102/Reservation-Pricing-Service/migrations"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/logging"
)

type Env struct {
	PG    *postgres.PostgresContainer
	Redis *redis.RedisContainer
	Pool  *pgxpool.Pool
	RDB   *goredis.Client
}

// Setup starts Postgres and Redis and applies migrations.
func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	env := &Env{}
	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pricing"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		return nil, err
	}
	env.PG = pgC

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.Pool, err = pgxpool.New(context.Background(), pgURL)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	if err := migrations.Apply(ctx, logging.Discard(), env.Pool); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	redisC, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.Redis = redisC
	redisURL, err := redisC.ConnectionString(ctx)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.RDB = goredis.NewClient(opts)
	return env, nil
}

// Reset empties every table and Redis between tests.
func (e *Env) Reset(ctx context.Context) error {
	_, err := e.Pool.Exec(ctx, `
TRUNCATE pricing_policies, time_range_prices, products, reservation_pricings,
	reservation_slot_prices, reservation_product_prices, outbox, inventory_compensation_failures, inventory_compensation_malformed CASCADE`)
	if err != nil {
		return err
	}
	return e.RDB.FlushAll(ctx).Err()
}

func (e *Env) Teardown(ctx context.Context) {
	if e.RDB != nil {
		_ = e.RDB.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.Redis != nil {
		_ = e.Redis.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
}
