//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	inventoryapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/application"
	inventory "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
	inventorypg "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/infrastructure/postgres"
	inventoryredis "github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/infrastructure/redis"
	pricingapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/application"
	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	pricingpg "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/infrastructure/postgres"
	productapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/application"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	productpg "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/infrastructure/postgres"
	reservationapp "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/application"
	reservation "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	reservationoutbox "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/infrastructure/outbox"
	reservationpg "github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/infrastructure/postgres"
	"github.com/dmehra2102/Reservation-Pricing-Service/migrations"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/clock"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/idempotency"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/lock"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/logging"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/outbox"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/pgxtx"
)

const (
	roomID  pricing.RoomID  = 7
	placeID pricing.PlaceID = 3
)

type PricingSuite struct {
	suite.Suite
	env *Env
	ctx context.Context

	clock        clock.Clock
	pricing      *pricingapp.Service
	products     *productapp.Service
	productRepo  *productpg.Repository
	reservations *reservationapp.Service
	compensation *inventoryapp.Compensator
}

func TestPricingSuite(t *testing.T) {
	suite.Run(t, new(PricingSuite))
}

func (s *PricingSuite) SetupSuite() {
	s.ctx = context.Background()
	env, err := Setup(s.ctx)
	s.Require().NoError(err)
	s.env = env
}

func (s *PricingSuite) TearDownSuite() {
	s.env.Teardown(context.Background())
}

func (s *PricingSuite) SetupTest() {
	s.Require().NoError(s.env.Reset(s.ctx))

	log := logging.Discard()
	pool := s.env.Pool
	txm := pgxtx.NewManager(pool)
	s.clock = clock.NewFixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))

	policyRepo := pricingpg.NewRepository(log, pool)
	s.productRepo = productpg.NewRepository(log, pool)
	reservationRepo := reservationpg.NewRepository(log, pool)
	s.compensation = inventoryapp.NewCompensator(log,
		inventoryredis.NewQueue(s.env.RDB, inventoryredis.DefaultKey, 100),
		s.productRepo, nil, s.clock, inventoryapp.DefaultMaxRetries)

	s.pricing = pricingapp.NewService(log, policyRepo, txm)
	availability := productapp.NewAvailabilityService(reservationRepo)
	s.products = productapp.NewService(log, s.productRepo, txm, s.pricing, availability)
	s.reservations = reservationapp.NewService(log, reservationapp.Deps{
		Repo:         reservationRepo,
		Policies:     policyRepo,
		Products:     s.productRepo,
		Availability: availability,
		Publisher:    reservationoutbox.NewPublisher(outbox.NewWriter(log, pool, reservation.AggregateType, nil)),
		Compensation: s.compensation,
		Tx:           txm,
		Clock:        s.clock,
	}, 20*time.Minute)

	_, err := s.pricing.CreateDefault(s.ctx, pricingapp.CreatePolicyInput{RoomID: roomID, PlaceID: placeID, TimeSlot: pricing.Hour})
	s.Require().NoError(err)
	_, err = s.pricing.UpdateDefaultPrice(s.ctx, roomID, money.MustParse("10000"))
	s.Require().NoError(err)
}

func (s *PricingSuite) registerReservationProduct(id product.ProductID, total int) {
	strategy, err := product.NewPricingStrategy(product.SimpleStock, money.MustParse("500"), nil)
	s.Require().NoError(err)
	_, err = s.products.Register(s.ctx, product.NewProductInput{
		ID: id, Scope: product.ScopeReservation, Name: "projector", Strategy: strategy, TotalQuantity: total,
	})
	s.Require().NoError(err)
}

func slots(n int) []time.Time {
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func (s *PricingSuite) outboxCount(eventType string) int {
	var n int
	s.Require().NoError(s.env.Pool.QueryRow(s.ctx, `SELECT count(*) FROM outbox WHERE type = $1`, eventType).Scan(&n))
	return n
}

func (s *PricingSuite) TestMigrationsAreIdempotent() {
	s.Require().NoError(migrations.Apply(s.ctx, logging.Discard(), s.env.Pool))

	names, err := migrations.Names()
	s.Require().NoError(err)
	var n int
	s.Require().NoError(s.env.Pool.QueryRow(s.ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n))
	s.Equal(len(names), n)
}

func (s *PricingSuite) TestSlotReservedPersistsSnapshotAndOutbox() {
	s.registerReservationProduct(1, 5)

	res, created, err := s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 100, RoomID: roomID, Slots: slots(2),
		Products: []reservationapp.ProductRequest{{ProductID: 1, Quantity: 2}},
	})
	s.Require().NoError(err)
	s.True(created)
	s.Equal("21000.00", res.Total().String())

	loaded, err := s.reservations.Get(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(reservation.StatusPending, loaded.Status())
	s.Equal(2, loaded.Slots().Len())
	s.Equal("21000.00", loaded.Total().String())

	p, err := s.products.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, p.ReservedQuantity)
	s.Equal(1, s.outboxCount("reservation.pricing_calculated"))

	_, created, err = s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 100, RoomID: roomID, Slots: slots(2),
		Products: []reservationapp.ProductRequest{{ProductID: 1, Quantity: 2}},
	})
	s.Require().NoError(err)
	s.False(created)
	p, err = s.products.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, p.ReservedQuantity, "redelivery must not claim stock twice")
}

func (s *PricingSuite) TestConcurrentReservationsNeverOversell() {
	s.registerReservationProduct(1, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _, err := s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
				ReservationID: reservation.ReservationID(200 + id), RoomID: roomID, Slots: slots(1),
				Products: []reservationapp.ProductRequest{{ProductID: 1, Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperror.Is(err, apperror.KindProductNotAvailable):
				rejected++
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(5, ok)
	s.Equal(5, rejected)
	p, err := s.products.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(5, p.ReservedQuantity)
}

func (s *PricingSuite) TestAtomicReserveAndRelease() {
	s.registerReservationProduct(2, 5)

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.productRepo.ReserveQuantity(s.ctx, 2, 1)
			s.NoError(err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	claimed := 0
	for ok := range results {
		if ok {
			claimed++
		}
	}
	s.Equal(5, claimed)

	released, err := s.productRepo.ReleaseQuantity(s.ctx, 2, 6)
	s.Require().NoError(err)
	s.False(released, "release never drives reserved below zero")
	released, err = s.productRepo.ReleaseQuantity(s.ctx, 2, 5)
	s.Require().NoError(err)
	s.True(released)
}

func (s *PricingSuite) TestCancelReleasesGlobalStock() {
	s.registerReservationProduct(1, 5)
	_, _, err := s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 300, RoomID: roomID, Slots: slots(1),
		Products: []reservationapp.ProductRequest{{ProductID: 1, Quantity: 3}},
	})
	s.Require().NoError(err)

	res, err := s.reservations.Cancel(s.ctx, 300, reservation.ReasonUser)
	s.Require().NoError(err)
	s.Equal(reservation.StatusCancelled, res.Status())
	s.Nil(res.ExpiresAt())

	p, err := s.products.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Zero(p.ReservedQuantity)
	s.Equal(1, s.outboxCount("reservation.cancelled"))

	_, err = s.reservations.Confirm(s.ctx, 300)
	s.True(apperror.Is(err, apperror.KindInvalidStateTransition))
}

func (s *PricingSuite) TestTimeScopedAvailabilityUsesOverlappingReservations() {
	strategy, err := product.NewPricingStrategy(product.SimpleStock, money.MustParse("100"), nil)
	s.Require().NoError(err)
	room := roomID
	_, err = s.products.Register(s.ctx, product.NewProductInput{
		ID: 9, Scope: product.ScopeRoom, RoomID: &room, Name: "whiteboard", Strategy: strategy, TotalQuantity: 2,
	})
	s.Require().NoError(err)

	_, _, err = s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 400, RoomID: roomID, Slots: slots(2),
		Products: []reservationapp.ProductRequest{{ProductID: 9, Quantity: 2}},
	})
	s.Require().NoError(err)

	_, _, err = s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 401, RoomID: roomID, Slots: slots(3)[1:],
		Products: []reservationapp.ProductRequest{{ProductID: 9, Quantity: 1}},
	})
	s.True(apperror.Is(err, apperror.KindProductNotAvailable))

	_, _, err = s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 402, RoomID: roomID, Slots: slots(3)[2:],
		Products: []reservationapp.ProductRequest{{ProductID: 9, Quantity: 2}},
	})
	s.NoError(err, "non-overlapping slot has full stock")
}

func (s *PricingSuite) TestExpirySweepCancelsPending() {
	_, _, err := s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 500, RoomID: roomID, Slots: slots(1),
	})
	s.Require().NoError(err)

	later := reservationapp.NewService(logging.Discard(), reservationapp.Deps{
		Repo:     reservationpg.NewRepository(logging.Discard(), s.env.Pool),
		Policies: pricingpg.NewRepository(logging.Discard(), s.env.Pool),
		Products: s.productRepo,
		Availability: productapp.NewAvailabilityService(
			reservationpg.NewRepository(logging.Discard(), s.env.Pool)),
		Publisher:    reservationoutbox.NewPublisher(outbox.NewWriter(logging.Discard(), s.env.Pool, reservation.AggregateType, nil)),
		Compensation: s.compensation,
		Tx:           pgxtx.NewManager(s.env.Pool),
		Clock:        clock.NewFixed(s.clock.Now().Add(21 * time.Minute)),
	}, 20*time.Minute)

	n, err := later.CancelExpiredPending(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(1, n)

	res, err := later.Get(s.ctx, 500)
	s.Require().NoError(err)
	s.Equal(reservation.StatusCancelled, res.Status())
}

func (s *PricingSuite) TestOutboxStoreLeasesAndReclaims() {
	_, _, err := s.reservations.HandleSlotReserved(s.ctx, reservationapp.PriceRequest{
		ReservationID: 600, RoomID: roomID, Slots: slots(1),
	})
	s.Require().NoError(err)

	store := outbox.NewPostgresStore(logging.Discard(), s.env.Pool)
	batch, err := store.LockBatch(s.ctx, "relay-a", 10, 50*time.Millisecond, 3)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Equal("600", batch[0].AggregateID)
	s.NotEmpty(batch[0].Headers[outbox.EventIDHeader])

	again, err := store.LockBatch(s.ctx, "relay-b", 10, time.Second, 3)
	s.Require().NoError(err)
	s.Empty(again, "leased rows are invisible to other relays")

	time.Sleep(100 * time.Millisecond)
	reclaimed, err := store.LockBatch(s.ctx, "relay-b", 10, time.Second, 3)
	s.Require().NoError(err)
	s.Len(reclaimed, 1, "expired lease is reclaimed")

	s.Require().NoError(store.MarkSent(s.ctx, []int64{reclaimed[0].ID}))
	after, err := store.LockBatch(s.ctx, "relay-b", 10, time.Second, 3)
	s.Require().NoError(err)
	s.Empty(after)
}

func (s *PricingSuite) TestRedisQueueIsBoundedFIFO() {
	q := inventoryredis.NewQueue(s.env.RDB, "test:compensation", 2)
	now := s.clock.Now()
	first := inventory.NewCompensationTask(1, 1, roomID, 1, nil, errors.New("a"), now)
	second := inventory.NewCompensationTask(2, 1, roomID, 1, nil, errors.New("b"), now)

	s.Require().NoError(q.Enqueue(s.ctx, first))
	s.Require().NoError(q.Enqueue(s.ctx, second))
	s.ErrorIs(q.Enqueue(s.ctx, first), inventoryapp.ErrQueueFull)

	tasks, err := q.Drain(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)
	s.Equal(first.ID, tasks[0].ID)
	s.Equal(second.ID, tasks[1].ID)

	n, err := q.Len(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PricingSuite) TestCompensationSweepSurvivesMalformedEntry() {
	const key = "test:compensation:malformed"
	q := inventoryredis.NewQueue(s.env.RDB, key, 10)
	now := s.clock.Now()
	task := inventory.NewCompensationTask(1, 1, roomID, 1, nil, errors.New("a"), now)
	s.Require().NoError(q.Enqueue(s.ctx, task))
	s.Require().NoError(s.env.RDB.RPush(s.ctx, key, `{"quantity":"two"}`).Err())

	releaser := &countingReleaser{}
	dead := inventorypg.NewDeadLetterStore(logging.Discard(), s.env.Pool)
	c := inventoryapp.NewCompensator(logging.Discard(), q, releaser, dead, s.clock, 5)
	s.Require().NoError(c.RetryPending(s.ctx))

	s.Equal(1, releaser.calls)
	var payload string
	s.Require().NoError(s.env.Pool.QueryRow(s.ctx, `SELECT payload FROM inventory_compensation_malformed`).Scan(&payload))
	s.Equal(`{"quantity":"two"}`, payload)
	n, err := q.Len(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

type countingReleaser struct{ calls int }

func (r *countingReleaser) ReleaseQuantity(context.Context, product.ProductID, int) (bool, error) {
	r.calls++
	return true, nil
}

func (s *PricingSuite) TestPartitionCreationMovesRowsOutOfDefault() {
	maintainer := reservationpg.NewPartitionMaintainer(logging.Discard(), s.env.Pool)
	now := s.clock.Now()
	slot := time.Date(2027, 4, 19, 10, 0, 0, 0, time.UTC)
	month := reservationpg.MonthlyPartition(slot)

	_, err := s.env.Pool.Exec(s.ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, month.Name))
	s.Require().NoError(err)
	_, err = s.env.Pool.Exec(s.ctx, `
INSERT INTO reservation_pricings (id, room_id, status, total, created_at, expires_at, calculated_at, updated_at, first_slot, last_slot)
VALUES (901, $1, 'CONFIRMED', 10000, $2, NULL, $2, $2, $3, $3)`, int64(roomID), now, slot)
	s.Require().NoError(err)
	_, err = s.env.Pool.Exec(s.ctx, `INSERT INTO reservation_slot_prices (reservation_id, slot_start, price) VALUES (901, $1, 10000)`, slot)
	s.Require().NoError(err)

	s.Require().NoError(maintainer.Ensure(s.ctx, now, 6))
	s.Require().NoError(maintainer.Ensure(s.ctx, now, 6), "a second run finds every partition in place")

	var home string
	s.Require().NoError(s.env.Pool.QueryRow(s.ctx,
		`SELECT tableoid::regclass::text FROM reservation_slot_prices WHERE reservation_id = 901`).Scan(&home))
	s.Equal(month.Name, home)
	var left int
	s.Require().NoError(s.env.Pool.QueryRow(s.ctx, `SELECT count(*) FROM reservation_slot_prices_default`).Scan(&left))
	s.Zero(left)
	var attached bool
	s.Require().NoError(s.env.Pool.QueryRow(s.ctx,
		`SELECT relispartition FROM pg_class WHERE relname = 'reservation_slot_prices_default'`).Scan(&attached))
	s.True(attached)
}

func (s *PricingSuite) TestConcurrentPolicyWritesAreNotLost() {
	weekend := []pricingapp.TimeRangePriceInput{
		{Day: "SATURDAY", Start: "09:00", End: "18:00", Price: money.MustParse("15000")},
	}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.pricing.UpdateDefaultPrice(s.ctx, roomID, money.MustParse("12000"))
			s.NoError(err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.pricing.ResetPrices(s.ctx, roomID, weekend)
			s.NoError(err)
		}()
	}
	wg.Wait()

	p, err := s.pricing.Get(s.ctx, roomID)
	s.Require().NoError(err)
	s.Equal("12000.00", p.DefaultPrice().String())
	s.Equal(1, p.TimeRangePrices().Len(), "a default price write never drops a concurrent override")
}

func (s *PricingSuite) TestLockIsExclusive() {
	locker := lock.NewLocker(logging.Discard(), s.env.RDB)
	release, err := locker.Acquire(s.ctx, "job", time.Minute)
	s.Require().NoError(err)

	ran, err := locker.Run(s.ctx, "job", time.Minute, func(context.Context) error {
		s.Fail("must not run while held")
		return nil
	})
	s.Require().NoError(err)
	s.False(ran)

	s.Require().NoError(release(s.ctx))
	ran, err = locker.Run(s.ctx, "job", time.Minute, func(context.Context) error { return nil })
	s.Require().NoError(err)
	s.True(ran)
}

func (s *PricingSuite) TestIdempotencyStore() {
	store := idempotency.NewStore(s.env.RDB, time.Minute)
	key := store.Key("room-events", 0, 42)

	seen, err := store.Seen(s.ctx, key)
	s.Require().NoError(err)
	s.False(seen)
	seen, err = store.Seen(s.ctx, key)
	s.Require().NoError(err)
	s.True(seen)

	s.Require().NoError(store.Release(s.ctx, key))
	seen, err = store.Seen(s.ctx, key)
	s.Require().NoError(err)
	s.False(seen)
}
