package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/application"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/clock"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/logging"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

var created = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

// singleRepo serves one stored reservation; the embedded interface panics on anything else.
type singleRepo struct {
	application.ReservationRepository
	stored *domain.ReservationPricing
}

func (s *singleRepo) FindByID(_ context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	if s.stored == nil || s.stored.ID() != id {
		return nil, apperror.NotFound("singleRepo", "reservation %d not found", id)
	}
	return s.stored, nil
}

func (s *singleRepo) FindByIDForUpdate(ctx context.Context, id domain.ReservationID) (*domain.ReservationPricing, error) {
	return s.FindByID(ctx, id)
}

func (s *singleRepo) Save(context.Context, *domain.ReservationPricing) error {
	return nil
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ...domain.Event) error { return nil }

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	slots, err := domain.NewTimeSlotPriceBreakdown([]domain.SlotPrice{{StartsAt: created.Add(48 * time.Hour), Price: money.MustParse("10000")}})
	require.NoError(t, err)
	r, err := domain.Calculate(domain.CalculateInput{ID: 5, RoomID: 7, Slots: slots, Now: created, PendingTimeout: 20 * time.Minute})
	require.NoError(t, err)

	svc := application.NewService(logging.Discard(), application.Deps{
		Repo:      &singleRepo{stored: r},
		Publisher: discardPublisher{},
		Tx:        noTx{},
		Clock:     clock.NewFixed(created.Add(time.Minute)),
	}, 0)
	router := chi.NewRouter()
	NewHandler(logging.Discard(), svc).Mount(router)
	return router
}

func TestHandler_GetAndConfirm(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reservations/5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body reservationDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PENDING", body.Status)
	assert.Equal(t, "10000.00", body.Total.String())
	require.NotNil(t, body.ExpiresAt)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reservations/5/confirm", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reservations/5/confirm", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_STATE_TRANSITION")
}

func TestHandler_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reservations/6/refund", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
