package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	product "github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/application"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/httpx"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("reservation-http"),
	}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/reservations/quote", h.quote)
	r.Route("/reservations/{reservationID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/confirm", h.confirm)
		r.Post("/cancel", h.cancel)
		r.Post("/refund", h.refund)
	})
}

type productReq struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type quoteReq struct {
	RoomID   int64        `json:"roomId"`
	Slots    []time.Time  `json:"slots"`
	Products []productReq `json:"products"`
}

type quoteDTO struct {
	RoomID     int64                          `json:"roomId"`
	Slots      []domain.SlotPrice             `json:"slots"`
	Products   []domain.ProductPriceBreakdown `json:"products"`
	SlotTotal  money.Money                    `json:"slotTotal"`
	GrandTotal money.Money                    `json:"total"`
}

type reservationDTO struct {
	ID        int64                          `json:"id"`
	RoomID    int64                          `json:"roomId"`
	Status    string                         `json:"status"`
	Slots     []domain.SlotPrice             `json:"slots"`
	Products  []domain.ProductPriceBreakdown `json:"products"`
	Total     money.Money                    `json:"total"`
	CreatedAt time.Time                      `json:"createdAt"`
	ExpiresAt *time.Time                     `json:"expiresAt,omitempty"`
	UpdatedAt time.Time                      `json:"updatedAt"`
}

func toDTO(r *domain.ReservationPricing) reservationDTO {
	return reservationDTO{
		ID:        int64(r.ID()),
		RoomID:    int64(r.RoomID()),
		Status:    string(r.Status()),
		Slots:     r.Slots().Slots(),
		Products:  r.Products(),
		Total:     r.Total(),
		CreatedAt: r.CreatedAt(),
		ExpiresAt: r.ExpiresAt(),
		UpdatedAt: r.UpdatedAt(),
	}
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "QuoteReservation")
	defer span.End()

	var req quoteReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	in := application.PriceRequest{RoomID: pricing.RoomID(req.RoomID), Slots: req.Slots}
	for _, p := range req.Products {
		in.Products = append(in.Products, application.ProductRequest{ProductID: product.ProductID(p.ProductID), Quantity: p.Quantity})
	}

	slots, products, err := h.service.Quote(ctx, in)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	total := slots.Total()
	for _, p := range products {
		total = total.Add(p.Total)
	}
	httpx.WriteJSON(w, http.StatusOK, quoteDTO{
		RoomID:     req.RoomID,
		Slots:      slots.Slots(),
		Products:   products,
		SlotTotal:  slots.Total(),
		GrandTotal: total,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetReservation")
	defer span.End()

	id, err := httpx.PathInt64(r, "reservationID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	res, err := h.service.Get(ctx, domain.ReservationID(id))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(res))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ConfirmReservation", func(r *http.Request, id domain.ReservationID) (*domain.ReservationPricing, error) {
		return h.service.Confirm(r.Context(), id)
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "CancelReservation", func(r *http.Request, id domain.ReservationID) (*domain.ReservationPricing, error) {
		return h.service.Cancel(r.Context(), id, domain.ReasonUser)
	})
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "RefundReservation", func(r *http.Request, id domain.ReservationID) (*domain.ReservationPricing, error) {
		return h.service.Refund(r.Context(), id)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, spanName string,
	fn func(r *http.Request, id domain.ReservationID) (*domain.ReservationPricing, error)) {
	ctx, span := h.tracer.Start(r.Context(), spanName)
	defer span.End()

	id, err := httpx.PathInt64(r, "reservationID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	res, err := fn(r.WithContext(ctx), domain.ReservationID(id))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(res))
}
