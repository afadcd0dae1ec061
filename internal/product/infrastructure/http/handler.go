package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	pricing "github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/application"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/product/domain"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
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
		tracer:  otel.Tracer("product-http"),
	}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/products", h.register)
	r.Get("/products", h.listAccessible)
	r.Route("/products/{productID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.delete)
		r.Put("/total-quantity", h.updateTotalQuantity)
		r.Get("/availability", h.availability)
	})
}

type productDTO struct {
	ID               int64        `json:"id"`
	Scope            string       `json:"scope"`
	PlaceID          *int64       `json:"placeId,omitempty"`
	RoomID           *int64       `json:"roomId,omitempty"`
	Name             string       `json:"name"`
	PricingType      string       `json:"pricingType"`
	InitialPrice     money.Money  `json:"initialPrice"`
	AdditionalPrice  *money.Money `json:"additionalPrice,omitempty"`
	TotalQuantity    int          `json:"totalQuantity"`
	ReservedQuantity int          `json:"reservedQuantity"`
}

func toDTO(p domain.Product) productDTO {
	dto := productDTO{
		ID:               int64(p.ID),
		Scope:            string(p.Scope),
		Name:             p.Name,
		PricingType:      string(p.Strategy.Type),
		InitialPrice:     p.Strategy.InitialPrice,
		AdditionalPrice:  p.Strategy.AdditionalPrice,
		TotalQuantity:    p.TotalQuantity,
		ReservedQuantity: p.ReservedQuantity,
	}
	if p.PlaceID != nil {
		v := int64(*p.PlaceID)
		dto.PlaceID = &v
	}
	if p.RoomID != nil {
		v := int64(*p.RoomID)
		dto.RoomID = &v
	}
	return dto
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RegisterProduct")
	defer span.End()

	var req productDTO
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	pricingType, err := domain.ParsePricingType(req.PricingType)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	strategy, err := domain.NewPricingStrategy(pricingType, req.InitialPrice, req.AdditionalPrice)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	in := domain.NewProductInput{
		ID:            domain.ProductID(req.ID),
		Scope:         scope,
		Name:          req.Name,
		Strategy:      strategy,
		TotalQuantity: req.TotalQuantity,
	}
	if req.PlaceID != nil {
		v := pricing.PlaceID(*req.PlaceID)
		in.PlaceID = &v
	}
	if req.RoomID != nil {
		v := pricing.RoomID(*req.RoomID)
		in.RoomID = &v
	}

	p, err := h.service.Register(ctx, in)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toDTO(p))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, err := httpx.PathInt64(r, "productID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.Get(ctx, domain.ProductID(id))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct")
	defer span.End()

	id, err := httpx.PathInt64(r, "productID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.service.Delete(ctx, domain.ProductID(id)); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAccessible(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListAccessibleProducts")
	defer span.End()

	roomID, err := httpx.QueryInt64(r, "roomId")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var products []domain.Product
	if r.URL.Query().Has("placeId") {
		placeID, err := httpx.QueryInt64(r, "placeId")
		if err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
		products, err = h.service.ListAccessibleIn(ctx, pricing.PlaceID(placeID), pricing.RoomID(roomID))
		if err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
	} else {
		products, err = h.service.ListAccessible(ctx, pricing.RoomID(roomID))
		if err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
	}

	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toDTO(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type totalQuantityReq struct {
	TotalQuantity int `json:"totalQuantity"`
}

func (h *Handler) updateTotalQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProductTotalQuantity")
	defer span.End()

	id, err := httpx.PathInt64(r, "productID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req totalQuantityReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.UpdateTotalQuantity(ctx, domain.ProductID(id), req.TotalQuantity)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(p))
}

type availabilityDTO struct {
	ProductID         int64 `json:"productId"`
	Available         bool  `json:"available"`
	AvailableQuantity int   `json:"availableQuantity"`
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProductAvailability")
	defer span.End()

	id, err := httpx.PathInt64(r, "productID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	roomID, err := httpx.QueryInt64(r, "roomId")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		httpx.WriteError(w, h.log, apperror.Validation("product.availability", "quantity must be an integer"))
		return
	}
	rawSlots := r.URL.Query()["slot"]
	slots := make([]time.Time, 0, len(rawSlots))
	for _, raw := range rawSlots {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, h.log, apperror.Validation("product.availability", "slot %q is not an RFC 3339 timestamp", raw))
			return
		}
		slots = append(slots, t)
	}

	a, err := h.service.CheckAvailability(ctx, domain.ProductID(id), pricing.RoomID(roomID), slots, quantity)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, availabilityDTO{
		ProductID:         int64(a.ProductID),
		Available:         a.Available,
		AvailableQuantity: a.AvailableQuantity,
	})
}
