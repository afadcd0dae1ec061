package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/application"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/pricing/domain"
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
		tracer:  otel.Tracer("pricing-http"),
	}
}

func (h *Handler) Mount(r chi.Router) {
	r.Get("/places/{placeID}/pricing-policies", h.listByPlace)
	r.Route("/pricing-policies/{roomID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/default-price", h.updateDefaultPrice)
		r.Put("/time-range-prices", h.resetPrices)
		r.Put("/time-slot", h.updateTimeSlot)
		r.Post("/copy-from/{sourceRoomID}", h.copyFrom)
		r.Get("/breakdown", h.breakdown)
	})
}

type timeRangePriceDTO struct {
	DayOfWeek string      `json:"dayOfWeek"`
	StartTime string      `json:"startTime"`
	EndTime   string      `json:"endTime"`
	Price     money.Money `json:"price"`
}

type policyDTO struct {
	RoomID          int64               `json:"roomId"`
	PlaceID         int64               `json:"placeId"`
	TimeSlot        string              `json:"timeSlot"`
	DefaultPrice    money.Money         `json:"defaultPrice"`
	TimeRangePrices []timeRangePriceDTO `json:"timeRangePrices"`
}

func toPolicyDTO(p *domain.PricingPolicy) policyDTO {
	items := p.TimeRangePrices().Items()
	prices := make([]timeRangePriceDTO, 0, len(items))
	for _, it := range items {
		prices = append(prices, timeRangePriceDTO{
			DayOfWeek: it.Day.String(),
			StartTime: it.Range.Start.String(),
			EndTime:   it.Range.End.String(),
			Price:     it.Price,
		})
	}
	return policyDTO{
		RoomID:          int64(p.RoomID()),
		PlaceID:         int64(p.PlaceID()),
		TimeSlot:        p.TimeSlot().String(),
		DefaultPrice:    p.DefaultPrice(),
		TimeRangePrices: prices,
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPricingPolicy")
	defer span.End()

	roomID, err := httpx.PathInt64(r, "roomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.Get(ctx, domain.RoomID(roomID))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPolicyDTO(p))
}

func (h *Handler) listByPlace(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListPricingPolicies")
	defer span.End()

	placeID, err := httpx.PathInt64(r, "placeID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	policies, err := h.service.ListByPlace(ctx, domain.PlaceID(placeID))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	out := make([]policyDTO, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyDTO(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type defaultPriceReq struct {
	DefaultPrice money.Money `json:"defaultPrice"`
}

func (h *Handler) updateDefaultPrice(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateDefaultPrice")
	defer span.End()

	roomID, err := httpx.PathInt64(r, "roomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req defaultPriceReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.UpdateDefaultPrice(ctx, domain.RoomID(roomID), req.DefaultPrice)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPolicyDTO(p))
}

type timeRangePricesReq struct {
	TimeRangePrices []timeRangePriceDTO `json:"timeRangePrices"`
}

func (h *Handler) resetPrices(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ResetTimeRangePrices")
	defer span.End()

	roomID, err := httpx.PathInt64(r, "roomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req timeRangePricesReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	in := make([]application.TimeRangePriceInput, 0, len(req.TimeRangePrices))
	for _, e := range req.TimeRangePrices {
		in = append(in, application.TimeRangePriceInput{Day: e.DayOfWeek, Start: e.StartTime, End: e.EndTime, Price: e.Price})
	}
	p, err := h.service.ResetPrices(ctx, domain.RoomID(roomID), in)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPolicyDTO(p))
}

type timeSlotReq struct {
	TimeSlot string `json:"timeSlot"`
}

func (h *Handler) updateTimeSlot(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateTimeSlot")
	defer span.End()

	roomID, err := httpx.PathInt64(r, "roomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req timeSlotReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	slot, err := domain.ParseTimeSlot(req.TimeSlot)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.UpdateTimeSlot(ctx, domain.RoomID(roomID), slot)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPolicyDTO(p))
}

func (h *Handler) copyFrom(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CopyPricingPolicy")
	defer span.End()

	roomID, err := httpx.PathInt64(r, "roomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	sourceID, err := httpx.PathInt64(r, "sourceRoomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.CopyPolicy(ctx, domain.RoomID(sourceID), domain.RoomID(roomID))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPolicyDTO(p))
}

type slotPriceDTO struct {
	StartsAt string      `json:"startsAt"`
	Price    money.Money `json:"price"`
}

type breakdownDTO struct {
	RoomID int64          `json:"roomId"`
	Slots  []slotPriceDTO `json:"slots"`
	Total  money.Money    `json:"total"`
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PriceBreakdown")
	defer span.End()

	roomID, err := httpx.PathInt64(r, "roomID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	start, err := httpx.QueryTime(r, "start")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	end, err := httpx.QueryTime(r, "end")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	b, err := h.service.PriceBreakdown(ctx, domain.RoomID(roomID), start, end)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	slots := make([]slotPriceDTO, 0, len(b.Slots))
	for _, s := range b.Slots {
		slots = append(slots, slotPriceDTO{StartsAt: s.At.Format(time.RFC3339), Price: s.Price})
	}
	httpx.WriteJSON(w, http.StatusOK, breakdownDTO{RoomID: roomID, Slots: slots, Total: b.Total})
}
