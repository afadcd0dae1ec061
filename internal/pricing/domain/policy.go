package domain

import (
	"sort"
	"time"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

// SlotPrice is the price of the slot starting at At.
type SlotPrice struct {
	At    time.Time
	Price money.Money
}

type PriceBreakdown struct {
	Slots []SlotPrice
	Total money.Money
}

// PricingPolicy is the rate table of one room.
type PricingPolicy struct {
	roomID       RoomID
	placeID      PlaceID
	timeSlot     TimeSlot
	defaultPrice money.Money
	prices       TimeRangePrices
}

func NewPricingPolicy(roomID RoomID, placeID PlaceID, slot TimeSlot, defaultPrice money.Money) (*PricingPolicy, error) {
	const op = "pricing.NewPricingPolicy"
	if roomID <= 0 {
		return nil, apperror.Validation(op, "room id must be positive")
	}
	if placeID <= 0 {
		return nil, apperror.Validation(op, "place id must be positive")
	}
	if !slot.Valid() {
		return nil, apperror.Validation(op, "unsupported time slot %s", slot)
	}
	return &PricingPolicy{
		roomID:       roomID,
		placeID:      placeID,
		timeSlot:     slot,
		defaultPrice: defaultPrice,
	}, nil
}

// RestorePricingPolicy rebuilds a policy from storage; prices were validated when written.
func RestorePricingPolicy(roomID RoomID, placeID PlaceID, slot TimeSlot, defaultPrice money.Money, prices TimeRangePrices) *PricingPolicy {
	return &PricingPolicy{
		roomID:       roomID,
		placeID:      placeID,
		timeSlot:     slot,
		defaultPrice: defaultPrice,
		prices:       prices,
	}
}

func (p *PricingPolicy) RoomID() RoomID {
	return p.roomID
}

func (p *PricingPolicy) PlaceID() PlaceID {
	return p.placeID
}

func (p *PricingPolicy) TimeSlot() TimeSlot {
	return p.timeSlot
}

func (p *PricingPolicy) DefaultPrice() money.Money {
	return p.defaultPrice
}

func (p *PricingPolicy) TimeRangePrices() TimeRangePrices {
	return p.prices
}

// PriceAt resolves the rate of the slot starting at t, using t's own location.
func (p *PricingPolicy) PriceAt(t time.Time) money.Money {
	if price, ok := p.prices.Find(DayOf(t), TimeOfDayOf(t)); ok {
		return price
	}
	return p.defaultPrice
}

// CalculatePriceBreakdown walks [start, end) in time-slot steps and prices every slot.
func (p *PricingPolicy) CalculatePriceBreakdown(start, end time.Time) (PriceBreakdown, error) {
	if !start.Before(end) {
		return PriceBreakdown{}, apperror.Validation("pricing.CalculatePriceBreakdown",
			"start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)).
			With("room_id", int64(p.roomID))
	}

	step := p.timeSlot.Duration()
	var out PriceBreakdown
	for at := start; at.Before(end); at = at.Add(step) {
		price := p.PriceAt(at)
		out.Slots = append(out.Slots, SlotPrice{At: at, Price: price})
		out.Total = out.Total.Add(price)
	}
	return out, nil
}

// PriceSlots prices an explicit list of slot start instants, returned in chronological order.
func (p *PricingPolicy) PriceSlots(slots []time.Time) (PriceBreakdown, error) {
	const op = "pricing.PriceSlots"
	if len(slots) == 0 {
		return PriceBreakdown{}, apperror.Validation(op, "at least one time slot is required")
	}

	sorted := make([]time.Time, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var out PriceBreakdown
	for i, at := range sorted {
		if i > 0 && at.Equal(sorted[i-1]) {
			return PriceBreakdown{}, apperror.Validation(op, "duplicate time slot %s", at.Format(time.RFC3339))
		}
		price := p.PriceAt(at)
		out.Slots = append(out.Slots, SlotPrice{At: at, Price: price})
		out.Total = out.Total.Add(price)
	}
	return out, nil
}

func (p *PricingPolicy) UpdateDefaultPrice(price money.Money) {
	p.defaultPrice = price
}

// ResetPrices replaces every override; prices is overlap-free by construction.
func (p *PricingPolicy) ResetPrices(prices TimeRangePrices) {
	p.prices = prices
}

// UpdateTimeSlot reports whether the granularity changed. Already priced reservations are untouched.
func (p *PricingPolicy) UpdateTimeSlot(slot TimeSlot) (bool, error) {
	if !slot.Valid() {
		return false, apperror.Validation("pricing.UpdateTimeSlot", "unsupported time slot %s", slot)
	}
	if slot == p.timeSlot {
		return false, nil
	}
	p.timeSlot = slot
	return true, nil
}

// CopyFrom takes over the rates of another room of the same place.
func (p *PricingPolicy) CopyFrom(source *PricingPolicy) error {
	const op = "pricing.CopyFrom"
	if source.roomID == p.roomID {
		return apperror.Validation(op, "cannot copy a policy onto itself").With("room_id", int64(p.roomID))
	}
	if source.placeID != p.placeID {
		return apperror.Validation(op, "rooms %d and %d belong to different places", source.roomID, p.roomID)
	}
	p.defaultPrice = source.defaultPrice
	p.prices = source.prices
	return nil
}
