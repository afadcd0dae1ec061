package domain

import (
	"sort"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/money"
)

// TimeRangePrice overrides the default rate for one day-of-week window.
type TimeRangePrice struct {
	Day   DayOfWeek
	Range TimeRange
	Price money.Money
}

// TimeRangePrices is an immutable, overlap-free set of overrides.
type TimeRangePrices struct {
	items []TimeRangePrice
}

func NewTimeRangePrices(items []TimeRangePrice) (TimeRangePrices, error) {
	const op = "pricing.NewTimeRangePrices"

	sorted := make([]TimeRangePrice, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Day != sorted[j].Day {
			return sorted[i].Day < sorted[j].Day
		}
		return sorted[i].Range.Start < sorted[j].Range.Start
	})

	for i, p := range sorted {
		if !p.Day.Valid() {
			return TimeRangePrices{}, apperror.Validation(op, "invalid day of week %d", int(p.Day))
		}
		if _, err := NewTimeRange(p.Range.Start, p.Range.End); err != nil {
			return TimeRangePrices{}, err
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Day == p.Day && prev.Range.Overlaps(p.Range) {
				return TimeRangePrices{}, apperror.Validation(op, "%s %s overlaps %s", p.Day, p.Range, prev.Range).
					With("day", p.Day.String())
			}
		}
	}
	return TimeRangePrices{items: sorted}, nil
}

// Find returns the override covering the given day and time, if any.
func (p TimeRangePrices) Find(day DayOfWeek, t TimeOfDay) (money.Money, bool) {
	for _, item := range p.items {
		if item.Day == day && item.Range.Contains(t) {
			return item.Price, true
		}
	}
	return money.Zero, false
}

func (p TimeRangePrices) Items() []TimeRangePrice {
	out := make([]TimeRangePrice, len(p.items))
	copy(out, p.items)
	return out
}

func (p TimeRangePrices) Len() int {
	return len(p.items)
}
