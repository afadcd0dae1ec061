package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

type RoomID int64

type PlaceID int64

// TimeSlot is the booking granularity in minutes.
type TimeSlot int

const (
	HalfHour TimeSlot = 30
	Hour     TimeSlot = 60
)

func ParseTimeSlot(s string) (TimeSlot, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HOUR", "60":
		return Hour, nil
	case "HALFHOUR", "HALF_HOUR", "30":
		return HalfHour, nil
	}
	return 0, apperror.Validation("pricing.ParseTimeSlot", "unknown time slot %q", s)
}

func (t TimeSlot) Valid() bool {
	return t == HalfHour || t == Hour
}

func (t TimeSlot) Minutes() int {
	return int(t)
}

func (t TimeSlot) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

func (t TimeSlot) String() string {
	switch t {
	case HalfHour:
		return "HALFHOUR"
	case Hour:
		return "HOUR"
	default:
		return fmt.Sprintf("TimeSlot(%d)", int(t))
	}
}

// DayOfWeek follows ISO numbering, Monday = 1 .. Sunday = 7.
type DayOfWeek int

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{"", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

func DayOf(t time.Time) DayOfWeek {
	if t.Weekday() == time.Sunday {
		return Sunday
	}
	return DayOfWeek(t.Weekday())
}

func ParseDayOfWeek(s string) (DayOfWeek, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i := Monday; i <= Sunday; i++ {
		if dayNames[i] == up || dayNames[i][:3] == up {
			return i, nil
		}
	}
	return 0, apperror.Validation("pricing.ParseDayOfWeek", "unknown day of week %q", s)
}

func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return dayNames[d]
}

// TimeOfDay is minutes since local midnight. 1440 ("24:00") is only valid as a range end.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// ParseTimeOfDay reads "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, apperror.Validation("pricing.ParseTimeOfDay", "invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, apperror.Validation("pricing.ParseTimeOfDay", "time of day out of range %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// TimeRange is the half-open interval [Start, End) within a day.
type TimeRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

func NewTimeRange(start, end TimeOfDay) (TimeRange, error) {
	if start < 0 || end > EndOfDay {
		return TimeRange{}, apperror.Validation("pricing.NewTimeRange", "range %s-%s outside the day", start, end)
	}
	if start >= end {
		return TimeRange{}, apperror.Validation("pricing.NewTimeRange", "range start %s must be before end %s", start, end)
	}
	return TimeRange{Start: start, End: end}, nil
}

func ParseTimeRange(start, end string) (TimeRange, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeRange{}, err
	}
	return NewTimeRange(s, e)
}

func (r TimeRange) Contains(t TimeOfDay) bool {
	return r.Start <= t && t < r.End
}

func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}
