// Package timeday provides the hour/minute/weekday-set value used by all
// schedule rules and triggers.
package timeday

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrOutOfRange is returned when a TimeDay field is outside its valid range.
var ErrOutOfRange = errors.New("timeday: out of range")

const minutesPerDay = 24 * 60

// Weekday is a day of the week where Monday is 0 and Sunday is 6.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

func (d Weekday) String() string {
	if int(d) < len(weekdayNames) {
		return weekdayNames[d]
	}
	return fmt.Sprintf("Weekday(%d)", d)
}

// WeekdayOf converts a time.Weekday (Sunday=0) to a Weekday (Monday=0).
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// daySet is a 7-bit set, bit 0 = Monday.
type daySet uint8

const allDays daySet = 0x7f

func (s daySet) has(d Weekday) bool { return s&(1<<d) != 0 }

// prev moves every day one step back (Monday wraps to Sunday).
func (s daySet) prev() daySet {
	return ((s >> 1) | ((s & 1) << 6)) & allDays
}

// next moves every day one step forward (Sunday wraps to Monday).
func (s daySet) next() daySet {
	return ((s << 1) & allDays) | (s >> 6)
}

// TimeDay is an immutable hour:minute on a non-empty set of weekdays.
// The zero value matches nothing and is only useful as "never checked".
type TimeDay struct {
	hour   uint8
	minute uint8
	days   daySet
}

// New validates and builds a TimeDay. Duplicate days are folded.
func New(hour, minute int, days ...Weekday) (TimeDay, error) {
	if hour < 0 || hour > 23 {
		return TimeDay{}, fmt.Errorf("%w: hour has to be 0-23, was %d", ErrOutOfRange, hour)
	}
	if minute < 0 || minute > 59 {
		return TimeDay{}, fmt.Errorf("%w: minute has to be 0-59, was %d", ErrOutOfRange, minute)
	}
	if len(days) == 0 {
		return TimeDay{}, fmt.Errorf("%w: days must not be empty", ErrOutOfRange)
	}
	if len(days) > 7 {
		return TimeDay{}, fmt.Errorf("%w: at most 7 days allowed, got %d", ErrOutOfRange, len(days))
	}

	var set daySet
	for _, d := range days {
		if d > Sunday {
			return TimeDay{}, fmt.Errorf("%w: every day has to be 0-6, days were %v", ErrOutOfRange, []Weekday(days))
		}
		set |= 1 << d
	}

	return TimeDay{hour: uint8(hour), minute: uint8(minute), days: set}, nil
}

// MustNew is like New but panics on invalid input. Use only where the
// values have already been validated.
func MustNew(hour, minute int, days ...Weekday) TimeDay {
	t, err := New(hour, minute, days...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromTime returns the TimeDay of t in its own location, with a single day.
func FromTime(t time.Time) TimeDay {
	return MustNew(t.Hour(), t.Minute(), WeekdayOf(t.Weekday()))
}

// Now returns the current TimeDay in loc.
func Now(loc *time.Location) TimeDay {
	return FromTime(time.Now().In(loc))
}

func (t TimeDay) Hour() int   { return int(t.hour) }
func (t TimeDay) Minute() int { return int(t.minute) }

// Days returns the weekdays in ascending order.
func (t TimeDay) Days() []Weekday {
	days := make([]Weekday, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		if t.days.has(d) {
			days = append(days, d)
		}
	}
	return days
}

// HasDay reports whether d is part of the day set.
func (t TimeDay) HasDay(d Weekday) bool {
	return t.days.has(d)
}

// IsZero reports whether t is the zero value.
func (t TimeDay) IsZero() bool {
	return t == TimeDay{}
}

// Shift moves the time by the given signed offsets. Crossing midnight moves
// every day in the set, wrapping across the week boundary.
func (t TimeDay) Shift(hours, minutes int) TimeDay {
	total := int(t.hour)*60 + int(t.minute) + hours*60 + minutes
	days := t.days

	for total < 0 {
		days = days.prev()
		total += minutesPerDay
	}
	for total >= minutesPerDay {
		days = days.next()
		total -= minutesPerDay
	}

	return TimeDay{hour: uint8(total / 60), minute: uint8(total % 60), days: days}
}

// SameMinute reports whether t and other denote the same minute on the same days.
func (t TimeDay) SameMinute(other TimeDay) bool {
	return t == other
}

// Matches reports whether now (a single-day TimeDay) falls on t.
func (t TimeDay) Matches(now TimeDay) bool {
	if t.hour != now.hour || t.minute != now.minute {
		return false
	}
	return t.days&now.days != 0
}

// String formats like 15:20@[Mo Tu].
func (t TimeDay) String() string {
	names := make([]string, 0, 7)
	for _, d := range t.Days() {
		names = append(names, d.String())
	}
	return fmt.Sprintf("%02d:%02d@[%s]", t.hour, t.minute, strings.Join(names, " "))
}

// wireTimeDay keeps days as ints; a []uint8 kind would encode as base64.
type wireTimeDay struct {
	Hour   int   `json:"hour"`
	Minute int   `json:"minute"`
	Days   []int `json:"days"`
}

// MarshalJSON encodes as {"hour":7,"minute":0,"days":[0,1]}.
func (t TimeDay) MarshalJSON() ([]byte, error) {
	days := make([]int, 0, 7)
	for _, d := range t.Days() {
		days = append(days, int(d))
	}
	return json.Marshal(wireTimeDay{Hour: t.Hour(), Minute: t.Minute(), Days: days})
}

// UnmarshalJSON decodes and validates.
func (t *TimeDay) UnmarshalJSON(data []byte) error {
	var w wireTimeDay
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	days := make([]Weekday, 0, len(w.Days))
	for _, d := range w.Days {
		if d < 0 || d > int(Sunday) {
			return fmt.Errorf("%w: every day has to be 0-6, days were %v", ErrOutOfRange, w.Days)
		}
		days = append(days, Weekday(d))
	}
	parsed, err := New(w.Hour, w.Minute, days...)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
