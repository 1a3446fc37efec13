package domain

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Season is an austral-hemisphere season label.
type Season string

const (
	SeasonUnknown Season = ""
	Summer        Season = "summer"
	Autumn        Season = "autumn"
	Winter        Season = "winter"
	Spring        Season = "spring"
)

// Seasons lists the four seasons in calendar order starting from summer.
var Seasons = []Season{Summer, Autumn, Winter, Spring}

// String returns the label, or "unknown".
func (s Season) String() string {
	if s == SeasonUnknown {
		return "unknown"
	}
	return string(s)
}

// Known reports whether s is one of the four seasons.
func (s Season) Known() bool {
	switch s {
	case Summer, Autumn, Winter, Spring:
		return true
	default:
		return false
	}
}

// Code is the three-letter abbreviation used in output field names.
func (s Season) Code() string {
	switch s {
	case Summer:
		return "sum"
	case Autumn:
		return "aut"
	case Winter:
		return "win"
	case Spring:
		return "spr"
	default:
		return "unk"
	}
}

// ClassifyDate maps a calendar day to its austral season. Only month and day
// are used; start days are inclusive:
//
//	summer  21 Dec – 19 Mar
//	autumn  20 Mar – 19 Jun
//	winter  20 Jun – 21 Sep
//	spring  22 Sep – 20 Dec
//
// The year plays no part, so the zero time is 1 January and summer. Missing
// dates are nil or blank values, see IsBlank.
func ClassifyDate(t time.Time) Season {
	m, d := t.Month(), t.Day()
	switch {
	case m == time.December && d >= 21, m == time.January, m == time.February, m == time.March && d < 20:
		return Summer
	case m == time.March && d >= 20, m == time.April, m == time.May, m == time.June && d < 20:
		return Autumn
	case m == time.June && d >= 20, m == time.July, m == time.August, m == time.September && d < 22:
		return Winter
	case m == time.September && d >= 22, m == time.October, m == time.November, m == time.December && d < 21:
		return Spring
	default:
		return SeasonUnknown
	}
}

// Classify accepts any property value and returns its season. Timestamps and
// strings are understood; nil, blank, unparseable or otherwise-typed values
// yield SeasonUnknown. It never panics.
func Classify(v any) Season {
	switch val := v.(type) {
	case time.Time:
		return ClassifyDate(val)
	case *time.Time:
		if val == nil {
			return SeasonUnknown
		}
		return ClassifyDate(*val)
	case string:
		t, ok := ParseDate(val)
		if !ok {
			return SeasonUnknown
		}
		return ClassifyDate(t)
	default:
		return SeasonUnknown
	}
}

// ParseDate leniently parses a timestamp string. The result keeps the offset
// written in the string so the calendar day matches what the source recorded.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// dateparse has panicked on pathological inputs in the past.
	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	parsed, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// IsBlank reports whether a date property is missing: null or an empty string.
func IsBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
