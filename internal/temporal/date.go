// Package temporal decides which retrieved chunks apply at a point in time
// and collapses the survivors into per-profile evidence.
package temporal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/alumnirag/internal/profile"
)

// ErrUnparseableDate is returned when free-text date cannot be read at month
// granularity.
var ErrUnparseableDate = errors.New("unparseable date")

// Month counts months since year zero so that comparisons are plain integer
// comparisons.
type Month int

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// NewMonth builds a Month from a calendar year and month.
func NewMonth(year int, m time.Month) Month {
	return Month(year*12 + int(m) - 1)
}

func (m Month) Year() int { return int(m) / 12 }

func (m Month) Month() time.Month { return time.Month(int(m)%12 + 1) }

func (m Month) String() string {
	return fmt.Sprintf("%s %d", m.Month().String()[:3], m.Year())
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseMonth reads "Jan 2020", "January 2020", "01/2020", "2020-01" or a
// bare year. A bare year resolves to January, or to December when end is
// set, so that a year-only window covers the whole year.
func ParseMonth(s string, end bool) (Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnparseableDate)
	}

	if y, ok := parseYear(s); ok {
		if end {
			return NewMonth(y, time.December), nil
		}
		return NewMonth(y, time.January), nil
	}

	if a, b, ok := strings.Cut(s, "/"); ok {
		return numericMonth(b, a, s)
	}
	if a, b, ok := strings.Cut(s, "-"); ok && len(a) == 4 {
		return numericMonth(a, b, s)
	}

	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 2 {
		name := strings.ToLower(strings.TrimSuffix(fields[0], "."))
		if m, ok := monthNames[name]; ok {
			if y, ok := parseYear(fields[1]); ok {
				return NewMonth(y, m), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}

func numericMonth(year, month, orig string) (Month, error) {
	y, ok := parseYear(strings.TrimSpace(year))
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableDate, orig)
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableDate, orig)
	}
	return NewMonth(y, time.Month(m)), nil
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 2200 {
		return 0, false
	}
	return y, true
}

// Window is the span an experience or education entry covers. End may be
// profile.Present or profile.Unknown, both meaning ongoing.
type Window struct {
	Start string
	End   string
}

// Ongoing reports whether the window has no known end.
func (w Window) Ongoing() bool {
	end := strings.TrimSpace(w.End)
	return end == profile.Present || end == profile.Unknown
}

// WindowOf extracts the window of a chunk. A summary chunk has no window and
// yields {Unknown, Unknown}; Filter.Apply does not judge such chunks by it.
func WindowOf(c profile.Chunk) Window {
	d := c.Duration()
	if d == "" {
		return Window{Start: profile.Unknown, End: profile.Unknown}
	}
	start, end, ok := strings.Cut(d, " to ")
	if !ok {
		return Window{Start: strings.TrimSpace(d), End: profile.Unknown}
	}
	return Window{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
}

// Active reports whether at falls inside the window. An ongoing end always
// satisfies the upper bound. An unknown start satisfies the lower bound.
// Any other unreadable bound yields failOpen.
func Active(w Window, at Month, failOpen bool) bool {
	if strings.TrimSpace(w.Start) != profile.Unknown {
		start, err := ParseMonth(w.Start, false)
		if err != nil {
			return failOpen
		}
		if at < start {
			return false
		}
	}
	if w.Ongoing() {
		return true
	}
	end, err := ParseMonth(w.End, true)
	if err != nil {
		return failOpen
	}
	return at <= end
}
