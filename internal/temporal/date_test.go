package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/kalambet/alumnirag/internal/profile"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		end  bool
		want Month
	}{
		{"Jan 2020", false, NewMonth(2020, time.January)},
		{"January 2020", false, NewMonth(2020, time.January)},
		{"Sept. 2018", false, NewMonth(2018, time.September)},
		{"01/2020", false, NewMonth(2020, time.January)},
		{"2020-11", false, NewMonth(2020, time.November)},
		{"2020", false, NewMonth(2020, time.January)},
		{"2020", true, NewMonth(2020, time.December)},
	}
	for _, tt := range tests {
		got, err := ParseMonth(tt.in, tt.end)
		if err != nil {
			t.Errorf("ParseMonth(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMonth(%q, %v) = %s, want %s", tt.in, tt.end, got, tt.want)
		}
	}
}

func TestParseMonth_Unparseable(t *testing.T) {
	for _, in := range []string{"", "sometime", "13/2020", "Smarch 2020", "20"} {
		if _, err := ParseMonth(in, false); !errors.Is(err, ErrUnparseableDate) {
			t.Errorf("ParseMonth(%q) err = %v, want ErrUnparseableDate", in, err)
		}
	}
}

func TestActive(t *testing.T) {
	w := Window{Start: "Jan 2020", End: profile.Present}

	cases := []struct {
		at   Month
		want bool
	}{
		{NewMonth(2025, time.June), true},
		{NewMonth(2020, time.January), true},
		{NewMonth(2019, time.December), false},
	}
	for _, c := range cases {
		if got := Active(w, c.at, true); got != c.want {
			t.Errorf("Active(%v, %s) = %v, want %v", w, c.at, got, c.want)
		}
	}
}

func TestActive_UnknownEndIsOngoing(t *testing.T) {
	w := Window{Start: "2015", End: profile.Unknown}
	if !Active(w, NewMonth(2040, time.March), false) {
		t.Error("unknown end should satisfy any upper bound")
	}
}

func TestActive_ClosedWindow(t *testing.T) {
	w := Window{Start: "Jun 2019", End: "2021"}
	if !Active(w, NewMonth(2021, time.December), false) {
		t.Error("year-only end should cover December")
	}
	if Active(w, NewMonth(2022, time.January), false) {
		t.Error("month after end should be inactive")
	}
}

func TestActive_FailOpen(t *testing.T) {
	w := Window{Start: "a while ago", End: "recently"}
	at := NewMonth(2024, time.May)
	if !Active(w, at, true) {
		t.Error("fail open should keep unparseable window")
	}
	if Active(w, at, false) {
		t.Error("fail closed should drop unparseable window")
	}
}

func TestWindowOf(t *testing.T) {
	chunks := profile.Segment(profile.Record{
		ID: "p1",
		Experiences: []profile.Experience{
			{StartDate: "Jan 2020", EndDate: "Present"},
		},
	})
	if w := WindowOf(chunks[0]); !w.Ongoing() {
		t.Errorf("summary window %v should be ongoing", w)
	}
	if w := WindowOf(chunks[1]); w.Start != "Jan 2020" || w.End != "Present" {
		t.Errorf("experience window = %v", w)
	}
}
