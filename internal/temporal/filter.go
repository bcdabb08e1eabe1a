package temporal

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kalambet/alumnirag/internal/profile"
)

// QualifierKind selects how retrieved chunks are restricted.
type QualifierKind int

const (
	// NoQualifier keeps every retrieved chunk.
	NoQualifier QualifierKind = iota
	// Current keeps chunks whose window has not ended.
	Current
	// ActiveOn keeps chunks active on Qualifier.At.
	ActiveOn
)

func (k QualifierKind) String() string {
	switch k {
	case Current:
		return "current"
	case ActiveOn:
		return "active_on"
	}
	return "none"
}

// Qualifier is the temporal restriction a question places on its evidence.
type Qualifier struct {
	Kind QualifierKind
	At   Month
}

var (
	currentRe = regexp.MustCompile(`(?i)\b(current|currently|now|present)\b`)
	asOfRe    = regexp.MustCompile(`(?i)\bas of\s+(?:([a-z]+\.?)\s+)?(\d{4})\b`)
	onDateRe  = regexp.MustCompile(`(?i)\b(?:after|since|in|during)\s+([a-z]+\.?)\s+(\d{4})\b`)
)

// QualifierFor derives the restriction from the question text. present is
// true when the canonicalized query was in the present tense. A present
// reading wins over an explicit date.
func QualifierFor(question string, present bool, now time.Time) Qualifier {
	if present || currentRe.MatchString(question) {
		return Qualifier{Kind: Current}
	}

	nowMonth := MonthOf(now)
	if m := asOfRe.FindStringSubmatch(question); m != nil {
		if m[1] != "" {
			if at, err := ParseMonth(m[1]+" "+m[2], false); err == nil {
				return Qualifier{Kind: ActiveOn, At: at}
			}
		}
		if at, err := ParseMonth(m[2], true); err == nil {
			if nowMonth < at {
				at = nowMonth
			}
			return Qualifier{Kind: ActiveOn, At: at}
		}
	}

	for _, m := range onDateRe.FindAllStringSubmatch(question, -1) {
		if _, ok := monthNames[strings.ToLower(strings.TrimSuffix(m[1], "."))]; !ok {
			continue
		}
		if at, err := ParseMonth(m[1]+" "+m[2], false); err == nil {
			return Qualifier{Kind: ActiveOn, At: at}
		}
	}
	return Qualifier{Kind: NoQualifier}
}

// Filter applies a Qualifier to retrieved chunks.
type Filter struct {
	// FailOpen keeps chunks whose dates cannot be parsed.
	FailOpen bool
}

// Apply returns the chunks eligible under q, preserving order. A chunk
// without a window (a summary) carries no date of its own: under a
// qualifier it is kept only when a dated chunk of the same profile is.
func (f Filter) Apply(q Qualifier, chunks []profile.Chunk) []profile.Chunk {
	if q.Kind == NoQualifier {
		return chunks
	}

	keep := make([]bool, len(chunks))
	dated := make(map[string]bool)
	for i, c := range chunks {
		if !hasWindow(c) {
			continue
		}
		w := WindowOf(c)
		switch q.Kind {
		case Current:
			keep[i] = w.Ongoing()
		case ActiveOn:
			keep[i] = Active(w, q.At, f.FailOpen)
			if !dateReadable(w) {
				slog.Debug("temporal: unparseable date", "id", c.Metadata.ID, "window", w.Start+" to "+w.End, "kept", keep[i])
			}
		}
		if keep[i] {
			dated[c.Metadata.ID] = true
		}
	}

	out := make([]profile.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if keep[i] || (!hasWindow(c) && dated[c.Metadata.ID]) {
			out = append(out, c)
		}
	}
	return out
}

func hasWindow(c profile.Chunk) bool {
	return c.Duration() != ""
}

func dateReadable(w Window) bool {
	if w.Start != profile.Unknown {
		if _, err := ParseMonth(w.Start, false); err != nil {
			return false
		}
	}
	if !w.Ongoing() {
		if _, err := ParseMonth(w.End, true); err != nil {
			return false
		}
	}
	return true
}
