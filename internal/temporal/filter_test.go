package temporal

import (
	"testing"
	"time"

	"github.com/kalambet/alumnirag/internal/profile"
)

var now = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func expChunk(id, start, end string) profile.Chunk {
	rec := profile.Record{
		ID:   id,
		Name: "Name " + id,
		Experiences: []profile.Experience{
			{Title: "Data Analyst", Company: "Acme", StartDate: start, EndDate: end},
		},
	}
	return profile.Segment(rec)[1]
}

func TestQualifierFor(t *testing.T) {
	tests := []struct {
		question string
		present  bool
		want     Qualifier
	}{
		{"Who worked at Acme?", false, Qualifier{Kind: NoQualifier}},
		{"Who worked at Acme?", true, Qualifier{Kind: Current}},
		{"Who is CURRENTLY at Acme?", false, Qualifier{Kind: Current}},
		{"Who works there now?", false, Qualifier{Kind: Current}},
		{"Who is nowhere near Acme?", false, Qualifier{Kind: NoQualifier}},
		{"Who worked at Acme as of 2021?", false, Qualifier{Kind: ActiveOn, At: NewMonth(2021, time.December)}},
		{"Who worked at Acme as of 2030?", false, Qualifier{Kind: ActiveOn, At: NewMonth(2025, time.June)}},
		{"Who worked at Acme as of March 2021?", false, Qualifier{Kind: ActiveOn, At: NewMonth(2021, time.March)}},
		{"Who joined Acme after May 2022?", false, Qualifier{Kind: ActiveOn, At: NewMonth(2022, time.May)}},
		{"Who was at Acme in Seattle in Jan 2019?", false, Qualifier{Kind: ActiveOn, At: NewMonth(2019, time.January)}},
		{"Who is currently at Acme as of 2021?", false, Qualifier{Kind: Current}},
	}
	for _, tt := range tests {
		got := QualifierFor(tt.question, tt.present, now)
		if got != tt.want {
			t.Errorf("QualifierFor(%q, %v) = %+v, want %+v", tt.question, tt.present, got, tt.want)
		}
	}
}

func TestFilter_Current(t *testing.T) {
	chunks := []profile.Chunk{
		expChunk("a", "Jan 2020", "Present"),
		expChunk("b", "Jan 2018", "Dec 2019"),
		expChunk("c", "2021", "Unknown"),
	}
	got := Filter{FailOpen: true}.Apply(Qualifier{Kind: Current}, chunks)
	if len(got) != 2 || got[0].Metadata.ID != "a" || got[1].Metadata.ID != "c" {
		t.Errorf("Current kept %v", ids(got))
	}
}

func TestFilter_ActiveOn(t *testing.T) {
	chunks := []profile.Chunk{
		expChunk("a", "Jan 2020", "Present"),
		expChunk("b", "Jan 2018", "Dec 2019"),
		expChunk("c", "someday", "whenever"),
	}
	q := Qualifier{Kind: ActiveOn, At: NewMonth(2019, time.June)}

	open := Filter{FailOpen: true}.Apply(q, chunks)
	if len(open) != 2 || open[0].Metadata.ID != "b" || open[1].Metadata.ID != "c" {
		t.Errorf("fail-open kept %v", ids(open))
	}
	closed := Filter{FailOpen: false}.Apply(q, chunks)
	if len(closed) != 1 || closed[0].Metadata.ID != "b" {
		t.Errorf("fail-closed kept %v", ids(closed))
	}
}

func summaryOf(id string) profile.Chunk {
	return profile.Segment(profile.Record{ID: id, Name: "Name " + id})[0]
}

func TestFilter_SummaryFollowsDatedChunks(t *testing.T) {
	chunks := []profile.Chunk{
		summaryOf("a"),
		expChunk("a", "Jan 2020", "Present"),
		expChunk("b", "Jan 2018", "Dec 2019"),
		summaryOf("b"),
		summaryOf("c"),
	}

	got := Filter{FailOpen: true}.Apply(Qualifier{Kind: Current}, chunks)
	if len(got) != 2 || got[0].Metadata.Kind != profile.KindSummary || got[0].Metadata.ID != "a" || got[1].Metadata.ID != "a" {
		t.Errorf("Current kept %v", ids(got))
	}

	got = Filter{FailOpen: true}.Apply(Qualifier{Kind: ActiveOn, At: NewMonth(2019, time.June)}, chunks)
	if len(got) != 2 || got[0].Metadata.ID != "b" || got[1].Metadata.Kind != profile.KindSummary {
		t.Errorf("ActiveOn kept %v", ids(got))
	}

	if got := (Filter{}).Apply(Qualifier{}, chunks); len(got) != len(chunks) {
		t.Errorf("no qualifier kept %d of %d", len(got), len(chunks))
	}
}

func TestFilter_NoQualifierKeepsAll(t *testing.T) {
	chunks := []profile.Chunk{expChunk("a", "2000", "2001"), expChunk("b", "x", "y")}
	if got := (Filter{}).Apply(Qualifier{}, chunks); len(got) != 2 {
		t.Errorf("expected all chunks, got %v", ids(got))
	}
}

func TestDedupe(t *testing.T) {
	a1 := expChunk("a", "2020", "Present")
	b1 := expChunk("b", "2020", "Present")
	a2 := profile.Segment(profile.Record{ID: "a", Name: "Name a"})[0]

	ev := Dedupe([]profile.Chunk{a1, b1, a2})
	if len(ev) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(ev))
	}
	if ev[0].ID != "a" || ev[1].ID != "b" {
		t.Errorf("order = %s, %s", ev[0].ID, ev[1].ID)
	}
	if len(ev[0].Chunks) != 2 {
		t.Errorf("profile a has %d chunks, want 2", len(ev[0].Chunks))
	}
	if ev[0].Headline() != "Data Analyst" {
		t.Errorf("headline = %q", ev[0].Headline())
	}
}

func ids(chunks []profile.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Metadata.ID
	}
	return out
}
