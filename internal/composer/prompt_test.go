package composer

import (
	"strings"
	"testing"
	"time"

	"github.com/kalambet/alumnirag/internal/engine"
	"github.com/kalambet/alumnirag/internal/profile"
	"github.com/kalambet/alumnirag/internal/temporal"
)

var today = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func evidence(id, name string, texts ...string) temporal.Evidence {
	ev := temporal.Evidence{ID: id, Name: name, ProfilePic: "pic-" + id}
	for _, t := range texts {
		ev.Chunks = append(ev.Chunks, profile.Chunk{Text: t, Metadata: profile.Metadata{ID: id, Name: name}})
	}
	return ev
}

func TestCompose_Structure(t *testing.T) {
	c := New(0)
	msgs := c.Compose("Who works at Acme?", []temporal.Evidence{
		evidence("a", "Ann", "Role: Analyst", "School: GT"),
	}, today)

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != engine.RoleSystem || msgs[1].Role != engine.RoleUser {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	user := msgs[1].Content
	for _, want := range []string{
		"TODAY: June 2025",
		"1. Id: a\nName: Ann\nProfile Pic: pic-a\nContent: Role: Analyst\nContent: School: GT",
		"QUESTION:\nWho works at Acme?",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestCompose_ProfilesInRankOrder(t *testing.T) {
	c := New(0)
	msgs := c.Compose("q", []temporal.Evidence{
		evidence("first", "F", "x"),
		evidence("second", "S", "y"),
	}, today)

	user := msgs[1].Content
	i, j := strings.Index(user, "Id: first"), strings.Index(user, "Id: second")
	if i < 0 || j < 0 || i > j {
		t.Errorf("profiles out of order:\n%s", user)
	}
	if !strings.Contains(user, "2. Id: second") {
		t.Errorf("second profile not numbered 2:\n%s", user)
	}
}

func TestCompose_TokenBudget(t *testing.T) {
	c := New(40)
	big := strings.Repeat("word ", 200)
	msgs := c.Compose("q", []temporal.Evidence{
		evidence("huge", "H", big),
		evidence("small", "S", "short"),
	}, today)

	user := msgs[1].Content
	if strings.Contains(user, "Id: huge") {
		t.Error("oversized profile should be skipped")
	}
	if !strings.Contains(user, "1. Id: small") {
		t.Errorf("small profile should be kept and renumbered:\n%s", user)
	}
}

func TestNew_DefaultBudget(t *testing.T) {
	if got := New(-1).MaxContextTokens; got != defaultMaxContextTokens {
		t.Errorf("MaxContextTokens = %d, want %d", got, defaultMaxContextTokens)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}
