package pipeline

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/kalambet/alumnirag/internal/profile"
	"github.com/kalambet/alumnirag/internal/temporal"
)

// Profile is the identity record of one alumnus backing a response.
type Profile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ProfilePic  string  `json:"profile_pic"`
	Headline    *string `json:"headline"`
	Summary     string  `json:"summary"`
	LinkedInURL *string `json:"linkedin_url"`
}

// Response is the externally visible outcome of a turn.
type Response struct {
	Response string    `json:"response"`
	Profiles []Profile `json:"profiles"`
}

// Assemble pairs the turn's final message with the profiles found in its tool
// messages. Eligibility is recomputed with the turn's qualifier so the list
// agrees with the evidence the answer was generated from.
func Assemble(turn *Turn, filter temporal.Filter) Response {
	var chunks []profile.Chunk
	for _, m := range turn.ToolMessages() {
		if m.Tool != nil {
			chunks = append(chunks, m.Tool.Chunks...)
		}
	}

	evidence := temporal.Dedupe(filter.Apply(turn.Qualifier, chunks))
	profiles := make([]Profile, 0, len(evidence))
	for _, ev := range evidence {
		texts := make([]string, len(ev.Chunks))
		for i, c := range ev.Chunks {
			texts[i] = c.Text
		}
		p := Profile{
			ID:          ev.ID,
			Name:        ev.Name,
			ProfilePic:  ev.ProfilePic,
			Summary:     strings.Join(texts, "\n\n"),
			LinkedInURL: CanonicalURL(ev.ID),
		}
		if h := ev.Headline(); h != "" {
			p.Headline = &h
		}
		profiles = append(profiles, p)
	}

	return Response{Response: turn.Final(), Profiles: profiles}
}

// CanonicalURL returns id as a canonical https link when it parses as an
// http(s) URL with a host, or nil otherwise. The host is lower-cased and
// IDNA-encoded; query, fragment and trailing slash are dropped.
func CanonicalURL(id string) *string {
	u, err := url.Parse(strings.TrimSpace(id))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil
	}
	host, err := idna.Lookup.ToASCII(strings.ToLower(u.Hostname()))
	if err != nil {
		return nil
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}

	s := "https://" + host + strings.TrimRight(u.EscapedPath(), "/")
	return &s
}
