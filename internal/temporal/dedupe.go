package temporal

import "github.com/kalambet/alumnirag/internal/profile"

// Evidence is every surviving chunk of a single profile.
type Evidence struct {
	ID         string
	Name       string
	ProfilePic string
	Chunks     []profile.Chunk
}

// Headline returns the first role among the chunks, or "" when none has one.
func (e Evidence) Headline() string {
	for _, c := range e.Chunks {
		if c.Metadata.Role != nil {
			return *c.Metadata.Role
		}
	}
	return ""
}

// Dedupe groups chunks by profile id, ordering profiles by first appearance.
func Dedupe(chunks []profile.Chunk) []Evidence {
	index := make(map[string]int)
	var out []Evidence
	for _, c := range chunks {
		id := c.Metadata.ID
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, Evidence{ID: id, Name: c.Metadata.Name, ProfilePic: c.Metadata.ProfilePic})
		}
		out[i].Chunks = append(out[i].Chunks, c)
	}
	return out
}
