package intent

import (
	"github.com/kalambet/alumnirag/internal/engine"
)

const systemPrompt = `You help students find information about university alumni. Extract the search parameters mentioned in the user's latest message and return ONLY a single JSON object that conforms to the provided schema.

Fields:
- names: people's names
- titles: position titles (e.g. "Data Analyst")
- companies: company or organization names
- locations: cities, regions or countries
- skills: skills or technologies
- duration: time periods; write a start and end pair as a single entry such as "January 2020 to Present" and expand abbreviated months to full names
- reply: a short direct answer, only when the message is not a question about alumni

Use an empty array for every parameter the user did not mention. Never invent values.`

// BuildPrompt constructs the chat messages for slot extraction. history is
// the transcript preceding the latest user message.
func BuildPrompt(query string, history []engine.Message) []engine.Message {
	messages := make([]engine.Message, 0, len(history)+2)
	messages = append(messages, engine.Message{Role: engine.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		if m.Role == engine.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, engine.Message{
		Role:    engine.RoleUser,
		Content: query,
	})
	return messages
}

func stringArray(desc string) engine.SchemaProperty {
	return engine.SchemaProperty{Type: "array", Description: desc, Items: &engine.SchemaProperty{Type: "string"}}
}

// extractionSchema describes the JSON object the model must return.
func extractionSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"names":     stringArray("People's names"),
			"titles":    stringArray("Position titles"),
			"companies": stringArray("Companies or organizations"),
			"locations": stringArray("Locations"),
			"skills":    stringArray("Skills or technologies"),
			"duration":  stringArray("Time periods"),
			"reply":     {Type: "string", Description: "Direct answer when no search is needed"},
		},
		Required: []string{"names", "titles", "companies", "locations", "skills", "duration"},
	}
}
