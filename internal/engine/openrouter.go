package engine

import (
	"context"
	"fmt"

	"github.com/kalambet/alumnirag/internal/proxy"
)

// OpenRouterChatter serves completions from OpenRouter or any
// OpenAI-compatible endpoint. Requests use temperature 0, and JSON object
// mode whenever a schema is supplied.
type OpenRouterChatter struct {
	client *proxy.Client
}

// NewOpenRouterChatter wraps an existing proxy client.
func NewOpenRouterChatter(client *proxy.Client) *OpenRouterChatter {
	return &OpenRouterChatter{client: client}
}

func (c *OpenRouterChatter) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	req := proxy.ChatRequest{
		Model:       model,
		Messages:    make([]proxy.Message, len(messages)),
		Temperature: 0,
	}
	for i, m := range messages {
		req.Messages[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}
	if jsonSchema != nil {
		req.ResponseFormat = &proxy.ResponseFormat{Type: "json_object"}
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openrouter completion: %w", err)
	}
	return resp.Content(), nil
}
