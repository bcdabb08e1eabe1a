package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/alumnirag/internal/pipeline"
	"github.com/kalambet/alumnirag/internal/temporal"
)

const maxRequestBodySize = 1 << 20 // 1MB

// TurnRunner runs one conversational turn.
type TurnRunner interface {
	Run(ctx context.Context, question string, prior []pipeline.Message) (*pipeline.Turn, error)
	Filter() temporal.Filter
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// NewChatHandler returns the HTTP API: POST /chat and GET /health. When
// tokens are given, /chat requires one of them as a bearer token.
func NewChatHandler(runner TurnRunner, tokens ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(tokens...))
		r.Post("/chat", handleChat(runner))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleChat(runner TurnRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required and must not be empty")
			return
		}

		turn, err := runner.Run(r.Context(), req.Message, nil)
		if err != nil {
			slog.Error("chat turn failed", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "internal server error")
			return
		}

		resp := pipeline.Assemble(turn, runner.Filter())
		slog.Debug("chat turn answered", "turn", turn.ID, "profiles", len(resp.Profiles), "faults", len(turn.Faults))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
