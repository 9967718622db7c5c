// Package devbackend is a small stand-in for the chat backend, used for
// local development of the TUI and as a fake server in tests.
package devbackend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"altron/internal/backend"
	"altron/internal/chat"
)

// DefaultModels is the catalogue served when none is supplied.
var DefaultModels = []backend.Model{
	{ID: "llama-3.2-3b-instruct", Provider: "lmstudio", Type: backend.ModelChat},
	{ID: "qwen2.5-7b-instruct", Alias: "qwen", Provider: "lmstudio", Type: backend.ModelChat},
	{ID: "text-embedding-nomic-embed-text-v1.5", Provider: "lmstudio", Type: backend.ModelEmbedding},
	{ID: "gpt-4o-mini", Provider: "openai", Type: backend.ModelChat},
}

type Server struct {
	models  []backend.Model
	healthy atomic.Bool
	logger  *zap.Logger
}

func New(models []backend.Model, logger *zap.Logger) *Server {
	if models == nil {
		models = DefaultModels
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{models: models, logger: logger}
	s.healthy.Store(true)
	return s
}

// SetHealthy flips the health endpoint between 200 and 503.
func (s *Server) SetHealthy(ok bool) { s.healthy.Store(ok) }

// Router mounts the API under /api/v1.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/providers/models", s.listModels)
		r.Post("/converse", s.converse)
	})
	r.Put("/dev/health", s.setHealth)
	return r
}

func (s *Server) setHealth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Healthy *bool `json:"healthy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Healthy == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "expected {\"healthy\": bool}"})
		return
	}
	s.SetHealthy(*body.Healthy)
	s.logger.Info("health toggled", zap.Bool("healthy", *body.Healthy))
	writeJSON(w, http.StatusOK, map[string]bool{"healthy": *body.Healthy})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if !s.healthy.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	filter := strings.TrimSpace(r.URL.Query().Get("type_filter"))

	out := make([]backend.Model, 0, len(s.models))
	for _, m := range s.models {
		if filter != "" && string(m.Type) != filter {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type converseRequest struct {
	Model struct {
		ID string `json:"id"`
	} `json:"model"`
	MessageThread chat.Snapshot `json:"message_thread"`
}

func (s *Server) converse(w http.ResponseWriter, r *http.Request) {
	var req converseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}
	user, ok := req.MessageThread.LastOfRole(chat.RoleUser)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "thread has no user message"})
		return
	}
	model := req.Model.ID
	if model == "" {
		model = "default"
	}
	s.logger.Info("converse", zap.String("thread_id", req.MessageThread.ID), zap.String("model", model))
	writeJSON(w, http.StatusOK, chat.NewAssistantMessage("["+model+"] "+user.Content))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
