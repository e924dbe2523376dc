// Package server exposes the conversation engine over HTTP and
// WebSocket: JSON request/response for single turns, SSE and WS for
// streaming.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tars/internal/engine"
	"tars/internal/logging"
	"tars/internal/memory"
)

// Conversationalist is the engine surface the transport needs.
type Conversationalist interface {
	Chat(ctx context.Context, input string) string
	ChatStream(ctx context.Context, input string) <-chan string
	Greeting() string
	Settings() engine.SettingsPercent
	UpdateSettings(humor, honesty *float64) engine.SettingsPercent
	ClearMemory() error
	History() []memory.Message
	ActiveConversationID() string
	Describe() (provider string, rag bool)
}

// Server wires the engine behind a chi router.
type Server struct {
	engine Conversationalist
	log    *logging.Logger
}

// New creates a Server for the given engine.
func New(eng Conversationalist) *Server {
	return &Server{
		engine: eng,
		log:    logging.Get(logging.CategoryServer),
	}
}

// Router builds the HTTP surface.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(s.recovery)

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/chat/stream", s.handleChatStream)
	r.Get("/settings", s.handleGetSettings)
	r.Post("/settings", s.handleUpdateSettings)
	r.Get("/history", s.handleHistory)
	r.Delete("/memory", s.handleClearMemory)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// ListenAndServe blocks serving the API until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("%s %s (%dms)", r.Method, r.URL.Path, time.Since(start).Milliseconds())
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("panic on %s: %v", r.URL.Path, err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
