package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

type settingsRequest struct {
	Humor   *int `json:"humor"`
	Honesty *int `json:"honesty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	provider, rag := s.engine.Describe()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"provider": provider,
		"rag":      rag,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply := s.engine.Chat(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, chatResponse{
		Response:       reply,
		ConversationID: s.engine.ActiveConversationID(),
	})
}

// handleChatStream emits the reply as server-sent events, one chunk per
// data frame, terminated by [DONE].
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range s.engine.ChatStream(r.Context(), req.Message) {
		payload, err := json.Marshal(map[string]string{"chunk": chunk})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Settings())
}

// handleUpdateSettings accepts 0-100 integer dials and reports the
// resulting state in the same scale.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Humor == nil && req.Honesty == nil {
		writeError(w, http.StatusBadRequest, "humor or honesty is required")
		return
	}

	var humor, honesty *float64
	if req.Humor != nil {
		v := float64(*req.Humor) / 100
		humor = &v
	}
	if req.Honesty != nil {
		v := float64(*req.Honesty) / 100
		honesty = &v
	}

	writeJSON(w, http.StatusOK, s.engine.UpdateSettings(humor, honesty))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	msgs := s.engine.History()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
	})
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearMemory(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
