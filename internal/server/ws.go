package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is intended for local clients; the CLI and web UI do not
	// send an Origin the default check would accept.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsInbound struct {
	Message string `json:"message"`
}

type wsOutbound struct {
	Chunk string `json:"chunk,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleWebSocket runs a chat loop over a WebSocket connection: each
// inbound message is answered with a streamed sequence of chunk frames
// followed by a done frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	s.log.Debug("websocket client connected: %s", r.RemoteAddr)

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read: %v", err)
			}
			return
		}

		if in.Message == "" {
			if err := conn.WriteJSON(wsOutbound{Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		for chunk := range s.engine.ChatStream(r.Context(), in.Message) {
			if err := conn.WriteJSON(wsOutbound{Chunk: chunk}); err != nil {
				return
			}
		}
		if err := conn.WriteJSON(wsOutbound{Done: true}); err != nil {
			return
		}
	}
}
