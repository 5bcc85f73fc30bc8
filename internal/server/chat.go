package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string `json:"type"` // "ask" or "quick"
	Content string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type    string   `json:"type"` // "answer" or "error"
	Content string   `json:"content"`
	Sources []string `json:"sources,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, chatResponse{Type: "error", Content: "invalid message format"})
			continue
		}
		if req.Content == "" {
			s.send(conn, chatResponse{Type: "error", Content: "content is required"})
			continue
		}

		var question string
		switch req.Type {
		case "ask":
			question, err = resolveQuestion(req.Content, "")
		case "quick":
			question, err = resolveQuestion("", req.Content)
		default:
			s.send(conn, chatResponse{Type: "error", Content: "unknown message type: " + req.Type})
			continue
		}
		if err != nil {
			s.send(conn, chatResponse{Type: "error", Content: err.Error()})
			continue
		}

		a := s.orch.Ask(r.Context(), question)
		s.send(conn, chatResponse{Type: "answer", Content: a.Text, Sources: a.Sources})
	}
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}
