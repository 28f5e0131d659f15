package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/chat"
	"github.com/campus-agent/backend/internal/metrics"
	"github.com/campus-agent/backend/pkg/logger"
)

const wsTurnTimeout = 60 * time.Second

// WebSocketHandler streams chat answers over a persistent connection. One
// connection maps to one conversation: the first turn mints the session and
// every later turn reuses it.
type WebSocketHandler struct {
	orchestrator *chat.Orchestrator
}

func NewWebSocketHandler(orchestrator *chat.Orchestrator) *WebSocketHandler {
	return &WebSocketHandler{
		orchestrator: orchestrator,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	sessionID := ""

	for {
		var msg struct {
			Type      string `json:"type"`
			Question  string `json:"question"`
			UserID    string `json:"user_id"`
			SessionID string `json:"session_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if msg.SessionID != "" {
			sessionID = msg.SessionID
		}

		sessionID, err = h.streamTurn(c, msg.Question, msg.UserID, sessionID)
		if err != nil {
			logger.Error("Failed to stream chat turn", zap.Error(err))
			h.sendError(c, "Failed to process question")
		}
	}
}

// streamTurn runs one turn and returns the session ID to carry into the
// next turn on this connection.
func (h *WebSocketHandler) streamTurn(c *websocket.Conn, question, userID, sessionID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), wsTurnTimeout)
	defer cancel()

	start := time.Now()

	response, err := h.orchestrator.Chat(ctx, chat.Request{
		Question:  question,
		UserID:    userID,
		SessionID: sessionID,
	})

	metrics.ChatDuration.WithLabelValues("ws").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ChatTotal.WithLabelValues("error").Inc()
		return sessionID, err
	}

	metrics.ChatTotal.WithLabelValues("ok").Inc()

	for _, chunk := range answerChunks(response.Answer) {
		if err := h.sendChunk(c, chunk); err != nil {
			return response.SessionID, err
		}
	}

	if err := h.sendComplete(c, response); err != nil {
		return response.SessionID, err
	}

	return response.SessionID, nil
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "chunk",
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *chat.Response) error {
	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"session_id": response.SessionID,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// answerChunks splits an answer into word-sized stream chunks, keeping the
// spacing so the client can concatenate chunks verbatim.
func answerChunks(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		chunks[i] = w
	}
	return chunks
}
