package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/interview"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/pkg/logger"
)

// WebSocketHandler drives a live interview over one connection: the client
// sends answers, the server streams back the interviewer's reply word by word
// followed by a turn summary.
type WebSocketHandler struct {
	orchestrator *interview.Orchestrator
}

func NewWebSocketHandler(orchestrator *interview.Orchestrator) *WebSocketHandler {
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

	for {
		var msg struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Answer    string `json:"answer"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "answer" {
			continue
		}
		if msg.SessionID == "" || msg.Answer == "" {
			h.sendError(c, "session_id and answer are required")
			continue
		}

		err = h.streamTurn(c, msg.SessionID, msg.Answer)
		if err != nil {
			logger.Error("Failed to stream turn", zap.String("session_id", msg.SessionID), zap.Error(err))
		}
	}
}

func (h *WebSocketHandler) streamTurn(c *websocket.Conn, sessionID, answer string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Thinking...")

	result, err := h.orchestrator.HandleTurn(ctx, sessionID, answer)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			h.sendError(c, "Session not found or expired")
		case errors.Is(err, session.ErrTurnInProgress):
			h.sendError(c, "Another turn is already being processed")
		default:
			h.sendError(c, "Failed to process turn")
		}
		return err
	}

	words := splitIntoWords(result.Utterance)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, result)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, result *interview.TurnResult) error {
	msg := map[string]interface{}{
		"type":             "complete",
		"session_id":       result.SessionID,
		"action":           result.Action,
		"current_topic_id": result.CurrentTopicID,
		"completed":        result.Completed,
		"latency_ms":       result.TotalLatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
