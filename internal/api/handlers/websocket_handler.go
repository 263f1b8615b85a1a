package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/answer"
	"github.com/sitebot/backend/internal/metrics"
	"github.com/sitebot/backend/internal/session"
	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine   *answer.Engine
	sessions session.Store
}

func NewWebSocketHandler(engine *answer.Engine, sessions session.Store) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		sessions: sessions,
	}
}

// HandleConnection serves the widget's persistent chat channel. One frame in,
// one frame out; the session id is carried in each frame so a reconnecting
// client keeps its conversation.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	chatbotID := c.Params("chatbotId")

	logger.Info("WebSocket connection established", zap.String("chatbot_id", chatbotID))
	metrics.WebsocketConnections.Inc()

	defer func() {
		c.Close()
		metrics.WebsocketConnections.Dec()
		logger.Info("WebSocket connection closed", zap.String("chatbot_id", chatbotID))
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"sessionId"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "message" || msg.Content == "" {
			continue
		}

		ctx := context.Background()
		result, err := h.engine.SendMessage(ctx, chatbotID, msg.SessionID, msg.Content)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.sendError(c, "Chatbot not found")
				break
			}
			logger.Error("Failed to process WebSocket message", zap.Error(err))
			h.sendError(c, "Failed to process message")
			continue
		}

		if err := h.sessions.Touch(ctx, result.SessionID, chatbotID); err != nil {
			logger.Warn("Failed to refresh session", zap.Error(err))
		}

		reply := map[string]string{
			"type":      "response",
			"content":   result.Response,
			"messageId": result.MessageID,
			"sessionId": result.SessionID,
		}
		if err := c.WriteJSON(reply); err != nil {
			logger.Error("Failed to write WebSocket response", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, message string) {
	err := c.WriteJSON(map[string]string{
		"type":    "error",
		"content": message,
	})
	if err != nil {
		logger.Error("Failed to send WebSocket error", zap.Error(err))
	}
}
