package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/answer"
	"github.com/sitebot/backend/internal/session"
	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/pkg/logger"
)

type ChatHandler struct {
	engine   *answer.Engine
	sessions session.Store
	maxLen   int
}

func NewChatHandler(engine *answer.Engine, sessions session.Store, maxMessageLength int) *ChatHandler {
	return &ChatHandler{
		engine:   engine,
		sessions: sessions,
		maxLen:   maxMessageLength,
	}
}

// SendMessage is the public widget endpoint; no owner authentication, only a
// valid chatbot id is required.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	chatbotID := c.Params("chatbotId")

	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	if h.maxLen > 0 && len(req.Message) > h.maxLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is too long",
		})
	}

	result, err := h.engine.SendMessage(c.Context(), chatbotID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Chatbot not found",
			})
		}
		logger.Error("Failed to process chat message", zap.Error(err), zap.String("chatbot_id", chatbotID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	if err := h.sessions.Touch(c.Context(), result.SessionID, chatbotID); err != nil {
		logger.Warn("Failed to refresh session", zap.Error(err), zap.String("session_id", result.SessionID))
	}

	return c.JSON(fiber.Map{
		"response":  result.Response,
		"messageId": result.MessageID,
		"sessionId": result.SessionID,
	})
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	chatbotID := c.Params("chatbotId")

	sessionID := c.Query("sessionId")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "sessionId is required",
		})
	}

	messages, err := h.engine.History(c.Context(), chatbotID, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Chatbot not found",
			})
		}
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
	})
}
