package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/models"
	"github.com/sitebot/backend/pkg/logger"
)

type ChatbotHandler struct {
	store   storage.Store
	baseURL string
}

func NewChatbotHandler(store storage.Store, baseURL string) *ChatbotHandler {
	return &ChatbotHandler{
		store:   store,
		baseURL: baseURL,
	}
}

func (h *ChatbotHandler) CreateChatbot(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	var req struct {
		Name             string   `json:"name"`
		WebsiteID        string   `json:"websiteId"`
		GreetingType     string   `json:"greetingType"`
		GreetingMessages []string `json:"greetingMessages"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse chatbot request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	if req.GreetingType == "" {
		req.GreetingType = models.GreetingCustom
	}
	if req.GreetingType != models.GreetingCustom && req.GreetingType != models.GreetingAI {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "greetingType must be \"custom\" or \"ai\"",
		})
	}

	var knowledge []models.PageRecord
	if req.WebsiteID != "" {
		website, err := h.store.GetWebsite(c.Context(), req.WebsiteID)
		if err != nil || website.OwnerID != ownerID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Website not found",
			})
		}
		knowledge = make([]models.PageRecord, len(website.Content))
		copy(knowledge, website.Content)
	}

	now := time.Now()
	chatbot := &models.Chatbot{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		WebsiteID:        req.WebsiteID,
		Name:             req.Name,
		GreetingType:     req.GreetingType,
		GreetingMessages: req.GreetingMessages,
		KnowledgeBase:    knowledge,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	chatbot.TestURL = "/chat/test/" + chatbot.ID
	chatbot.EmbedCode = fmt.Sprintf("<script src=%q></script>", h.baseURL+"/embed/"+chatbot.ID+".js")

	if err := h.store.CreateChatbot(c.Context(), chatbot); err != nil {
		logger.Error("Failed to create chatbot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create chatbot",
		})
	}

	logger.Info("Chatbot created",
		zap.String("chatbot_id", chatbot.ID),
		zap.String("owner_id", ownerID),
		zap.Int("knowledge_pages", len(knowledge)))

	return c.Status(fiber.StatusCreated).JSON(chatbot)
}

func (h *ChatbotHandler) ListChatbots(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	chatbots, err := h.store.ListChatbotsByOwner(c.Context(), ownerID)
	if err != nil {
		logger.Error("Failed to list chatbots", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list chatbots",
		})
	}

	return c.JSON(fiber.Map{
		"chatbots": chatbots,
	})
}

func (h *ChatbotHandler) GetChatbot(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	chatbot, err := h.store.GetChatbot(c.Context(), c.Params("id"))
	if err != nil || chatbot.OwnerID != ownerID {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Error("Failed to get chatbot", zap.Error(err))
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chatbot not found",
		})
	}

	return c.JSON(chatbot)
}

func (h *ChatbotHandler) UpdateChatbot(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	chatbot, err := h.store.GetChatbot(c.Context(), c.Params("id"))
	if err != nil || chatbot.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chatbot not found",
		})
	}

	var req struct {
		Name             *string   `json:"name"`
		GreetingType     *string   `json:"greetingType"`
		GreetingMessages *[]string `json:"greetingMessages"`
		IsActive         *bool     `json:"isActive"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name != nil {
		if *req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name cannot be empty",
			})
		}
		chatbot.Name = *req.Name
	}
	if req.GreetingType != nil {
		if *req.GreetingType != models.GreetingCustom && *req.GreetingType != models.GreetingAI {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "greetingType must be \"custom\" or \"ai\"",
			})
		}
		chatbot.GreetingType = *req.GreetingType
	}
	if req.GreetingMessages != nil {
		chatbot.GreetingMessages = *req.GreetingMessages
	}
	if req.IsActive != nil {
		chatbot.IsActive = *req.IsActive
	}
	chatbot.UpdatedAt = time.Now()

	if err := h.store.UpdateChatbot(c.Context(), chatbot); err != nil {
		logger.Error("Failed to update chatbot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update chatbot",
		})
	}

	return c.JSON(chatbot)
}

// AttachKnowledge replaces the chatbot's knowledge base with a fresh copy of
// the given website's crawled content.
func (h *ChatbotHandler) AttachKnowledge(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	chatbot, err := h.store.GetChatbot(c.Context(), c.Params("id"))
	if err != nil || chatbot.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chatbot not found",
		})
	}

	var req struct {
		WebsiteID string `json:"websiteId"`
	}

	if err := c.BodyParser(&req); err != nil || req.WebsiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "websiteId is required",
		})
	}

	website, err := h.store.GetWebsite(c.Context(), req.WebsiteID)
	if err != nil || website.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Website not found",
		})
	}

	knowledge := make([]models.PageRecord, len(website.Content))
	copy(knowledge, website.Content)

	chatbot.WebsiteID = website.ID
	chatbot.KnowledgeBase = knowledge
	chatbot.UpdatedAt = time.Now()

	if err := h.store.UpdateChatbot(c.Context(), chatbot); err != nil {
		logger.Error("Failed to attach knowledge", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to attach knowledge",
		})
	}

	logger.Info("Knowledge attached",
		zap.String("chatbot_id", chatbot.ID),
		zap.String("website_id", website.ID),
		zap.Int("pages", len(knowledge)))

	return c.JSON(chatbot)
}

func (h *ChatbotHandler) DeleteChatbot(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	chatbot, err := h.store.GetChatbot(c.Context(), c.Params("id"))
	if err != nil || chatbot.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chatbot not found",
		})
	}

	if err := h.store.DeleteChatbot(c.Context(), chatbot.ID); err != nil {
		logger.Error("Failed to delete chatbot", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete chatbot",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Chatbot deleted",
	})
}
