package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/scan"
	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/pkg/logger"
)

type WebsiteHandler struct {
	store       storage.Store
	scanService *scan.Service
}

func NewWebsiteHandler(store storage.Store, scanService *scan.Service) *WebsiteHandler {
	return &WebsiteHandler{
		store:       store,
		scanService: scanService,
	}
}

// ScanWebsite kicks off a crawl of the submitted URL. The crawl runs in the
// background; the returned record reflects the status at the time of the call.
func (h *WebsiteHandler) ScanWebsite(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	var req struct {
		URL string `json:"url"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse scan request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	website, err := h.scanService.Scan(c.Context(), ownerID, req.URL)
	if err != nil {
		if errors.Is(err, scan.ErrInvalidURL) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid URL: must include a scheme and host",
			})
		}
		logger.Error("Failed to start website scan", zap.Error(err), zap.String("url", req.URL))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start scan",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(website)
}

func (h *WebsiteHandler) ListWebsites(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	websites, err := h.store.ListWebsitesByOwner(c.Context(), ownerID)
	if err != nil {
		logger.Error("Failed to list websites", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list websites",
		})
	}

	return c.JSON(fiber.Map{
		"websites": websites,
	})
}

func (h *WebsiteHandler) GetWebsite(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	website, err := h.store.GetWebsite(c.Context(), c.Params("id"))
	if err != nil || website.OwnerID != ownerID {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Error("Failed to get website", zap.Error(err))
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Website not found",
		})
	}

	return c.JSON(website)
}

func (h *WebsiteHandler) DeleteWebsite(c *fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	website, err := h.store.GetWebsite(c.Context(), c.Params("id"))
	if err != nil || website.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Website not found",
		})
	}

	if err := h.store.DeleteWebsite(c.Context(), website.ID); err != nil {
		logger.Error("Failed to delete website", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete website",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Website deleted",
	})
}
