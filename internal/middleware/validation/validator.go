package validation

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	MaxMessageLength int
	MaxURLLength     int
}

// Middleware rejects obviously malformed requests before they reach the
// handlers: wrong content type, oversized chat messages, and scan URLs with
// unsupported schemes.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 2000
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = 2048
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut || c.Method() == fiber.MethodPatch {
			contentType := c.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Content-Type must be application/json",
				})
			}
		}

		path := c.Path()

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/websites/scan") {
			var req struct {
				URL string `json:"url"`
			}
			if err := c.BodyParser(&req); err == nil && req.URL != "" {
				if len(req.URL) > cfg.MaxURLLength {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "URL is too long",
					})
				}
				parsed, err := url.Parse(req.URL)
				if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "URL must use http or https",
					})
				}
			}
		}

		if c.Method() == fiber.MethodPost && strings.Contains(path, "/chat/") {
			var req struct {
				Message string `json:"message"`
			}
			if err := c.BodyParser(&req); err == nil && len(req.Message) > cfg.MaxMessageLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "message is too long",
				})
			}
		}

		return c.Next()
	}
}
