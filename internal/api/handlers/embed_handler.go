package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/pkg/utils"
)

type EmbedHandler struct {
	store   storage.Store
	baseURL string
}

func NewEmbedHandler(store storage.Store, baseURL string) *EmbedHandler {
	return &EmbedHandler{
		store:   store,
		baseURL: baseURL,
	}
}

// noopScript is served for unknown or deactivated chatbots. A stale embed tag
// on a customer page must never break that page, so this route never 404s.
const noopScript = "/* sitebot: widget unavailable */\n"

const widgetTemplate = `(function () {
  if (window.__sitebotLoaded) return;
  window.__sitebotLoaded = true;

  var CHATBOT_ID = %q;
  var BASE_URL = %q;
  var sessionId = null;
  try {
    sessionId = window.sessionStorage.getItem("sitebot-session-" + CHATBOT_ID);
  } catch (e) {}

  function send(message, onReply) {
    var xhr = new XMLHttpRequest();
    xhr.open("POST", BASE_URL + "/api/v1/chat/" + CHATBOT_ID + "/messages");
    xhr.setRequestHeader("Content-Type", "application/json");
    xhr.onload = function () {
      if (xhr.status !== 200) return;
      var data = JSON.parse(xhr.responseText);
      sessionId = data.sessionId;
      try {
        window.sessionStorage.setItem("sitebot-session-" + CHATBOT_ID, sessionId);
      } catch (e) {}
      onReply(data.response);
    };
    xhr.send(JSON.stringify({ sessionId: sessionId, message: message }));
  }

  window.sitebot = { send: send };
})();
`

// Script serves the widget bootstrap for GET /embed/:script, where :script is
// "<chatbotId>.js".
func (h *EmbedHandler) Script(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")

	chatbotID := strings.TrimSuffix(c.Params("script"), ".js")

	chatbot, err := h.store.GetChatbot(c.Context(), chatbotID)
	if err != nil || !chatbot.IsActive {
		return c.SendString(noopScript)
	}

	body := fmt.Sprintf(widgetTemplate, chatbot.ID, h.baseURL)

	etag := `"` + utils.HashString(body) + `"`
	c.Set(fiber.HeaderETag, etag)
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	return c.SendString(body)
}
