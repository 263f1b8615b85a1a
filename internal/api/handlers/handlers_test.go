package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebot/backend/internal/answer"
	"github.com/sitebot/backend/internal/crawler"
	"github.com/sitebot/backend/internal/scan"
	"github.com/sitebot/backend/internal/session"
	"github.com/sitebot/backend/internal/storage/memory"
	"github.com/sitebot/backend/internal/storage/models"
)

const testBaseURL = "http://api.test"

func newTestApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(func() { store.Close() })

	sessions := session.NewMemoryStore(time.Minute, time.Hour)
	t.Cleanup(func() { sessions.Close() })

	scheduler := crawler.NewScheduler(
		crawler.NewFetcher(5*time.Second),
		nil,
		crawler.Config{PolitenessDelay: time.Millisecond},
	)
	scanService := scan.NewService(store, scheduler, 30*time.Second)
	engine := answer.NewEngine(store)

	websiteHandler := NewWebsiteHandler(store, scanService)
	chatbotHandler := NewChatbotHandler(store, testBaseURL)
	chatHandler := NewChatHandler(engine, sessions, 2000)
	embedHandler := NewEmbedHandler(store, testBaseURL)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/websites/scan", websiteHandler.ScanWebsite)
	api.Get("/websites", websiteHandler.ListWebsites)
	api.Get("/websites/:id", websiteHandler.GetWebsite)
	api.Delete("/websites/:id", websiteHandler.DeleteWebsite)
	api.Post("/chatbots", chatbotHandler.CreateChatbot)
	api.Get("/chatbots", chatbotHandler.ListChatbots)
	api.Get("/chatbots/:id", chatbotHandler.GetChatbot)
	api.Put("/chatbots/:id", chatbotHandler.UpdateChatbot)
	api.Post("/chatbots/:id/knowledge", chatbotHandler.AttachKnowledge)
	api.Delete("/chatbots/:id", chatbotHandler.DeleteChatbot)
	api.Post("/chat/:chatbotId/messages", chatHandler.SendMessage)
	api.Get("/chat/:chatbotId/history", chatHandler.GetHistory)
	app.Get("/embed/:script", embedHandler.Script)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path, owner string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}

	resp, err := app.Test(req, 15000)
	require.NoError(t, err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") != "" &&
		bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestScanEndpoint(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
			<p>Plenty of descriptive text so this page clears the extraction content threshold.</p>
			</body></html>`)
	}))
	defer site.Close()

	app, store := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/api/v1/websites/scan", "owner-1", map[string]string{"url": site.URL})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "scanning", body["status"])
	websiteID := body["id"].(string)

	deadline := time.Now().Add(10 * time.Second)
	for {
		website, err := store.GetWebsite(context.Background(), websiteID)
		require.NoError(t, err)
		if website.Status == models.StatusCompleted {
			assert.Len(t, website.Content, 1)
			break
		}
		require.True(t, time.Now().Before(deadline), "scan never completed")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScanEndpointValidation(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/api/v1/websites/scan", "", map[string]string{"url": "https://example.com"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/api/v1/websites/scan", "owner-1", map[string]string{"url": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/api/v1/websites/scan", "owner-1", map[string]string{"url": "nonsense"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebsiteOwnership(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateWebsite(context.Background(), &models.Website{
		ID: "w1", OwnerID: "owner-1", URL: "https://example.com", Status: models.StatusCompleted,
	}))

	resp, _ := doJSON(t, app, "GET", "/api/v1/websites/w1", "owner-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Another owner cannot see or delete it.
	resp, _ = doJSON(t, app, "GET", "/api/v1/websites/w1", "owner-2", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, app, "DELETE", "/api/v1/websites/w1", "owner-2", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, "DELETE", "/api/v1/websites/w1", "owner-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateChatbotWithKnowledge(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateWebsite(context.Background(), &models.Website{
		ID: "w1", OwnerID: "owner-1", URL: "https://example.com", Status: models.StatusCompleted,
		Content: []models.PageRecord{{URL: "https://example.com/", Title: "Home", Content: "widget catalog"}},
	}))

	resp, body := doJSON(t, app, "POST", "/api/v1/chatbots", "owner-1", map[string]interface{}{
		"name":      "Support Bot",
		"websiteId": "w1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	botID := body["id"].(string)
	assert.Equal(t, "custom", body["greetingType"])
	assert.Equal(t, true, body["isActive"])
	assert.Equal(t, "/chat/test/"+botID, body["testUrl"])
	assert.Equal(t, fmt.Sprintf(`<script src="%s/embed/%s.js"></script>`, testBaseURL, botID), body["embedCode"])

	bot, err := store.GetChatbot(context.Background(), botID)
	require.NoError(t, err)
	require.Len(t, bot.KnowledgeBase, 1)
	assert.Equal(t, "Home", bot.KnowledgeBase[0].Title)
}

func TestKnowledgeIsSnapshot(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateWebsite(context.Background(), &models.Website{
		ID: "w1", OwnerID: "owner-1", URL: "https://example.com", Status: models.StatusCompleted,
		Content: []models.PageRecord{{Title: "Old", Content: "old content"}},
	}))

	resp, body := doJSON(t, app, "POST", "/api/v1/chatbots", "owner-1", map[string]interface{}{
		"name": "Bot", "websiteId": "w1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	botID := body["id"].(string)

	// Re-scan replaces the website content; the chatbot keeps its copy.
	website, err := store.GetWebsite(context.Background(), "w1")
	require.NoError(t, err)
	website.Content = []models.PageRecord{{Title: "New", Content: "new content"}}
	require.NoError(t, store.UpdateWebsite(context.Background(), website))

	bot, err := store.GetChatbot(context.Background(), botID)
	require.NoError(t, err)
	require.Len(t, bot.KnowledgeBase, 1)
	assert.Equal(t, "Old", bot.KnowledgeBase[0].Title)

	// An explicit attach refreshes the snapshot.
	resp, _ = doJSON(t, app, "POST", "/api/v1/chatbots/"+botID+"/knowledge", "owner-1", map[string]string{"websiteId": "w1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	bot, err = store.GetChatbot(context.Background(), botID)
	require.NoError(t, err)
	assert.Equal(t, "New", bot.KnowledgeBase[0].Title)
}

func TestAttachKnowledgeAnswerRoundTrip(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateWebsite(context.Background(), &models.Website{
		ID: "w1", OwnerID: "owner-1", URL: "https://example.com", Status: models.StatusCompleted,
		Content: []models.PageRecord{{
			URL:     "https://example.com/shipping",
			Title:   "Shipping Rates",
			Content: "Zeppelin freight quotes are available for oversized widget orders on request.",
		}},
	}))

	// The bot starts with no knowledge; the token finds nothing.
	resp, body := doJSON(t, app, "POST", "/api/v1/chatbots", "owner-1", map[string]interface{}{
		"name": "Bot",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	botID := body["id"].(string)

	resp, body = doJSON(t, app, "POST", "/api/v1/chat/"+botID+"/messages", "", map[string]string{
		"message": "zeppelin freight",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body["response"], "couldn't find information")

	resp, _ = doJSON(t, app, "POST", "/api/v1/chatbots/"+botID+"/knowledge", "owner-1", map[string]string{"websiteId": "w1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// After the attach, the same question is answered from the page, and
	// the reply names the page by its title.
	resp, body = doJSON(t, app, "POST", "/api/v1/chat/"+botID+"/messages", "", map[string]string{
		"message": "zeppelin freight",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body["response"], "Shipping Rates")
	assert.Contains(t, body["response"], "Zeppelin freight quotes")
}

func TestUpdateChatbotPartial(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateChatbot(context.Background(), &models.Chatbot{
		ID: "b1", OwnerID: "owner-1", Name: "Bot", GreetingType: models.GreetingCustom, IsActive: true,
	}))

	resp, body := doJSON(t, app, "PUT", "/api/v1/chatbots/b1", "owner-1", map[string]interface{}{
		"isActive": false,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["isActive"])
	assert.Equal(t, "Bot", body["name"])

	resp, _ = doJSON(t, app, "PUT", "/api/v1/chatbots/b1", "owner-1", map[string]interface{}{
		"greetingType": "weird",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateChatbot(context.Background(), &models.Chatbot{
		ID: "b1", OwnerID: "owner-1", Name: "Bot", IsActive: true,
		KnowledgeBase: []models.PageRecord{{
			Title:   "Hours",
			Content: "Our store hours are nine to five on weekdays for every location.",
		}},
	}))

	// No X-User-ID header: the widget endpoint is public.
	resp, body := doJSON(t, app, "POST", "/api/v1/chat/b1/messages", "", map[string]string{
		"message": "store hours",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionID := body["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	assert.Contains(t, body["response"], "store hours")

	resp, body = doJSON(t, app, "GET", "/api/v1/chat/b1/history?sessionId="+sessionID, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	messages := body["messages"].([]interface{})
	assert.Len(t, messages, 2)

	resp, _ = doJSON(t, app, "POST", "/api/v1/chat/missing/messages", "", map[string]string{"message": "hi"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, "POST", "/api/v1/chat/b1/messages", "", map[string]string{"message": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/api/v1/chat/b1/history", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEmbedScript(t *testing.T) {
	app, store := newTestApp(t)

	require.NoError(t, store.CreateChatbot(context.Background(), &models.Chatbot{
		ID: "b1", OwnerID: "owner-1", Name: "Bot", IsActive: true,
	}))
	require.NoError(t, store.CreateChatbot(context.Background(), &models.Chatbot{
		ID: "b2", OwnerID: "owner-1", Name: "Disabled", IsActive: false,
	}))

	req := httptest.NewRequest("GET", "/embed/b1.js", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"b1"`)
	assert.Contains(t, string(raw), testBaseURL)

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	req = httptest.NewRequest("GET", "/embed/b1.js", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)

	// Unknown and deactivated chatbots get the no-op script, never a 404.
	for _, path := range []string{"/embed/unknown.js", "/embed/b2.js"} {
		req = httptest.NewRequest("GET", path, nil)
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		raw, err = io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "widget unavailable")
	}
}
