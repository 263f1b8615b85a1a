package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestWebsiteRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	website := &models.Website{
		ID:           "w1",
		OwnerID:      "o1",
		URL:          "https://example.com",
		Status:       models.StatusCompleted,
		PagesScanned: []string{"https://example.com/", "https://example.com/about"},
		Content: []models.PageRecord{
			{URL: "https://example.com/", Title: "Home", Content: "home text"},
			{URL: "https://example.com/about", Title: "About", Content: "about text"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, client.CreateWebsite(ctx, website))

	got, err := client.GetWebsite(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, website.URL, got.URL)
	assert.Equal(t, website.PagesScanned, got.PagesScanned)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "About", got.Content[1].Title)

	byURL, err := client.GetWebsiteByOwnerAndURL(ctx, "o1", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "w1", byURL.ID)

	_, err = client.GetWebsite(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWebsiteUpdateAndDelete(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	website := &models.Website{
		ID: "w1", OwnerID: "o1", URL: "https://example.com",
		Status: models.StatusScanning, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, client.CreateWebsite(ctx, website))

	website.Status = models.StatusFailed
	website.PagesScanned = []string{}
	website.Content = []models.PageRecord{}
	require.NoError(t, client.UpdateWebsite(ctx, website))

	got, err := client.GetWebsite(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Empty(t, got.Content)

	assert.ErrorIs(t, client.UpdateWebsite(ctx, &models.Website{ID: "missing"}), storage.ErrNotFound)

	require.NoError(t, client.DeleteWebsite(ctx, "w1"))
	assert.ErrorIs(t, client.DeleteWebsite(ctx, "w1"), storage.ErrNotFound)
}

func TestOwnerURLUniqueness(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first := &models.Website{ID: "w1", OwnerID: "o1", URL: "https://example.com", Status: models.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, client.CreateWebsite(ctx, first))

	dup := &models.Website{ID: "w2", OwnerID: "o1", URL: "https://example.com", Status: models.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	assert.Error(t, client.CreateWebsite(ctx, dup))

	// Same URL under another owner is a separate record.
	other := &models.Website{ID: "w3", OwnerID: "o2", URL: "https://example.com", Status: models.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	assert.NoError(t, client.CreateWebsite(ctx, other))
}

func TestChatbotRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chatbot := &models.Chatbot{
		ID:               "b1",
		OwnerID:          "o1",
		WebsiteID:        "w1",
		Name:             "Support Bot",
		GreetingType:     models.GreetingCustom,
		GreetingMessages: []string{"Welcome!"},
		KnowledgeBase:    []models.PageRecord{{Title: "Home", Content: "content"}},
		IsActive:         true,
		TestURL:          "/chat/test/b1",
		EmbedCode:        `<script src="http://x/embed/b1.js"></script>`,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, client.CreateChatbot(ctx, chatbot))

	got, err := client.GetChatbot(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Support Bot", got.Name)
	assert.True(t, got.IsActive)
	assert.Equal(t, []string{"Welcome!"}, got.GreetingMessages)
	require.Len(t, got.KnowledgeBase, 1)
	assert.Equal(t, chatbot.EmbedCode, got.EmbedCode)

	got.IsActive = false
	got.Name = "Renamed"
	require.NoError(t, client.UpdateChatbot(ctx, got))
	got, err = client.GetChatbot(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "Renamed", got.Name)

	list, err := client.ListChatbotsByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, client.DeleteChatbot(ctx, "b1"))
	_, err = client.GetChatbot(ctx, "b1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChatMessagesOrdered(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	base := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		msg := &models.ChatMessage{
			ID:        content,
			ChatbotID: "b1",
			SessionID: "s1",
			Role:      models.RoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, client.CreateChatMessage(ctx, msg))
	}

	messages, err := client.ListChatMessages(ctx, "b1", "s1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "third", messages[2].Content)

	// Other sessions stay isolated.
	messages, err = client.ListChatMessages(ctx, "b1", "other")
	require.NoError(t, err)
	assert.Empty(t, messages)
}
