package answer

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/memory"
	"github.com/sitebot/backend/internal/storage/models"
)

func kb(pages ...models.PageRecord) []models.PageRecord {
	return pages
}

func TestGreetingDetection(t *testing.T) {
	knowledge := kb(models.PageRecord{
		URL:     "https://example.com/hello-kitty",
		Title:   "Hello Kitty Shop",
		Content: "We sell hello kitty merchandise and plush toys for collectors.",
	})

	// Greeting wins even when the message would also match content.
	reply := Answer("hello", knowledge, nil)
	assert.Equal(t, DefaultGreeting, reply)

	reply = Answer("Hi there!", knowledge, nil)
	assert.Equal(t, DefaultGreeting, reply)

	reply = Answer("good morning", knowledge, []string{"Welcome to the shop!", "second greeting"})
	assert.Equal(t, "Welcome to the shop!", reply)
}

func TestNoKnowledgeBase(t *testing.T) {
	reply := Answer("what are your prices", nil, nil)
	assert.Contains(t, reply, "couldn't find information")
	assert.Contains(t, reply, "rephrasing")
}

func TestNoMatchingPages(t *testing.T) {
	knowledge := kb(models.PageRecord{
		Title:   "Woodworking",
		Content: "Handmade oak furniture crafted in our local workshop.",
	})

	reply := Answer("quantum cryptography", knowledge, nil)
	assert.Contains(t, reply, "couldn't find information")
}

func TestShortWordsIgnored(t *testing.T) {
	knowledge := kb(models.PageRecord{
		Title:   "FAQ",
		Content: "Is it on? It is up to us.",
	})

	// Every query word is under three characters, so nothing is matched.
	reply := Answer("is it on", knowledge, nil)
	assert.Contains(t, reply, "couldn't find information")
}

func TestSingleSourceReply(t *testing.T) {
	knowledge := kb(models.PageRecord{
		Title:   "Pricing",
		Content: "Our pricing starts at ten dollars per month. Annual plans save twenty percent. Support is included in all tiers.",
	})

	reply := Answer("how much is pricing", knowledge, nil)
	assert.True(t, strings.HasPrefix(reply, "Based on information from **Pricing**:"), reply)
	assert.Contains(t, reply, "pricing starts at ten dollars")
}

func TestMultiSourceReply(t *testing.T) {
	knowledge := kb(
		models.PageRecord{Title: "Shipping", Content: "Shipping takes three to five business days for all widget orders."},
		models.PageRecord{Title: "Returns", Content: "Widget returns are accepted within thirty days of delivery."},
	)

	reply := Answer("widget", knowledge, nil)
	assert.True(t, strings.HasPrefix(reply, "I found relevant information from 2 pages:"), reply)
	assert.Contains(t, reply, "**Shipping:**")
	assert.Contains(t, reply, "**Returns:**")
}

func TestTopPagesCapped(t *testing.T) {
	knowledge := kb(
		models.PageRecord{Title: "A", Content: "The widget catalog lists every widget model we carry in stock."},
		models.PageRecord{Title: "B", Content: "Each widget ships with a widget warranty card and manual."},
		models.PageRecord{Title: "C", Content: "Widget repairs are handled by our widget service center staff."},
		models.PageRecord{Title: "D", Content: "Trade in an old widget for credit toward a new widget purchase."},
	)

	reply := Answer("widget", knowledge, nil)
	assert.True(t, strings.HasPrefix(reply, "I found relevant information from 3 pages:"), reply)
	assert.Equal(t, 6, strings.Count(reply, "**"))
}

func TestStableOrderOnTies(t *testing.T) {
	// Identical content scores identically; corpus order must hold.
	knowledge := kb(
		models.PageRecord{Title: "First", Content: "Identical gadget text for scoring purposes here."},
		models.PageRecord{Title: "Second", Content: "Identical gadget text for scoring purposes here."},
	)

	reply := Answer("gadget", knowledge, nil)
	first := strings.Index(reply, "**First:**")
	second := strings.Index(reply, "**Second:**")
	require.True(t, first >= 0 && second >= 0, reply)
	assert.Less(t, first, second)
}

func TestExactMatchOutscoresPrefixOnly(t *testing.T) {
	exact := models.PageRecord{Title: "Returns", Content: "returns"}
	prefix := models.PageRecord{Title: "Other", Content: "returner"}

	query := tokenize("returns")
	require.NotEmpty(t, query)
	assert.Greater(t, scorePage(exact, query), scorePage(prefix, query))
}

func TestStemMatching(t *testing.T) {
	// "shipping" stems to "shipp"? No: first matching suffix is "ing",
	// leaving "shipp", which the content does not contain. "pricing" strips
	// to "pric", present in "price" and "prices".
	page := models.PageRecord{Title: "Costs", Content: "price list and prices for bulk orders"}

	query := tokenize("pricing")
	score := scorePage(page, query)
	assert.Greater(t, score, 0.0)
}

func TestStemHelper(t *testing.T) {
	assert.Equal(t, "pric", stem("pricing"))
	assert.Equal(t, "informa", stem("information")) // "tion" stripped
	assert.Equal(t, "ship", stem("ships"))
	assert.Equal(t, "cat", stem("cats"))
	// Stripping would consume the whole word: left alone.
	assert.Equal(t, "ing", stem("ing"))
}

func TestScoreMonotonicWithMatches(t *testing.T) {
	query := tokenize("delivery options")
	weak := models.PageRecord{Title: "Misc", Content: "delivery"}
	strong := models.PageRecord{Title: "Misc", Content: "delivery options and delivery schedules"}

	assert.Greater(t, scorePage(strong, query), scorePage(weak, query))
}

func TestSnippetSelectsMatchingSentences(t *testing.T) {
	content := "Welcome to our site. Delivery takes two days. We love our customers. Delivery fees are waived over fifty dollars. Contact us anytime. Delivery tracking is available. Delivery insurance is optional."

	snippet := extractSnippet(content, tokenize("delivery"))
	assert.Contains(t, snippet, "Delivery takes two days")
	assert.Contains(t, snippet, "Delivery fees are waived")
	assert.Contains(t, snippet, "Delivery tracking is available")
	// Capped at three sentences.
	assert.NotContains(t, snippet, "insurance")
	assert.NotContains(t, snippet, "Welcome to our site")
}

func TestSnippetFallbackTruncates(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	snippet := extractSnippet(long, tokenize("zzz"))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.LessOrEqual(t, len(snippet), 303)

	short := "brief content without sentence punctuation"
	assert.Equal(t, short, extractSnippet(short, tokenize("zzz")))
}

func TestSnippetFallbackKeepsRunesIntact(t *testing.T) {
	// Multi-byte text with no sentence punctuation forces the truncation
	// path; cutting mid-rune would produce invalid UTF-8.
	long := strings.Repeat("Lieferzeiten für Übergrößen bei München ", 20)
	snippet := extractSnippet(long, tokenize("zzz"))

	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.True(t, utf8.ValidString(snippet))
	assert.Equal(t, 303, utf8.RuneCountInString(snippet))
}

func TestSendMessagePersistsConversation(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()

	ctx := context.Background()
	chatbot := &models.Chatbot{
		ID:      "bot-1",
		OwnerID: "owner-1",
		Name:    "Support Bot",
		KnowledgeBase: kb(models.PageRecord{
			Title:   "Hours",
			Content: "Our store hours are nine to five on weekdays and ten to two on Saturdays.",
		}),
	}
	require.NoError(t, store.CreateChatbot(ctx, chatbot))

	engine := NewEngine(store)

	result, err := engine.SendMessage(ctx, "bot-1", "", "what are your store hours")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.MessageID)
	assert.Contains(t, result.Response, "store hours")

	messages, err := engine.History(ctx, "bot-1", result.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "what are your store hours", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, result.Response, messages[1].Content)

	// Same session accumulates.
	_, err = engine.SendMessage(ctx, "bot-1", result.SessionID, "do you open on saturdays")
	require.NoError(t, err)
	messages, err = engine.History(ctx, "bot-1", result.SessionID)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestSendMessageUnknownChatbot(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()

	engine := NewEngine(store)
	_, err := engine.SendMessage(context.Background(), "missing", "", "hello")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistoryIsolatedBySession(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateChatbot(ctx, &models.Chatbot{ID: "bot-1", OwnerID: "o", Name: "B"}))

	engine := NewEngine(store)
	r1, err := engine.SendMessage(ctx, "bot-1", "", "hello")
	require.NoError(t, err)
	r2, err := engine.SendMessage(ctx, "bot-1", "", "hello")
	require.NoError(t, err)
	require.NotEqual(t, r1.SessionID, r2.SessionID)

	m1, err := engine.History(ctx, "bot-1", r1.SessionID)
	require.NoError(t, err)
	assert.Len(t, m1, 2)
	for _, m := range m1 {
		assert.Equal(t, r1.SessionID, m.SessionID)
	}
}
