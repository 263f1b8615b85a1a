// Package answer implements the retrieval engine that matches a visitor's
// message against a chatbot's knowledge base. Matching is purely lexical:
// substring hits, prefix pairs and crude suffix-stripped stems score each
// page, and the reply is composed from snippets of the top-scoring pages.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/metrics"
	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/models"
	"github.com/sitebot/backend/pkg/logger"
)

// DefaultGreeting is used when a chatbot has no configured greeting.
const DefaultGreeting = "Hello! How can I help you today?"

const noInformationReply = "I couldn't find information about that on this website. Could you try rephrasing your question?"

const (
	maxResultPages  = 3
	maxSnippetLines = 3
	snippetFallback = 300
	minStemLength   = 3
	minWordLength   = 3
	exactMatchScore = 2.0
	prefixPairScore = 1.0
	stemMatchScore  = 1.5
)

var greetingKeywords = []string{
	"hi", "hello", "hey", "hola",
	"greetings", "good morning", "good afternoon", "good evening",
}

// Suffixes tried in order; only the first match is stripped.
var stemSuffixes = []string{
	"ing", "tion", "ment", "ness", "able", "ible",
	"ful", "less", "ous", "ive", "ly", "es", "ed", "s",
}

var wordRE = regexp.MustCompile(`[a-z0-9]+`)

// Engine answers chat messages for a chatbot and records the conversation.
type Engine struct {
	store storage.Store
}

type Result struct {
	Response  string
	MessageID string
	SessionID string
}

func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// SendMessage answers one visitor message. The user message is persisted
// before the answer is computed and the assistant message before it is
// returned, so the conversation log is complete even if the caller goes
// away. A retrieval miss never fails the request; only store errors do.
func (e *Engine) SendMessage(ctx context.Context, chatbotID, sessionID, message string) (*Result, error) {
	start := time.Now()

	chatbot, err := e.store.GetChatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	userMsg := &models.ChatMessage{
		ID:        uuid.New().String(),
		ChatbotID: chatbotID,
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   message,
		CreatedAt: time.Now(),
	}
	if err := e.store.CreateChatMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}
	metrics.ChatMessages.WithLabelValues(models.RoleUser).Inc()

	response := Answer(message, chatbot.KnowledgeBase, chatbot.GreetingMessages)

	assistantMsg := &models.ChatMessage{
		ID:        uuid.New().String(),
		ChatbotID: chatbotID,
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   response,
		CreatedAt: time.Now(),
	}
	if err := e.store.CreateChatMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to record assistant message: %w", err)
	}
	metrics.ChatMessages.WithLabelValues(models.RoleAssistant).Inc()
	metrics.AnswerDuration.Observe(time.Since(start).Seconds())

	logger.Info("Message answered",
		zap.String("chatbot_id", chatbotID),
		zap.String("session_id", sessionID),
		zap.Int("knowledge_pages", len(chatbot.KnowledgeBase)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	return &Result{
		Response:  response,
		MessageID: assistantMsg.ID,
		SessionID: sessionID,
	}, nil
}

// History returns the ordered conversation for one widget session.
func (e *Engine) History(ctx context.Context, chatbotID, sessionID string) ([]models.ChatMessage, error) {
	if _, err := e.store.GetChatbot(ctx, chatbotID); err != nil {
		return nil, err
	}
	return e.store.ListChatMessages(ctx, chatbotID, sessionID)
}

// Answer composes a reply to message from the knowledge base. Greeting
// detection wins over knowledge lookup even when the message would also
// match content.
func Answer(message string, knowledgeBase []models.PageRecord, greetingMessages []string) string {
	lower := strings.ToLower(message)

	for _, keyword := range greetingKeywords {
		if strings.Contains(lower, keyword) {
			if len(greetingMessages) > 0 {
				return greetingMessages[0]
			}
			return DefaultGreeting
		}
	}

	if len(knowledgeBase) == 0 {
		return noInformationReply
	}

	queryWords := tokenize(lower)
	if len(queryWords) == 0 {
		return noInformationReply
	}

	type scoredPage struct {
		page  models.PageRecord
		score float64
	}

	var matched []scoredPage
	for _, page := range knowledgeBase {
		score := scorePage(page, queryWords)
		if score > 0 {
			matched = append(matched, scoredPage{page: page, score: score})
		}
	}

	if len(matched) == 0 {
		return noInformationReply
	}

	// Stable: equal scores keep their corpus order.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})

	if len(matched) > maxResultPages {
		matched = matched[:maxResultPages]
	}

	if len(matched) == 1 {
		return fmt.Sprintf("Based on information from **%s**:\n\n%s",
			matched[0].page.Title, extractSnippet(matched[0].page.Content, queryWords))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found relevant information from %d pages:", len(matched))
	for _, m := range matched {
		fmt.Fprintf(&b, "\n\n**%s:**\n%s", m.page.Title, extractSnippet(m.page.Content, queryWords))
	}
	return b.String()
}

// tokenize splits a lowercased message into the query words worth matching.
func tokenize(lower string) []string {
	var words []string
	for _, w := range wordRE.FindAllString(lower, -1) {
		if len(w) >= minWordLength {
			words = append(words, w)
		}
	}
	return words
}

// stem strips the first matching suffix only; the remainder may be short
// enough that scoring ignores it.
func stem(word string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(word, suffix) && len(word) > len(suffix) {
			return strings.TrimSuffix(word, suffix)
		}
	}
	return word
}

func scorePage(page models.PageRecord, queryWords []string) float64 {
	pageText := strings.ToLower(page.Title + " " + page.Content)
	pageWords := strings.Fields(pageText)

	var score float64
	for _, qw := range queryWords {
		if strings.Contains(pageText, qw) {
			score += exactMatchScore
		}

		// Quadratic on purpose: corpora are capped at the crawl's page
		// limit, so the pair scan stays cheap.
		for _, pw := range pageWords {
			if strings.HasPrefix(pw, qw) || strings.HasPrefix(qw, pw) {
				score += prefixPairScore
			}
		}

		if st := stem(qw); st != qw && len(st) >= minStemLength && strings.Contains(pageText, st) {
			score += stemMatchScore
		}
	}

	return score
}

// extractSnippet keeps up to three sentences containing a query word or a
// qualifying stem, falling back to the head of the content.
func extractSnippet(content string, queryWords []string) string {
	sentences := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var matched []string
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		if sentenceMatches(lower, queryWords) {
			matched = append(matched, sentence)
			if len(matched) == maxSnippetLines {
				break
			}
		}
	}

	if len(matched) > 0 {
		return strings.Join(matched, ". ")
	}

	if runes := []rune(content); len(runes) > snippetFallback {
		return string(runes[:snippetFallback]) + "..."
	}
	return content
}

func sentenceMatches(lowerSentence string, queryWords []string) bool {
	for _, qw := range queryWords {
		if strings.Contains(lowerSentence, qw) {
			return true
		}
		if st := stem(qw); st != qw && len(st) >= minStemLength && strings.Contains(lowerSentence, st) {
			return true
		}
	}
	return false
}
