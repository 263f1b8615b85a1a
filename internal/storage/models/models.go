package models

import "time"

// Website statuses.
const (
	StatusPending   = "pending"
	StatusScanning  = "scanning"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Chatbot greeting types.
const (
	GreetingCustom = "custom"
	GreetingAI     = "ai"
)

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PageRecord is one crawled page. Immutable once produced; Content is the
// flattened, whitespace-collapsed join of the page's extracted fragments.
type PageRecord struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Website struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"ownerId"`
	URL          string       `json:"url"`
	Status       string       `json:"status"`
	PagesScanned []string     `json:"pagesScanned"`
	Content      []PageRecord `json:"content"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Chatbot's KnowledgeBase is a point-in-time copy of a Website's content.
// Re-scans of the source website never propagate here; only an explicit
// attach-knowledge operation replaces the snapshot.
type Chatbot struct {
	ID               string       `json:"id"`
	OwnerID          string       `json:"ownerId"`
	WebsiteID        string       `json:"websiteId,omitempty"`
	Name             string       `json:"name"`
	GreetingType     string       `json:"greetingType"`
	GreetingMessages []string     `json:"greetingMessages"`
	KnowledgeBase    []PageRecord `json:"knowledgeBase"`
	IsActive         bool         `json:"isActive"`
	TestURL          string       `json:"testUrl"`
	EmbedCode        string       `json:"embedCode"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ChatbotID string    `json:"chatbotId"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
