package storage

import (
	"context"
	"errors"

	"github.com/sitebot/backend/internal/storage/models"
)

// ErrNotFound is returned by every getter when no record matches.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary for the core. Implementations must treat
// updates as whole-record writes: a failed update leaves no partial mutation.
type Store interface {
	CreateWebsite(ctx context.Context, website *models.Website) error
	GetWebsite(ctx context.Context, id string) (*models.Website, error)
	GetWebsiteByOwnerAndURL(ctx context.Context, ownerID, url string) (*models.Website, error)
	ListWebsitesByOwner(ctx context.Context, ownerID string) ([]models.Website, error)
	UpdateWebsite(ctx context.Context, website *models.Website) error
	DeleteWebsite(ctx context.Context, id string) error

	CreateChatbot(ctx context.Context, chatbot *models.Chatbot) error
	GetChatbot(ctx context.Context, id string) (*models.Chatbot, error)
	ListChatbotsByOwner(ctx context.Context, ownerID string) ([]models.Chatbot, error)
	UpdateChatbot(ctx context.Context, chatbot *models.Chatbot) error
	DeleteChatbot(ctx context.Context, id string) error

	CreateChatMessage(ctx context.Context, message *models.ChatMessage) error
	ListChatMessages(ctx context.Context, chatbotID, sessionID string) ([]models.ChatMessage, error)

	Close() error
}
