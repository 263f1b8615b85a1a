// Package session tracks widget chat sessions. The core never owns session
// state directly; handlers go through the injected Store, which expires
// idle sessions on its own.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string    `json:"id"`
	ChatbotID string    `json:"chatbotId"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Store keeps widget sessions alive while a conversation is active.
// Touch creates the session if needed and refreshes its expiry.
type Store interface {
	Touch(ctx context.Context, sessionID, chatbotID string) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
