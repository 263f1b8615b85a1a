// Package memory provides an in-memory Store used by tests and local
// development. It mirrors the sqlite client's semantics, including
// whole-record updates and ErrNotFound.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/models"
)

type Store struct {
	mu           sync.RWMutex
	websites     map[string]models.Website
	chatbots     map[string]models.Chatbot
	messages     []models.ChatMessage
	websiteOrder []string
	chatbotOrder []string
}

func NewStore() *Store {
	return &Store{
		websites: make(map[string]models.Website),
		chatbots: make(map[string]models.Chatbot),
	}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateWebsite(_ context.Context, website *models.Website) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.websites[website.ID] = cloneWebsite(*website)
	s.websiteOrder = append(s.websiteOrder, website.ID)
	return nil
}

func (s *Store) GetWebsite(_ context.Context, id string) (*models.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.websites[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	w = cloneWebsite(w)
	return &w, nil
}

func (s *Store) GetWebsiteByOwnerAndURL(_ context.Context, ownerID, url string) (*models.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.websiteOrder {
		w := s.websites[id]
		if w.OwnerID == ownerID && w.URL == url {
			w = cloneWebsite(w)
			return &w, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListWebsitesByOwner(_ context.Context, ownerID string) ([]models.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Website
	for _, id := range s.websiteOrder {
		if w, ok := s.websites[id]; ok && w.OwnerID == ownerID {
			out = append(out, cloneWebsite(w))
		}
	}
	return out, nil
}

func (s *Store) UpdateWebsite(_ context.Context, website *models.Website) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.websites[website.ID]
	if !ok {
		return storage.ErrNotFound
	}
	updated := cloneWebsite(*website)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	s.websites[website.ID] = updated
	return nil
}

func (s *Store) DeleteWebsite(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.websites, id)
	return nil
}

func (s *Store) CreateChatbot(_ context.Context, chatbot *models.Chatbot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatbots[chatbot.ID] = cloneChatbot(*chatbot)
	s.chatbotOrder = append(s.chatbotOrder, chatbot.ID)
	return nil
}

func (s *Store) GetChatbot(_ context.Context, id string) (*models.Chatbot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.chatbots[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	b = cloneChatbot(b)
	return &b, nil
}

func (s *Store) ListChatbotsByOwner(_ context.Context, ownerID string) ([]models.Chatbot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Chatbot
	for _, id := range s.chatbotOrder {
		if b, ok := s.chatbots[id]; ok && b.OwnerID == ownerID {
			out = append(out, cloneChatbot(b))
		}
	}
	return out, nil
}

func (s *Store) UpdateChatbot(_ context.Context, chatbot *models.Chatbot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.chatbots[chatbot.ID]
	if !ok {
		return storage.ErrNotFound
	}
	updated := cloneChatbot(*chatbot)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	s.chatbots[chatbot.ID] = updated
	return nil
}

func (s *Store) DeleteChatbot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chatbots[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.chatbots, id)
	return nil
}

func (s *Store) CreateChatMessage(_ context.Context, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *Store) ListChatMessages(_ context.Context, chatbotID, sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.ChatbotID == chatbotID && m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	// Append order already matches creation order; the sort keeps the
	// contract explicit for records loaded out of band.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneWebsite(w models.Website) models.Website {
	w.PagesScanned = append([]string(nil), w.PagesScanned...)
	w.Content = append([]models.PageRecord(nil), w.Content...)
	return w
}

func cloneChatbot(b models.Chatbot) models.Chatbot {
	b.GreetingMessages = append([]string(nil), b.GreetingMessages...)
	b.KnowledgeBase = append([]models.PageRecord(nil), b.KnowledgeBase...)
	return b
}
