package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

type ChatStore struct {
	mu    sync.RWMutex
	chats map[domain.ChatID]*domain.Chat
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		chats: make(map[domain.ChatID]*domain.Chat),
	}
}

func (s *ChatStore) CreateChat(_ context.Context, chat *domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chats[chat.ID]; exists {
		return domain.ErrChatExists
	}

	cp := *chat
	s.chats[chat.ID] = &cp
	return nil
}

func (s *ChatStore) UpdateChat(_ context.Context, chat *domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chats[chat.ID]; !exists {
		return domain.ErrChatNotFound
	}

	cp := *chat
	s.chats[chat.ID] = &cp
	return nil
}

func (s *ChatStore) GetChat(_ context.Context, id domain.ChatID) (*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, domain.ErrChatNotFound
	}

	cp := *chat
	return &cp, nil
}

// ListChatsByUser returns the user's chats, most recently updated first.
func (s *ChatStore) ListChatsByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Chat{}
	for _, chat := range s.chats {
		if chat.UserID == userID {
			cp := *chat
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
