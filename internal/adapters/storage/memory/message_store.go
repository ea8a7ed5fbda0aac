package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.ChatID][]*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.ChatID][]*domain.Message),
	}
}

func (s *MessageStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], &cp)
	return nil
}

// GetMessagesByChat returns the last limit messages, oldest first. A limit
// <= 0 returns all of them.
func (s *MessageStore) GetMessagesByChat(_ context.Context, chatID domain.ChatID, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]*domain.Message{}, msgs...), nil
}
