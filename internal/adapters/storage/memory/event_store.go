package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

type EventStore struct {
	mu      sync.RWMutex
	batches map[domain.UserID][][]domain.PlannedEvent
}

func NewEventStore() *EventStore {
	return &EventStore{
		batches: make(map[domain.UserID][][]domain.PlannedEvent),
	}
}

func (s *EventStore) AppendBatch(_ context.Context, userID domain.UserID, batch []domain.PlannedEvent) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[userID] = append(s.batches[userID], append([]domain.PlannedEvent(nil), batch...))
	return nil
}

// ListEvents flattens the stored batches newest first.
func (s *EventStore) ListEvents(_ context.Context, userID domain.UserID) (domain.EventTimeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timeline := domain.EventTimeline{}
	for _, batch := range s.batches[userID] {
		timeline = timeline.Prepend(batch)
	}
	return timeline, nil
}
