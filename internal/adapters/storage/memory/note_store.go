package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

// NoteStore is an in-memory domain.NoteStore.
// It is NOT persistent and is only suitable for development / local mode.
type NoteStore struct {
	mu       sync.RWMutex
	notes    map[domain.NoteID]*domain.Note
	byUserID map[domain.UserID][]domain.NoteID
}

func NewNoteStore() *NoteStore {
	return &NoteStore{
		notes:    make(map[domain.NoteID]*domain.Note),
		byUserID: make(map[domain.UserID][]domain.NoteID),
	}
}

func (s *NoteStore) AddNote(_ context.Context, note *domain.Note) error {
	if note == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == "" {
		note.ID = domain.NoteID(uuid.NewString())
	}

	cp := *note
	s.notes[note.ID] = &cp
	s.byUserID[note.UserID] = append(s.byUserID[note.UserID], note.ID)
	return nil
}

// ListNotesByUser returns the newest limit notes for a user, newest first.
// If limit <= 0, returns all.
func (s *NoteStore) ListNotesByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]*domain.Note, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if n, ok := s.notes[ids[i]]; ok {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}
