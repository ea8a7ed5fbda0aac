package notes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

// Service holds the logic of writing and reading user notes.
type Service struct {
	store domain.NoteStore
	now   func() time.Time
}

func NewService(store domain.NoteStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// AddNote stores content for userID. Blank content is rejected with
// domain.ErrEmptyNote.
func (s *Service) AddNote(ctx context.Context, userID domain.UserID, content string) (*domain.Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyNote
	}

	note := &domain.Note{
		ID:        domain.NoteID(uuid.NewString()),
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}

	if err := s.store.AddNote(ctx, note); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to add note", "user_id", userID, "error", err)
		return nil, err
	}
	return note, nil
}

// ListNotes returns the last `limit` notes for a user, newest first.
// If limit <= 0, a reasonable default value is used.
func (s *Service) ListNotes(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListNotesByUser(ctx, userID, limit)
}
