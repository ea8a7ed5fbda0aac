package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (NOTA_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) chatsCol() *firestore.CollectionRef {
	return s.client.Collection("chats")
}

func (s *Store) chatDoc(id domain.ChatID) *firestore.DocumentRef {
	return s.chatsCol().Doc(string(id))
}

func (s *Store) messagesCol(chatID domain.ChatID) *firestore.CollectionRef {
	return s.chatDoc(chatID).Collection("messages")
}

func (s *Store) notesCol() *firestore.CollectionRef {
	return s.client.Collection("notes")
}

func (s *Store) eventsCol(userID domain.UserID) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(string(userID)).Collection("time_events")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type chatDoc struct {
	UserID    string    `firestore:"user_id"`
	Title     string    `firestore:"title"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type messageDoc struct {
	ChatID    string    `firestore:"chat_id"`
	Role      string    `firestore:"role"`
	Text      string    `firestore:"text"`
	CreatedAt time.Time `firestore:"created_at"`
}

type noteDoc struct {
	UserID    string    `firestore:"user_id"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`
}

// eventDoc stores one planned event; Batch orders batches and Position
// keeps the order inside a batch.
type eventDoc struct {
	Title       string `firestore:"title"`
	Date        string `firestore:"date"`
	Type        string `firestore:"type"`
	Description string `firestore:"description,omitempty"`
	Batch       int64  `firestore:"batch"`
	Position    int    `firestore:"position"`
}

// ─────────────────────────────────────────
// ChatStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateChat(ctx context.Context, chat *domain.Chat) error {
	doc := chatDoc{
		UserID:    string(chat.UserID),
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}

	_, err := s.chatDoc(chat.ID).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrChatExists
		}
		return fmt.Errorf("firestore CreateChat: %w", err)
	}
	return nil
}

func (s *Store) UpdateChat(ctx context.Context, chat *domain.Chat) error {
	_, err := s.chatDoc(chat.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: chat.Title},
		{Path: "updated_at", Value: chat.UpdatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrChatNotFound
		}
		return fmt.Errorf("firestore UpdateChat: %w", err)
	}
	return nil
}

func (s *Store) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	snap, err := s.chatDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("firestore GetChat: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetChat decode: %w", err)
	}
	return doc.toDomain(id), nil
}

func (s *Store) ListChatsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Chat, error) {
	q := s.chatsCol().Where("user_id", "==", string(userID)).OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.Chat{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListChatsByUser: %w", err)
		}

		var doc chatDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode chatDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.ChatID(snap.Ref.ID)))
	}
	return out, nil
}

func (d chatDoc) toDomain(id domain.ChatID) *domain.Chat {
	return &domain.Chat{
		ID:        id,
		UserID:    domain.UserID(d.UserID),
		Title:     d.Title,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		ChatID:    string(msg.ChatID),
		Role:      string(msg.Role),
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}

	_, err := s.messagesCol(msg.ChatID).Doc(string(msg.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) GetMessagesByChat(ctx context.Context, chatID domain.ChatID, limit int) ([]*domain.Message, error) {
	q := s.messagesCol(chatID).OrderBy("created_at", firestore.Asc)
	if limit > 0 {
		q = q.LimitToLast(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore GetMessagesByChat: %w", err)
	}

	out := make([]*domain.Message, 0, len(snaps))
	for _, snap := range snaps {
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, &domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			ChatID:    chatID,
			Role:      domain.Role(doc.Role),
			Text:      doc.Text,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// NoteStore implementation
// ─────────────────────────────────────────

func (s *Store) AddNote(ctx context.Context, note *domain.Note) error {
	doc := noteDoc{
		UserID:    string(note.UserID),
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
	}

	ref := s.notesCol().NewDoc()
	if note.ID != "" {
		ref = s.notesCol().Doc(string(note.ID))
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore AddNote: %w", err)
	}
	note.ID = domain.NoteID(ref.ID)
	return nil
}

func (s *Store) ListNotesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Note, error) {
	q := s.notesCol().Where("user_id", "==", string(userID)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore ListNotesByUser: %w", err)
	}

	out := make([]*domain.Note, 0, len(snaps))
	for _, snap := range snaps {
		var doc noteDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode noteDoc: %w", err)
		}
		out = append(out, &domain.Note{
			ID:        domain.NoteID(snap.Ref.ID),
			UserID:    domain.UserID(doc.UserID),
			Content:   doc.Content,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// EventStore implementation
// ─────────────────────────────────────────

// AppendBatch writes a whole batch atomically.
func (s *Store) AppendBatch(ctx context.Context, userID domain.UserID, batch []domain.PlannedEvent) error {
	if len(batch) == 0 {
		return nil
	}

	seq := time.Now().UnixNano()
	col := s.eventsCol(userID)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for i, ev := range batch {
			doc := eventDoc{
				Title:       ev.Title,
				Date:        ev.Date,
				Type:        string(ev.Type),
				Description: ev.Description,
				Batch:       seq,
				Position:    i,
			}
			if err := tx.Create(col.NewDoc(), doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("firestore AppendBatch: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, userID domain.UserID) (domain.EventTimeline, error) {
	snaps, err := s.eventsCol(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore ListEvents: %w", err)
	}

	docs := make([]eventDoc, 0, len(snaps))
	for _, snap := range snaps {
		var doc eventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode eventDoc: %w", err)
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Batch != docs[j].Batch {
			return docs[i].Batch > docs[j].Batch
		}
		return docs[i].Position < docs[j].Position
	})

	out := make(domain.EventTimeline, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.PlannedEvent{
			Title:       d.Title,
			Date:        d.Date,
			Type:        domain.EventType(d.Type),
			Description: d.Description,
		})
	}
	return out, nil
}
