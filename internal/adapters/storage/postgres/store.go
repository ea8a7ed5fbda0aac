package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

const uniqueViolation = "23505"

// Store keeps chats, messages, notes and timeline events in Postgres. The
// notes and time_events tables follow the dashboard's hosted schema.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables the store needs.
func (s *Store) Migrate(ctx context.Context) error {
	migration := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user_updated ON chats(user_id, updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages(chat_id, seq);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS time_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		date DATE NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		batch BIGINT NOT NULL,
		position INT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_time_events_user_batch ON time_events(user_id, batch DESC, position);
	`
	if _, err := s.pool.Exec(ctx, migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// ChatStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateChat(ctx context.Context, chat *domain.Chat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		string(chat.ID), string(chat.UserID), chat.Title, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrChatExists
		}
		return fmt.Errorf("postgres CreateChat: %w", err)
	}
	return nil
}

func (s *Store) UpdateChat(ctx context.Context, chat *domain.Chat) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET title = $2, updated_at = $3 WHERE id = $1`,
		string(chat.ID), chat.Title, chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres UpdateChat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChatNotFound
	}
	return nil
}

func (s *Store) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	chat := &domain.Chat{ID: id}
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, title, created_at, updated_at FROM chats WHERE id = $1`, string(id),
	).Scan(&userID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres GetChat: %w", err)
	}
	chat.UserID = domain.UserID(userID)
	return chat, nil
}

func (s *Store) ListChatsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM chats
		 WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		string(userID), sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres ListChatsByUser: %w", err)
	}
	defer rows.Close()

	out := []*domain.Chat{}
	for rows.Next() {
		chat := &domain.Chat{UserID: userID}
		var id string
		if err := rows.Scan(&id, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat.ID = domain.ChatID(id)
		out = append(out, chat)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, role, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		string(msg.ID), string(msg.ChatID), string(msg.Role), msg.Text, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres AppendMessage: %w", err)
	}
	return nil
}

// GetMessagesByChat returns the last limit messages, oldest first.
func (s *Store) GetMessagesByChat(ctx context.Context, chatID domain.ChatID, limit int) ([]*domain.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, role, text, created_at FROM (
			SELECT id, seq, role, text, created_at FROM messages
			WHERE chat_id = $1 ORDER BY seq DESC LIMIT $2
		 ) recent ORDER BY seq ASC`,
		string(chatID), sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres GetMessagesByChat: %w", err)
	}
	defer rows.Close()

	out := []*domain.Message{}
	for rows.Next() {
		msg := &domain.Message{ChatID: chatID}
		var id, role string
		if err := rows.Scan(&id, &role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ID = domain.MessageID(id)
		msg.Role = domain.Role(role)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────
// NoteStore implementation
// ─────────────────────────────────────────

func (s *Store) AddNote(ctx context.Context, note *domain.Note) error {
	if note.ID == "" {
		note.ID = domain.NoteID(uuid.NewString())
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notes (id, user_id, content, created_at) VALUES ($1, $2, $3, $4)`,
		string(note.ID), string(note.UserID), note.Content, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres AddNote: %w", err)
	}
	return nil
}

func (s *Store) ListNotesByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, created_at FROM notes
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		string(userID), sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres ListNotesByUser: %w", err)
	}
	defer rows.Close()

	out := []*domain.Note{}
	for rows.Next() {
		note := &domain.Note{UserID: userID}
		var id string
		if err := rows.Scan(&id, &note.Content, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		note.ID = domain.NoteID(id)
		out = append(out, note)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────
// EventStore implementation
// ─────────────────────────────────────────

// AppendBatch inserts the batch in one transaction.
func (s *Store) AppendBatch(ctx context.Context, userID domain.UserID, batch []domain.PlannedEvent) error {
	if len(batch) == 0 {
		return nil
	}

	seq := time.Now().UnixNano()
	b := &pgx.Batch{}
	for i, ev := range batch {
		b.Queue(
			`INSERT INTO time_events (id, user_id, title, date, type, description, batch, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), string(userID), ev.Title, ev.Date, string(ev.Type), ev.Description, seq, i,
		)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres AppendBatch: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, userID domain.UserID) (domain.EventTimeline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT title, to_char(date, 'YYYY-MM-DD'), type, description FROM time_events
		 WHERE user_id = $1 ORDER BY batch DESC, position ASC`,
		string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres ListEvents: %w", err)
	}
	defer rows.Close()

	out := domain.EventTimeline{}
	for rows.Next() {
		var ev domain.PlannedEvent
		var typ string
		if err := rows.Scan(&ev.Title, &ev.Date, &typ, &ev.Description); err != nil {
			return nil, fmt.Errorf("scan time event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// sqlLimit maps a non-positive limit to "no limit".
func sqlLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
