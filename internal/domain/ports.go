package domain

import "context"

// GenerationGateway is the single chokepoint to the generative-text provider.
// Implementations are stateless and report failures as *GenerationError.
type GenerationGateway interface {
	Converse(ctx context.Context, history []ProviderTurn, newText, systemInstruction string, searchAugmented bool) (*ConverseResult, error)
	// GenerateStructured returns the raw payload; conformance to schema is
	// requested from the provider, not guaranteed.
	GenerateStructured(ctx context.Context, prompt string, schema *Schema) (string, error)
}

// AuthProvider is the identity provider boundary.
type AuthProvider interface {
	CurrentSession(ctx context.Context) (Session, error)
	OnAuthStateChange(fn func(AuthEvent, Session)) (unsubscribe func(), err error)
}

// SessionWriter starts and ends sessions on the identity provider. The
// change reaches subscribers through OnAuthStateChange.
type SessionWriter interface {
	SignIn(ctx context.Context, id Identity) error
	SignOut(ctx context.Context) error
}

// ChatStore defines chat persistence.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *Chat) error
	UpdateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id ChatID) (*Chat, error)
	ListChatsByUser(ctx context.Context, userID UserID, limit int) ([]*Chat, error)
}

// MessageStore defines message persistence. Messages come back oldest first.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessagesByChat(ctx context.Context, chatID ChatID, limit int) ([]*Message, error)
}

// NoteStore defines note persistence. Notes come back newest first.
type NoteStore interface {
	AddNote(ctx context.Context, note *Note) error
	ListNotesByUser(ctx context.Context, userID UserID, limit int) ([]*Note, error)
}

// EventStore persists generated timeline batches. ListEvents returns the
// timeline newest batch first with intra-batch order preserved.
type EventStore interface {
	AppendBatch(ctx context.Context, userID UserID, batch []PlannedEvent) error
	ListEvents(ctx context.Context, userID UserID) (EventTimeline, error)
}
