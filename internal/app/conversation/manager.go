package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/event"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

var (
	ErrEmptyTurn    = errors.New("conversation: empty turn")
	ErrTurnInFlight = errors.New("conversation: a turn is already in flight")
)

// Snapshot is the observable state of a Manager.
type Snapshot struct {
	Messages []domain.Message
	Busy     bool
}

// TurnResult describes one completed turn. GenerationErr is the gateway
// failure that produced the fallback reply, nil on success.
type TurnResult struct {
	UserMessage   domain.Message
	ModelMessage  domain.Message
	Grounding     []domain.GroundingChunk
	GenerationErr error
}

// Manager owns the ordered message log of one chat. Only the manager
// appends to it; readers get copies.
type Manager struct {
	gw          domain.GenerationGateway
	chatID      domain.ChatID
	instruction string
	now         func() time.Time

	mu       sync.Mutex
	messages []domain.Message
	busy     bool

	changes event.Emitter[Snapshot]
}

type ManagerOption func(*Manager)

// WithHistory seeds the log, e.g. when rehydrating from a store.
func WithHistory(msgs []domain.Message) ManagerOption {
	return func(m *Manager) {
		m.messages = append([]domain.Message(nil), msgs...)
	}
}

func WithSystemInstruction(s string) ManagerOption {
	return func(m *Manager) { m.instruction = s }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(gw domain.GenerationGateway, chatID domain.ChatID, opts ...ManagerOption) *Manager {
	m := &Manager{
		gw:          gw,
		chatID:      chatID,
		instruction: AssistantSystemInstruction,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendTurn sends text as a user turn and appends exactly one model turn,
// the reply or FallbackReply. Blank text and overlapping turns are
// rejected with ErrEmptyTurn / ErrTurnInFlight and leave state untouched.
func (m *Manager) SendTurn(ctx context.Context, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTurn
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	history := domain.ToProviderTurns(m.messages)
	userMsg := m.newMessage(domain.RoleUser, text)
	m.messages = append(m.messages, userMsg)
	m.busy = true
	m.mu.Unlock()
	m.notify()

	log := observability.LoggerFromContext(ctx).With("chat_id", m.chatID)
	log.Info("sending turn", "history_len", len(history))

	result := &TurnResult{
		UserMessage:  userMsg,
		ModelMessage: m.newMessage(domain.RoleModel, FallbackReply),
	}
	defer m.complete(result)

	res, err := m.gw.Converse(ctx, history, text, m.instruction, true)
	if err != nil {
		log.Error("generation failed", "error", err, "kind", domain.GenerationErrorKindOf(err))
		result.GenerationErr = err
		return result, nil
	}

	result.ModelMessage.Text = res.Text
	result.Grounding = res.Grounding
	log.Info("turn completed", "grounding_count", len(res.Grounding))
	return result, nil
}

// complete appends the model turn and clears busy. It runs deferred so a
// panicking gateway still leaves the manager usable.
func (m *Manager) complete(result *TurnResult) {
	result.ModelMessage.CreatedAt = m.now()

	m.mu.Lock()
	m.messages = append(m.messages, result.ModelMessage)
	m.busy = false
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) newMessage(role domain.Role, text string) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		ChatID:    m.chatID,
		Role:      role,
		Text:      text,
		CreatedAt: m.now(),
	}
}

func (m *Manager) ChatID() domain.ChatID {
	return m.chatID
}

// Messages returns a copy of the log in conversation order.
func (m *Manager) Messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages...)
}

func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Subscribe registers fn for every state change and returns a disposer.
func (m *Manager) Subscribe(fn func(Snapshot)) (dispose func()) {
	return m.changes.Subscribe(fn)
}

func (m *Manager) notify() {
	m.mu.Lock()
	snap := Snapshot{
		Messages: append([]domain.Message(nil), m.messages...),
		Busy:     m.busy,
	}
	m.mu.Unlock()
	m.changes.Emit(snap)
}
