package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

// Service hosts one Manager per chat and mirrors every turn to the stores.
type Service struct {
	gw           domain.GenerationGateway
	chatStore    domain.ChatStore
	messageStore domain.MessageStore
	now          func() time.Time

	mu       sync.Mutex
	managers map[domain.ChatID]*Manager
}

func NewService(
	gw domain.GenerationGateway,
	chatStore domain.ChatStore,
	messageStore domain.MessageStore,
) *Service {
	return &Service{
		gw:           gw,
		chatStore:    chatStore,
		messageStore: messageStore,
		now:          time.Now,
		managers:     make(map[domain.ChatID]*Manager),
	}
}

type StartChatInput struct {
	UserID domain.UserID
	Title  string
}

func (s *Service) StartChat(ctx context.Context, in StartChatInput) (*domain.Chat, error) {
	now := s.now()

	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID)
	log.Info("starting new chat")

	title := in.Title
	if title == "" {
		title = "Nota Asistan"
	}

	chat := &domain.Chat{
		ID:        domain.ChatID(uuid.NewString()),
		UserID:    in.UserID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.chatStore.CreateChat(ctx, chat); err != nil {
		log.Error("failed to create chat", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.managers[chat.ID] = NewManager(s.gw, chat.ID, WithClock(s.now))
	s.mu.Unlock()

	log.Info("chat started", "chat_id", chat.ID)
	return chat, nil
}

type SendMessageInput struct {
	ChatID domain.ChatID
	UserID domain.UserID
	Text   string
}

// SendMessage runs one turn on the chat's manager. Rejections from the
// manager (ErrEmptyTurn, ErrTurnInFlight) are returned unchanged.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*TurnResult, error) {
	chat, err := s.ownedChat(ctx, in.ChatID, in.UserID)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"chat_id", chat.ID,
		"user_id", chat.UserID,
	)

	mgr, err := s.manager(ctx, chat.ID)
	if err != nil {
		log.Error("failed to load chat history", "error", err)
		return nil, err
	}

	result, err := mgr.SendTurn(ctx, in.Text)
	if err != nil {
		return nil, err
	}

	// The manager's log is authoritative; store failures are logged only.
	for _, msg := range []domain.Message{result.UserMessage, result.ModelMessage} {
		msg := msg
		if err := s.messageStore.AppendMessage(ctx, &msg); err != nil {
			log.Error("failed to persist message", "message_id", msg.ID, "error", err)
		}
	}

	chat.UpdatedAt = s.now()
	if err := s.chatStore.UpdateChat(ctx, chat); err != nil {
		log.Error("failed to update chat", "error", err)
	}

	log.Info("send message completed", "fallback", result.GenerationErr != nil)
	return result, nil
}

// GetChat returns the chat and its messages in conversation order.
func (s *Service) GetChat(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (*domain.Chat, []domain.Message, bool, error) {
	chat, err := s.ownedChat(ctx, chatID, userID)
	if err != nil {
		return nil, nil, false, err
	}

	mgr, err := s.manager(ctx, chat.ID)
	if err != nil {
		return nil, nil, false, err
	}

	return chat, mgr.Messages(), mgr.Busy(), nil
}

func (s *Service) ListChats(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Chat, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.chatStore.ListChatsByUser(ctx, userID, limit)
}

func (s *Service) ownedChat(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (*domain.Chat, error) {
	chat, err := s.chatStore.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return chat, nil
}

// manager returns the live manager for chatID, rehydrating it from the
// message store on first use. The store is read without holding mu; when
// two loads race, the first manager registered wins.
func (s *Service) manager(ctx context.Context, chatID domain.ChatID) (*Manager, error) {
	s.mu.Lock()
	mgr, ok := s.managers[chatID]
	s.mu.Unlock()
	if ok {
		return mgr, nil
	}

	stored, err := s.messageStore.GetMessagesByChat(ctx, chatID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading messages for chat %s: %w", chatID, err)
	}
	history := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, *m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mgr, ok := s.managers[chatID]; ok {
		return mgr, nil
	}
	mgr = NewManager(s.gw, chatID, WithHistory(history), WithClock(s.now))
	s.managers[chatID] = mgr
	return mgr, nil
}
