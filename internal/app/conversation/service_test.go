package conversation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PabloGalante/nota-agent/internal/adapters/llm"
	"github.com/PabloGalante/nota-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/nota-agent/internal/app/conversation"
	"github.com/PabloGalante/nota-agent/internal/domain"
)

func TestStartChatAndSendMessage(t *testing.T) {
	ctx := context.Background()

	chatStore := memory.NewChatStore()
	messageStore := memory.NewMessageStore()
	svc := conversation.NewService(llm.NewMockGateway(), chatStore, messageStore)

	chat, err := svc.StartChat(ctx, conversation.StartChatInput{
		UserID: "test-user",
		Title:  "Test chat",
	})
	if err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if chat.ID == "" {
		t.Fatal("expected chat id, got empty")
	}

	res, err := svc.SendMessage(ctx, conversation.SendMessageInput{
		ChatID: chat.ID,
		UserID: chat.UserID,
		Text:   "Merhaba Nota",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if res.ModelMessage.Text == "" {
		t.Fatal("expected non-empty model reply")
	}

	stored, _ := messageStore.GetMessagesByChat(ctx, chat.ID, 0)
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(stored))
	}
	if stored[0].Role != domain.RoleUser || stored[1].Role != domain.RoleModel {
		t.Errorf("unexpected persisted roles %s, %s", stored[0].Role, stored[1].Role)
	}
}

func TestSendMessageRejectsOtherUser(t *testing.T) {
	ctx := context.Background()
	svc := conversation.NewService(llm.NewMockGateway(), memory.NewChatStore(), memory.NewMessageStore())

	chat, err := svc.StartChat(ctx, conversation.StartChatInput{UserID: "owner"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.SendMessage(ctx, conversation.SendMessageInput{ChatID: chat.ID, UserID: "intruder", Text: "selam"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	_, err = svc.SendMessage(ctx, conversation.SendMessageInput{ChatID: "missing", UserID: "owner", Text: "selam"})
	if !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestServiceRehydratesHistoryFromStore(t *testing.T) {
	ctx := context.Background()
	chatStore := memory.NewChatStore()
	messageStore := memory.NewMessageStore()

	first := conversation.NewService(llm.NewMockGateway(), chatStore, messageStore)
	chat, err := first.StartChat(ctx, conversation.StartChatInput{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.SendMessage(ctx, conversation.SendMessageInput{ChatID: chat.ID, UserID: "u1", Text: "ilk soru"}); err != nil {
		t.Fatal(err)
	}

	var historyLen int
	gw := llm.NewMockGateway()
	gw.ConverseFunc = func(_ context.Context, history []domain.ProviderTurn, _, _ string, _ bool) (*domain.ConverseResult, error) {
		historyLen = len(history)
		return &domain.ConverseResult{Text: "ikinci cevap"}, nil
	}

	second := conversation.NewService(gw, chatStore, messageStore)
	if _, err := second.SendMessage(ctx, conversation.SendMessageInput{ChatID: chat.ID, UserID: "u1", Text: "ikinci soru"}); err != nil {
		t.Fatal(err)
	}
	if historyLen != 2 {
		t.Fatalf("expected rehydrated history of 2 turns, got %d", historyLen)
	}

	_, msgs, busy, err := second.GetChat(ctx, chat.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 || busy {
		t.Fatalf("expected 4 messages and idle, got %d busy=%v", len(msgs), busy)
	}

	chats, err := second.ListChats(ctx, "u1", 0)
	if err != nil || len(chats) != 1 {
		t.Fatalf("expected one chat, got %v (%v)", chats, err)
	}
}

// gatedMessageStore blocks history loads for one chat until release is
// closed.
type gatedMessageStore struct {
	domain.MessageStore
	slow    domain.ChatID
	entered chan struct{}
	release chan struct{}
}

func (s *gatedMessageStore) GetMessagesByChat(ctx context.Context, chatID domain.ChatID, limit int) ([]*domain.Message, error) {
	if chatID == s.slow {
		close(s.entered)
		<-s.release
	}
	return s.MessageStore.GetMessagesByChat(ctx, chatID, limit)
}

func TestSlowHistoryLoadDoesNotBlockOtherChats(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	chatStore := memory.NewChatStore()
	for _, id := range []domain.ChatID{"slow", "fast"} {
		if err := chatStore.CreateChat(ctx, &domain.Chat{ID: id, UserID: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatal(err)
		}
	}
	messages := &gatedMessageStore{
		MessageStore: memory.NewMessageStore(),
		slow:         "slow",
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := conversation.NewService(llm.NewMockGateway(), chatStore, messages)

	slowDone := make(chan error, 1)
	go func() {
		_, _, _, err := svc.GetChat(ctx, "slow", "u1")
		slowDone <- err
	}()
	<-messages.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(ctx, conversation.SendMessageInput{ChatID: "fast", UserID: "u1", Text: "Merhaba"})
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("another chat's history load blocked the service")
	}

	close(messages.release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow GetChat failed: %v", err)
	}
}
