package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

// MockGateway is an offline domain.GenerationGateway. Each func field, when
// set, replaces the default behavior.
type MockGateway struct {
	ConverseFunc   func(ctx context.Context, history []domain.ProviderTurn, newText, systemInstruction string, searchAugmented bool) (*domain.ConverseResult, error)
	StructuredFunc func(ctx context.Context, prompt string, schema *domain.Schema) (string, error)

	// Now anchors the dates of the default plan. Defaults to time.Now.
	Now func() time.Time
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Now: time.Now}
}

func (m *MockGateway) Converse(
	ctx context.Context,
	history []domain.ProviderTurn,
	newText string,
	systemInstruction string,
	searchAugmented bool,
) (*domain.ConverseResult, error) {
	if m.ConverseFunc != nil {
		return m.ConverseFunc(ctx, history, newText, systemInstruction, searchAugmented)
	}
	return &domain.ConverseResult{
		Text: fmt.Sprintf("Anladım, %q hakkında soruyorsunuz. Güncel mevzuata göre size yardımcı olmaya çalışayım.", newText),
	}, nil
}

func (m *MockGateway) GenerateStructured(ctx context.Context, prompt string, schema *domain.Schema) (string, error) {
	if m.StructuredFunc != nil {
		return m.StructuredFunc(ctx, prompt, schema)
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	day := now()
	plan := []domain.PlannedEvent{
		{Title: "Haftalık çalışma planı", Date: day.AddDate(0, 0, 1).Format(domain.DateLayout), Type: domain.EventPlan},
		{Title: "Ekip toplantısı", Date: day.AddDate(0, 0, 3).Format(domain.DateLayout), Type: domain.EventMeeting, Description: "Haftalık durum değerlendirmesi"},
		{Title: "Mevzuat semineri", Date: day.AddDate(0, 0, 7).Format(domain.DateLayout), Type: domain.EventSeminar},
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
