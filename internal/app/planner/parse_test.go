package planner_test

import (
	"errors"
	"testing"

	"github.com/PabloGalante/nota-agent/internal/app/planner"
	"github.com/PabloGalante/nota-agent/internal/domain"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantLen int
	}{
		{name: "not json", raw: "not json", wantErr: planner.ErrMalformedPayload},
		{name: "object instead of array", raw: `{"title":"x"}`, wantErr: planner.ErrMalformedPayload},
		{name: "null", raw: "null", wantErr: planner.ErrMalformedPayload},
		{name: "empty array", raw: "[]", wantLen: 0},
		{
			name:    "missing date",
			raw:     `[{"title":"Toplantı","type":"Meeting"}]`,
			wantErr: planner.ErrSchemaViolation,
		},
		{
			name:    "unknown type",
			raw:     `[{"title":"Toplantı","date":"2024-03-20","type":"Party"}]`,
			wantErr: planner.ErrSchemaViolation,
		},
		{
			name:    "invalid date",
			raw:     `[{"title":"Toplantı","date":"20 Mart","type":"Meeting"}]`,
			wantErr: planner.ErrSchemaViolation,
		},
		{
			name: "fenced payload",
			raw: "```json\n" +
				`[{"title":"Kapanış Toplantısı","date":"2024-03-20","type":"Meeting"}]` +
				"\n```",
			wantLen: 1,
		},
		{
			name: "three events",
			raw: `[
				{"title":"A","date":"2024-03-18","type":"Plan","description":"hazırlık"},
				{"title":"B","date":"2024-03-19","type":"Seminar"},
				{"title":"C","date":"2024-03-20","type":"Meeting"}
			]`,
			wantLen: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := planner.ParsePlan(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(res.Err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, res.Err)
				}
				if res.Events != nil {
					t.Fatalf("expected no events on failure, got %+v", res.Events)
				}
				return
			}
			if res.Err != nil {
				t.Fatalf("unexpected error: %v", res.Err)
			}
			if len(res.Events) != tt.wantLen {
				t.Fatalf("expected %d events, got %d", tt.wantLen, len(res.Events))
			}
		})
	}
}

func TestParsePlanKeepsFieldsAndOrder(t *testing.T) {
	res := planner.ParsePlan(`[
		{"title":"A","date":"2024-03-18","type":"Plan","description":"hazırlık"},
		{"title":"B","date":"2024-03-19","type":"Seminar"}
	]`)
	if !res.OK() {
		t.Fatal(res.Err)
	}

	want := []domain.PlannedEvent{
		{Title: "A", Date: "2024-03-18", Type: domain.EventPlan, Description: "hazırlık"},
		{Title: "B", Date: "2024-03-19", Type: domain.EventSeminar},
	}
	for i := range want {
		if res.Events[i] != want[i] {
			t.Errorf("event %d: want %+v, got %+v", i, want[i], res.Events[i])
		}
	}
}

func TestPlanSchemaAndPrompt(t *testing.T) {
	s := planner.PlanSchema()
	if s.Type != domain.SchemaArray || s.Items == nil {
		t.Fatalf("expected array schema, got %+v", s)
	}
	if got := s.Items.Properties["type"].Enum; len(got) != 3 {
		t.Fatalf("expected 3 event types in enum, got %v", got)
	}

	prompt := planner.BuildPlanPrompt("Dönem sonu işlemleri")
	if want := "Konu: Dönem sonu işlemleri."; prompt[:len(want)] != want {
		t.Fatalf("prompt must start with the topic, got %q", prompt)
	}
}
