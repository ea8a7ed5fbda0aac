package planner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PabloGalante/nota-agent/internal/adapters/llm"
	"github.com/PabloGalante/nota-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/nota-agent/internal/app/planner"
	"github.com/PabloGalante/nota-agent/internal/domain"
)

func structuredGateway(payload string, err error) *llm.MockGateway {
	gw := llm.NewMockGateway()
	gw.StructuredFunc = func(context.Context, string, *domain.Schema) (string, error) {
		return payload, err
	}
	return gw
}

var existing = domain.EventTimeline{
	{Title: "Eski plan", Date: "2024-03-01", Type: domain.EventPlan},
}

func TestGenerateRejectsEmptyTopic(t *testing.T) {
	called := false
	gw := llm.NewMockGateway()
	gw.StructuredFunc = func(context.Context, string, *domain.Schema) (string, error) {
		called = true
		return "[]", nil
	}
	g := planner.NewGenerator(gw, planner.WithTimeline(existing))

	res := g.Generate(context.Background(), "  ")
	if !errors.Is(res.Reason, planner.ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", res.Reason)
	}
	if called {
		t.Fatal("gateway must not be called for an empty topic")
	}
	if len(g.Timeline()) != 1 {
		t.Fatalf("timeline changed: %+v", g.Timeline())
	}
}

func TestGenerateMalformedLeavesTimeline(t *testing.T) {
	g := planner.NewGenerator(structuredGateway("not json", nil), planner.WithTimeline(existing))

	res := g.Generate(context.Background(), "KDV beyannamesi")
	if !errors.Is(res.Reason, planner.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", res.Reason)
	}
	if res.Added() != 0 {
		t.Fatalf("expected no events added, got %d", res.Added())
	}
	if tl := g.Timeline(); len(tl) != 1 || tl[0].Title != "Eski plan" {
		t.Fatalf("timeline changed: %+v", tl)
	}
	if g.Busy() {
		t.Fatal("expected busy cleared")
	}
}

func TestGenerateGatewayFailureLeavesTimeline(t *testing.T) {
	g := planner.NewGenerator(structuredGateway("", domain.ProviderRefused("SAFETY", nil)), planner.WithTimeline(existing))

	res := g.Generate(context.Background(), "Bordro")
	if !errors.Is(res.Reason, domain.ErrProviderRefused) {
		t.Fatalf("expected provider refusal, got %v", res.Reason)
	}
	if len(g.Timeline()) != 1 {
		t.Fatal("timeline changed")
	}
}

func TestGeneratePrependsBatchInOrder(t *testing.T) {
	payload := `[
		{"title":"Hazırlık","date":"2024-03-18","type":"Plan"},
		{"title":"Seminer","date":"2024-03-19","type":"Seminar"},
		{"title":"Toplantı","date":"2024-03-20","type":"Meeting"}
	]`
	g := planner.NewGenerator(structuredGateway(payload, nil), planner.WithTimeline(existing))

	res := g.Generate(context.Background(), "Mart planı")
	if res.Reason != nil {
		t.Fatalf("unexpected failure: %v", res.Reason)
	}

	want := []string{"Hazırlık", "Seminer", "Toplantı", "Eski plan"}
	tl := g.Timeline()
	if len(tl) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(tl))
	}
	for i, title := range want {
		if tl[i].Title != title {
			t.Errorf("position %d: want %q, got %q", i, title, tl[i].Title)
		}
	}
	if res.Added() != 3 || len(res.Timeline) != 4 {
		t.Errorf("unexpected result: added=%d timeline=%d", res.Added(), len(res.Timeline))
	}
}

func TestGenerateClosingMeetingScenario(t *testing.T) {
	var gotPrompt string
	gw := llm.NewMockGateway()
	gw.StructuredFunc = func(_ context.Context, prompt string, schema *domain.Schema) (string, error) {
		gotPrompt = prompt
		if schema == nil || schema.Type != domain.SchemaArray {
			t.Errorf("expected array schema, got %+v", schema)
		}
		return `[{"title":"Kapanış Toplantısı","date":"2024-03-20","type":"Meeting"}]`, nil
	}
	g := planner.NewGenerator(gw)

	res := g.Generate(context.Background(), "Dönem sonu işlemleri")
	if res.Reason != nil {
		t.Fatal(res.Reason)
	}
	if gotPrompt != planner.BuildPlanPrompt("Dönem sonu işlemleri") {
		t.Errorf("unexpected prompt %q", gotPrompt)
	}

	want := domain.PlannedEvent{Title: "Kapanış Toplantısı", Date: "2024-03-20", Type: domain.EventMeeting}
	if tl := g.Timeline(); len(tl) != 1 || tl[0] != want {
		t.Fatalf("expected [%+v], got %+v", want, tl)
	}
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := llm.NewMockGateway()
	gw.StructuredFunc = func(context.Context, string, *domain.Schema) (string, error) {
		close(entered)
		<-release
		return `[{"title":"A","date":"2024-03-18","type":"Plan"}]`, nil
	}
	g := planner.NewGenerator(gw)

	done := make(chan planner.Result, 1)
	go func() { done <- g.Generate(context.Background(), "ilk") }()

	<-entered
	if res := g.Generate(context.Background(), "ikinci"); !errors.Is(res.Reason, planner.ErrGenerationInFlight) {
		t.Fatalf("expected ErrGenerationInFlight, got %v", res.Reason)
	}

	close(release)
	if res := <-done; res.Reason != nil {
		t.Fatal(res.Reason)
	}
	if len(g.Timeline()) != 1 {
		t.Fatalf("expected one event, got %d", len(g.Timeline()))
	}
}

func TestServicePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()

	first := planner.NewService(llm.NewMockGateway(), store)
	res, err := first.Generate(ctx, "u1", "Haftalık plan")
	if err != nil || res.Reason != nil {
		t.Fatalf("Generate failed: %v %v", err, res.Reason)
	}

	second := planner.NewService(llm.NewMockGateway(), store)
	tl, busy, err := second.Timeline(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if busy || len(tl) != res.Added() {
		t.Fatalf("expected %d reloaded events, got %d (busy=%v)", res.Added(), len(tl), busy)
	}
	if tl[0] != res.Batch[0] {
		t.Errorf("order not preserved: %+v vs %+v", tl[0], res.Batch[0])
	}

	other, _, _ := second.Timeline(ctx, "u2")
	if len(other) != 0 {
		t.Fatalf("timelines must be per user, got %+v", other)
	}
}

// gatedEventStore blocks ListEvents for one user until release is closed.
type gatedEventStore struct {
	domain.EventStore
	slow    domain.UserID
	entered chan struct{}
	release chan struct{}
}

func (s *gatedEventStore) ListEvents(ctx context.Context, userID domain.UserID) (domain.EventTimeline, error) {
	if userID == s.slow {
		close(s.entered)
		<-s.release
	}
	return s.EventStore.ListEvents(ctx, userID)
}

func TestServiceSlowLoadDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	store := &gatedEventStore{
		EventStore: memory.NewEventStore(),
		slow:       "slow",
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	svc := planner.NewService(llm.NewMockGateway(), store)

	slowDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Timeline(ctx, "slow")
		slowDone <- err
	}()
	<-store.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := svc.Generate(ctx, "fast", "Haftalık plan")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("another user's load blocked the service")
	}

	close(store.release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow Timeline failed: %v", err)
	}
}
