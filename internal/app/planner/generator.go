package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/event"
	"github.com/PabloGalante/nota-agent/internal/metrics"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

var (
	ErrEmptyTopic         = errors.New("plan: empty topic")
	ErrGenerationInFlight = errors.New("plan: generation already in flight")
)

// Result reports one Generate call. Reason is nil when Batch was prepended.
type Result struct {
	Timeline domain.EventTimeline
	Batch    []domain.PlannedEvent
	Reason   error
}

func (r Result) Added() int {
	return len(r.Batch)
}

// Generator owns one user's timeline and extends it from free-text topics.
type Generator struct {
	gw domain.GenerationGateway

	mu       sync.Mutex
	timeline domain.EventTimeline
	busy     bool

	changes event.Emitter[domain.EventTimeline]
}

type GeneratorOption func(*Generator)

// WithTimeline seeds the generator with a previously stored timeline.
func WithTimeline(t domain.EventTimeline) GeneratorOption {
	return func(g *Generator) {
		g.timeline = append(domain.EventTimeline(nil), t...)
	}
}

func NewGenerator(gw domain.GenerationGateway, opts ...GeneratorOption) *Generator {
	g := &Generator{gw: gw, timeline: domain.EventTimeline{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the gateway for a plan about topic and prepends the parsed
// batch to the timeline. Every failure leaves the timeline unchanged and is
// reported through Result.Reason.
func (g *Generator) Generate(ctx context.Context, topic string) Result {
	if strings.TrimSpace(topic) == "" {
		return Result{Timeline: g.Timeline(), Reason: ErrEmptyTopic}
	}

	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		return Result{Timeline: g.Timeline(), Reason: ErrGenerationInFlight}
	}
	g.busy = true
	g.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With("topic", topic)
	log.Info("generating plan")
	start := time.Now()

	defer func() {
		g.mu.Lock()
		g.busy = false
		snap := append(domain.EventTimeline{}, g.timeline...)
		g.mu.Unlock()
		g.changes.Emit(snap)
	}()

	raw, err := g.gw.GenerateStructured(ctx, BuildPlanPrompt(topic), PlanSchema())
	if err != nil {
		log.Error("plan generation failed", "error", err, "kind", domain.GenerationErrorKindOf(err))
		metrics.ObservePlan(0, failureLabel(err))
		return Result{Timeline: g.Timeline(), Reason: err}
	}

	parsed := ParsePlan(raw)
	if !parsed.OK() {
		log.Error("plan payload rejected", "error", parsed.Err)
		metrics.ObservePlan(0, failureLabel(parsed.Err))
		return Result{Timeline: g.Timeline(), Reason: parsed.Err}
	}

	batch := parsed.Events
	g.mu.Lock()
	g.timeline = g.timeline.Prepend(batch)
	timeline := append(domain.EventTimeline{}, g.timeline...)
	g.mu.Unlock()

	metrics.ObservePlan(len(batch), "")
	log.Info("plan generated", "events", len(batch), "duration_ms", time.Since(start).Milliseconds())
	return Result{Timeline: timeline, Batch: batch}
}

// Timeline returns a copy of the timeline, newest batch first.
func (g *Generator) Timeline() domain.EventTimeline {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append(domain.EventTimeline{}, g.timeline...)
}

func (g *Generator) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Subscribe registers fn for every completed generation.
func (g *Generator) Subscribe(fn func(domain.EventTimeline)) (dispose func()) {
	return g.changes.Subscribe(fn)
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	}
	if kind := domain.GenerationErrorKindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
