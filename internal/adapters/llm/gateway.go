package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/metrics"
)

// WithTimeout bounds every gateway call by d. Expiry yields a
// NetworkFailure even when the inner gateway does not honor ctx.
func WithTimeout(inner domain.GenerationGateway, d time.Duration) domain.GenerationGateway {
	return &timeoutGateway{inner: inner, timeout: d}
}

type timeoutGateway struct {
	inner   domain.GenerationGateway
	timeout time.Duration
}

func (g *timeoutGateway) Converse(
	ctx context.Context,
	history []domain.ProviderTurn,
	newText string,
	systemInstruction string,
	searchAugmented bool,
) (*domain.ConverseResult, error) {
	return withDeadline(ctx, g.timeout, func(ctx context.Context) (*domain.ConverseResult, error) {
		return g.inner.Converse(ctx, history, newText, systemInstruction, searchAugmented)
	})
}

func (g *timeoutGateway) GenerateStructured(ctx context.Context, prompt string, schema *domain.Schema) (string, error) {
	return withDeadline(ctx, g.timeout, func(ctx context.Context) (string, error) {
		return g.inner.GenerateStructured(ctx, prompt, schema)
	})
}

func withDeadline[T any](parent context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil && domain.GenerationErrorKindOf(r.err) == "" {
			r.err = domain.NetworkFailure(r.err)
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, domain.NetworkFailure(fmt.Errorf("generation aborted after %s: %w", d, ctx.Err()))
	}
}

// WithMetrics records duration and outcome of every call.
func WithMetrics(inner domain.GenerationGateway) domain.GenerationGateway {
	return &metricsGateway{inner: inner}
}

type metricsGateway struct {
	inner domain.GenerationGateway
}

func (g *metricsGateway) Converse(
	ctx context.Context,
	history []domain.ProviderTurn,
	newText string,
	systemInstruction string,
	searchAugmented bool,
) (*domain.ConverseResult, error) {
	start := time.Now()
	res, err := g.inner.Converse(ctx, history, newText, systemInstruction, searchAugmented)
	metrics.ObserveGeneration("converse", outcome(err), time.Since(start))
	return res, err
}

func (g *metricsGateway) GenerateStructured(ctx context.Context, prompt string, schema *domain.Schema) (string, error) {
	start := time.Now()
	raw, err := g.inner.GenerateStructured(ctx, prompt, schema)
	metrics.ObserveGeneration("structured", outcome(err), time.Since(start))
	return raw, err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := domain.GenerationErrorKindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
