package planner

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

// Service keeps one Generator per user, loaded from and persisted to the
// event store.
type Service struct {
	gw    domain.GenerationGateway
	store domain.EventStore

	mu         sync.Mutex
	generators map[domain.UserID]*Generator
}

func NewService(gw domain.GenerationGateway, store domain.EventStore) *Service {
	return &Service{
		gw:         gw,
		store:      store,
		generators: make(map[domain.UserID]*Generator),
	}
}

// Generate runs a plan generation for userID and persists a successful batch.
// A store failure is logged; the in-memory timeline keeps the batch.
func (s *Service) Generate(ctx context.Context, userID domain.UserID, topic string) (Result, error) {
	gen, err := s.generator(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	res := gen.Generate(ctx, topic)
	if res.Reason != nil || len(res.Batch) == 0 {
		return res, nil
	}

	if err := s.store.AppendBatch(ctx, userID, res.Batch); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to persist plan batch",
			"user_id", userID,
			"events", len(res.Batch),
			"error", err,
		)
	}
	return res, nil
}

// Timeline returns the user's timeline, newest batch first.
func (s *Service) Timeline(ctx context.Context, userID domain.UserID) (domain.EventTimeline, bool, error) {
	gen, err := s.generator(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return gen.Timeline(), gen.Busy(), nil
}

// generator returns the user's live generator, loading the stored timeline
// outside mu on first use. The first generator registered wins a race.
func (s *Service) generator(ctx context.Context, userID domain.UserID) (*Generator, error) {
	s.mu.Lock()
	gen, ok := s.generators[userID]
	s.mu.Unlock()
	if ok {
		return gen, nil
	}

	stored, err := s.store.ListEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading timeline for %s: %w", userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := s.generators[userID]; ok {
		return gen, nil
	}
	gen = NewGenerator(s.gw, WithTimeline(stored))
	s.generators[userID] = gen
	return gen, nil
}
