package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

var (
	// ErrMalformedPayload means the payload is not a JSON array.
	ErrMalformedPayload = errors.New("plan: malformed payload")
	// ErrSchemaViolation means the payload is a JSON array whose entries do
	// not describe valid planned events.
	ErrSchemaViolation = errors.New("plan: schema violation")
)

// ParseResult is either a batch of events or the reason none were produced.
type ParseResult struct {
	Events []domain.PlannedEvent
	Err    error
}

func (r ParseResult) OK() bool {
	return r.Err == nil
}

var (
	compileOnce sync.Once
	planSchema  *gojsonschema.Schema
	compileErr  error
)

func compiledPlanSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		planSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(PlanSchema()))
	})
	return planSchema, compileErr
}

// ParsePlan validates raw provider output against PlanSchema and decodes it.
// A surrounding markdown code fence is tolerated.
func ParsePlan(raw string) ParseResult {
	payload := stripCodeFence(raw)

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return ParseResult{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	if entries == nil {
		return ParseResult{Err: fmt.Errorf("%w: expected a JSON array", ErrMalformedPayload)}
	}

	schema, err := compiledPlanSchema()
	if err != nil {
		return ParseResult{Err: fmt.Errorf("compiling plan schema: %w", err)}
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return ParseResult{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return ParseResult{Err: fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))}
	}

	events := make([]domain.PlannedEvent, 0, len(entries))
	if err := json.Unmarshal([]byte(payload), &events); err != nil {
		return ParseResult{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}

	for i, ev := range events {
		if _, err := time.Parse(domain.DateLayout, ev.Date); err != nil {
			return ParseResult{Err: fmt.Errorf("%w: event %d has invalid date %q", ErrSchemaViolation, i, ev.Date)}
		}
		if !ev.Type.Valid() {
			return ParseResult{Err: fmt.Errorf("%w: event %d has unknown type %q", ErrSchemaViolation, i, ev.Type)}
		}
	}

	return ParseResult{Events: events}
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
