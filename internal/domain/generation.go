package domain

import (
	"errors"
	"fmt"
)

// Schema is a provider-neutral JSON Schema subset used to constrain
// structured generations. It marshals to standard JSON Schema.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`

	// PropertyOrdering is a provider hint; not part of JSON Schema.
	PropertyOrdering []string `json:"-"`
}

const (
	SchemaArray  = "array"
	SchemaObject = "object"
	SchemaString = "string"
)

// GroundingChunk is one source the provider used when search was enabled.
type GroundingChunk struct {
	Source  string `json:"source"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ConverseResult is a successful conversational generation.
type ConverseResult struct {
	Text      string
	Grounding []GroundingChunk
}

// GenerationErrorKind is the gateway failure taxonomy.
type GenerationErrorKind string

const (
	KindNetworkFailure  GenerationErrorKind = "network_failure"
	KindProviderRefused GenerationErrorKind = "provider_refused"
	KindEmptyResponse   GenerationErrorKind = "empty_response"
)

var (
	ErrNetworkFailure  = errors.New("generation: network failure")
	ErrProviderRefused = errors.New("generation: provider refused")
	ErrEmptyResponse   = errors.New("generation: empty response")
)

// GenerationError is returned by every GenerationGateway failure.
type GenerationError struct {
	Kind   GenerationErrorKind
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *GenerationError) Is(target error) bool {
	switch target {
	case ErrNetworkFailure:
		return e.Kind == KindNetworkFailure
	case ErrProviderRefused:
		return e.Kind == KindProviderRefused
	case ErrEmptyResponse:
		return e.Kind == KindEmptyResponse
	}
	return false
}

func NetworkFailure(err error) *GenerationError {
	return &GenerationError{Kind: KindNetworkFailure, Err: err}
}

func ProviderRefused(reason string, err error) *GenerationError {
	return &GenerationError{Kind: KindProviderRefused, Reason: reason, Err: err}
}

func EmptyResponse() *GenerationError {
	return &GenerationError{Kind: KindEmptyResponse}
}

// GenerationErrorKindOf returns the kind of err, or "" for foreign errors.
func GenerationErrorKindOf(err error) GenerationErrorKind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// AsGenerationError normalizes any error to a GenerationError. Errors that
// are not already classified are treated as network failures.
func AsGenerationError(err error) *GenerationError {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	return NetworkFailure(fmt.Errorf("unclassified: %w", err))
}
