package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

// contentGenerator is the subset of *genai.Models the gateway needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiConfig struct {
	// APIKey selects the Gemini API backend. When empty, Vertex AI is used
	// with Project and Location.
	APIKey   string
	Project  string
	Location string
	Model    string

	MaxRetries int
}

// GeminiGateway implements domain.GenerationGateway on top of genai.
type GeminiGateway struct {
	models     contentGenerator
	modelName  string
	maxRetries int
	backoff    time.Duration
}

// NewGeminiGateway creates a gateway backed by the Gemini API or Vertex AI.
func NewGeminiGateway(ctx context.Context, cfg GeminiConfig) (*GeminiGateway, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIKey == "" {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("gemini: API key or project and location must be set")
		}
		clientCfg = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return newGeminiGateway(client.Models, cfg.Model, cfg.MaxRetries), nil
}

func newGeminiGateway(models contentGenerator, model string, maxRetries int) *GeminiGateway {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GeminiGateway{
		models:     models,
		modelName:  model,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// Converse implements domain.GenerationGateway.
func (g *GeminiGateway) Converse(
	ctx context.Context,
	history []domain.ProviderTurn,
	newText string,
	systemInstruction string,
	searchAugmented bool,
) (*domain.ConverseResult, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, toContent(turn))
	}
	contents = append(contents, genai.NewContentFromText(newText, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	if searchAugmented {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	res, err := g.generate(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return nil, domain.EmptyResponse()
	}

	return &domain.ConverseResult{
		Text:      text,
		Grounding: groundingChunks(res),
	}, nil
}

// GenerateStructured implements domain.GenerationGateway.
func (g *GeminiGateway) GenerateStructured(ctx context.Context, prompt string, schema *domain.Schema) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(schema),
	}

	res, err := g.generate(ctx, contents, cfg)
	if err != nil {
		return "", err
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", domain.EmptyResponse()
	}
	return text, nil
}

// generate issues the request, retrying transient provider errors with
// exponential backoff, and maps every failure to a *domain.GenerationError.
func (g *GeminiGateway) generate(
	ctx context.Context,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	log := observability.LoggerFromContext(ctx).With("model", g.modelName)

	var (
		res *genai.GenerateContentResponse
		err error
	)
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		res, err = g.models.GenerateContent(ctx, g.modelName, contents, cfg)
		if err == nil || !isRetriable(err) || attempt == g.maxRetries-1 {
			break
		}

		wait := g.backoff * time.Duration(1<<uint(attempt))
		log.Warn("retrying generation", "attempt", attempt+1, "wait", wait.String(), "error", err)
		select {
		case <-ctx.Done():
			return nil, domain.NetworkFailure(ctx.Err())
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, classify(err)
	}
	if res == nil {
		return nil, domain.EmptyResponse()
	}
	if reason := refusalReason(res); reason != "" {
		return nil, domain.ProviderRefused(reason, nil)
	}
	return res, nil
}

func toContent(turn domain.ProviderTurn) *genai.Content {
	role := genai.RoleUser
	if turn.Role == "model" {
		role = genai.RoleModel
	}
	parts := make([]*genai.Part, 0, len(turn.Parts))
	for _, p := range turn.Parts {
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	return &genai.Content{Role: string(role), Parts: parts}
}

func toGenaiSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             genaiType(s.Type),
		Description:      s.Description,
		Enum:             s.Enum,
		Required:         s.Required,
		PropertyOrdering: s.PropertyOrdering,
		Items:            toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case domain.SchemaArray:
		return genai.TypeArray
	case domain.SchemaObject:
		return genai.TypeObject
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// groundingChunks returns the first candidate's grounding sources. Web
// chunks carry no text, so snippets come from the supports that cite them.
func groundingChunks(res *genai.GenerateContentResponse) []domain.GroundingChunk {
	if len(res.Candidates) == 0 || res.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	meta := res.Candidates[0].GroundingMetadata

	out := make([]domain.GroundingChunk, 0, len(meta.GroundingChunks))
	for _, ch := range meta.GroundingChunks {
		switch {
		case ch == nil:
			continue
		case ch.Web != nil:
			out = append(out, domain.GroundingChunk{Source: ch.Web.URI, Title: ch.Web.Title})
		case ch.RetrievedContext != nil:
			out = append(out, domain.GroundingChunk{
				Source:  ch.RetrievedContext.URI,
				Title:   ch.RetrievedContext.Title,
				Snippet: ch.RetrievedContext.Text,
			})
		}
	}

	for _, sup := range meta.GroundingSupports {
		if sup == nil || sup.Segment == nil {
			continue
		}
		for _, idx := range sup.GroundingChunkIndices {
			i := int(idx)
			if i >= 0 && i < len(out) && out[i].Snippet == "" {
				out[i].Snippet = sup.Segment.Text
			}
		}
	}
	return out
}

func refusalReason(res *genai.GenerateContentResponse) string {
	if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
		return "prompt blocked: " + string(res.PromptFeedback.BlockReason)
	}
	if len(res.Candidates) > 0 && res.Candidates[0] != nil {
		switch reason := string(res.Candidates[0].FinishReason); reason {
		case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
			return "candidate blocked: " + reason
		}
	}
	return ""
}

func apiError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func isRetriable(err error) bool {
	apiErr, ok := apiError(err)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case 429, 500, 503:
		return true
	}
	return false
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NetworkFailure(err)
	}
	if apiErr, ok := apiError(err); ok {
		return domain.ProviderRefused(fmt.Sprintf("status %d %s", apiErr.Code, apiErr.Status), err)
	}
	return domain.NetworkFailure(err)
}
