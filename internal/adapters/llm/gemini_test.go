package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeReply struct {
	res *genai.GenerateContentResponse
	err error
}

type fakeModels struct {
	calls   []fakeCall
	replies []fakeReply
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.res, r.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

func newTestGateway(f *fakeModels) *GeminiGateway {
	g := newGeminiGateway(f, "test-model", 3)
	g.backoff = time.Millisecond
	return g
}

func TestConverseBuildsRequest(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{res: textResponse("Merhaba!")}}}
	g := newTestGateway(f)

	history := []domain.ProviderTurn{
		{Role: "user", Parts: []domain.Part{{Text: "selam"}}},
		{Role: "model", Parts: []domain.Part{{Text: "merhaba"}}},
	}

	res, err := g.Converse(context.Background(), history, "KDV nedir?", "sistem talimatı", true)
	if err != nil {
		t.Fatalf("Converse failed: %v", err)
	}
	if res.Text != "Merhaba!" {
		t.Fatalf("unexpected text %q", res.Text)
	}

	if len(f.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(f.calls))
	}
	call := f.calls[0]
	if call.model != "test-model" {
		t.Errorf("unexpected model %q", call.model)
	}
	if len(call.contents) != 3 {
		t.Fatalf("expected history + new turn (3 contents), got %d", len(call.contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range call.contents {
		if c.Role != wantRoles[i] {
			t.Errorf("content %d: expected role %q, got %q", i, wantRoles[i], c.Role)
		}
	}
	if got := call.contents[2].Parts[0].Text; got != "KDV nedir?" {
		t.Errorf("expected new text last, got %q", got)
	}
	if call.config.SystemInstruction == nil || call.config.SystemInstruction.Parts[0].Text != "sistem talimatı" {
		t.Errorf("system instruction not set: %+v", call.config.SystemInstruction)
	}
	if len(call.config.Tools) != 1 || call.config.Tools[0].GoogleSearch == nil {
		t.Errorf("expected search tool, got %+v", call.config.Tools)
	}
}

func TestConverseWithoutSearchDeclaresNoTools(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{res: textResponse("ok")}}}
	g := newTestGateway(f)

	if _, err := g.Converse(context.Background(), nil, "hi", "", false); err != nil {
		t.Fatalf("Converse failed: %v", err)
	}
	if len(f.calls[0].config.Tools) != 0 {
		t.Fatalf("expected no tools, got %+v", f.calls[0].config.Tools)
	}
}

func TestConverseReturnsGrounding(t *testing.T) {
	res := textResponse("Yeni tebliğ yayımlandı.")
	res.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://www.gib.gov.tr", Title: "GİB"}},
			{RetrievedContext: &genai.GroundingChunkRetrievedContext{URI: "doc://1", Title: "Tebliğ", Text: "madde 1"}},
		},
		GroundingSupports: []*genai.GroundingSupport{
			{Segment: &genai.Segment{Text: "Yeni tebliğ"}, GroundingChunkIndices: []int32{0}},
		},
	}
	f := &fakeModels{replies: []fakeReply{{res: res}}}
	g := newTestGateway(f)

	out, err := g.Converse(context.Background(), nil, "ne var ne yok", "", true)
	if err != nil {
		t.Fatalf("Converse failed: %v", err)
	}
	if len(out.Grounding) != 2 {
		t.Fatalf("expected 2 grounding chunks, got %+v", out.Grounding)
	}
	if out.Grounding[0].Source != "https://www.gib.gov.tr" || out.Grounding[0].Snippet != "Yeni tebliğ" {
		t.Errorf("unexpected web chunk %+v", out.Grounding[0])
	}
	if out.Grounding[1].Snippet != "madde 1" {
		t.Errorf("unexpected retrieved chunk %+v", out.Grounding[1])
	}
}

func TestConverseErrorClassification(t *testing.T) {
	safety := textResponse("")
	safety.Candidates[0].FinishReason = genai.FinishReason("SAFETY")

	cases := []struct {
		name  string
		reply fakeReply
		want  error
	}{
		{"empty text", fakeReply{res: textResponse("  ")}, domain.ErrEmptyResponse},
		{"safety block", fakeReply{res: safety}, domain.ErrProviderRefused},
		{"api error", fakeReply{err: &genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}}, domain.ErrProviderRefused},
		{"transport", fakeReply{err: errors.New("connection reset by peer")}, domain.ErrNetworkFailure},
		{"deadline", fakeReply{err: context.DeadlineExceeded}, domain.ErrNetworkFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeModels{replies: []fakeReply{tc.reply}}
			g := newTestGateway(f)

			_, err := g.Converse(context.Background(), nil, "soru", "", true)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{
		{err: &genai.APIError{Code: 503, Status: "UNAVAILABLE"}},
		{err: &genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}},
		{res: textResponse("tamam")},
	}}
	g := newTestGateway(f)

	res, err := g.Converse(context.Background(), nil, "soru", "", false)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if res.Text != "tamam" || len(f.calls) != 3 {
		t.Fatalf("expected 3 attempts ending in success, got %d calls, text %q", len(f.calls), res.Text)
	}
}

func TestGenerateStructuredSendsSchema(t *testing.T) {
	f := &fakeModels{replies: []fakeReply{{res: textResponse(`[{"title":"a","date":"2024-03-20","type":"Meeting"}]`)}}}
	g := newTestGateway(f)

	schema := &domain.Schema{
		Type: domain.SchemaArray,
		Items: &domain.Schema{
			Type: domain.SchemaObject,
			Properties: map[string]*domain.Schema{
				"title": {Type: domain.SchemaString},
				"type":  {Type: domain.SchemaString, Enum: []string{"Seminar", "Meeting", "Plan"}},
			},
			Required: []string{"title", "type"},
		},
	}

	raw, err := g.GenerateStructured(context.Background(), "plan üret", schema)
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}
	if raw == "" {
		t.Fatal("expected raw payload")
	}

	call := f.calls[0]
	if len(call.contents) != 1 || call.contents[0].Parts[0].Text != "plan üret" {
		t.Fatalf("expected single prompt turn, got %+v", call.contents)
	}
	if call.config.ResponseMIMEType != "application/json" {
		t.Errorf("unexpected mime type %q", call.config.ResponseMIMEType)
	}
	rs := call.config.ResponseSchema
	if rs == nil || rs.Type != genai.TypeArray || rs.Items == nil || rs.Items.Type != genai.TypeObject {
		t.Fatalf("unexpected schema %+v", rs)
	}
	if got := rs.Items.Properties["type"].Enum; len(got) != 3 {
		t.Errorf("expected enum to be carried over, got %v", got)
	}
	if len(rs.Items.Required) != 2 {
		t.Errorf("expected required fields, got %v", rs.Items.Required)
	}
}
