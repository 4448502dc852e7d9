package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/metrics"
	"askmydocs-backend/internal/shared/telemetry"
)

const DefaultModel = "gemini-1.5-flash"

// Client implements llm.Generator on Google Gemini.
type Client struct {
	client    *genai.Client
	modelName string
}

// NewClient dials Gemini with an API key.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Client{client: cl, modelName: modelName}, nil
}

// Close releases the underlying client.
func (g *Client) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	configure(m, req)

	start := time.Now()
	metrics.IncLLMCall()
	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	metrics.ObserveLLMDurationMs(metrics.SinceMillis(start))
	if err != nil {
		metrics.IncLLMFailure()
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	fields := map[string]any{"provider": "gemini", "model": g.modelName}
	if resp.UsageMetadata != nil {
		fields["input_tokens"] = resp.UsageMetadata.PromptTokenCount
		fields["output_tokens"] = resp.UsageMetadata.CandidatesTokenCount
	}
	telemetry.Info("llm.response", fields)
	return candidateText(resp), nil
}

func configure(m *genai.GenerativeModel, req llm.Request) {
	m.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ llm.Generator = (*Client)(nil)
