package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/metrics"
	"askmydocs-backend/internal/shared/telemetry"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Client implements llm.Generator using the OpenAI Responses API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. An empty baseURL uses the public API.
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: TimeoutFromEnv(),
		},
	}, nil
}

// TimeoutFromEnv reads OPENAI_TIMEOUT_SECONDS, defaulting to two minutes.
func TimeoutFromEnv() time.Duration {
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return timeout
}

type responsesRequest struct {
	Model           string  `json:"model"`
	Input           string  `json:"input"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
	Temperature     float32 `json:"temperature"`
}

type contentPart struct {
	Text    *string `json:"text"`
	Content *string `json:"content"`
}

type responsesResponse struct {
	OutputText *string `json:"output_text"`
	Choices    []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Output []struct {
		Content []contentPart `json:"content"`
	} `json:"output"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Generate sends one prompt and returns the extracted text, possibly empty.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	payload, err := json.Marshal(responsesRequest{
		Model:           c.model,
		Input:           req.Prompt,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	metrics.IncLLMCall()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.IncLLMFailure()
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()
	metrics.ObserveLLMDurationMs(metrics.SinceMillis(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncLLMFailure()
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncLLMFailure()
		return "", &llm.UpstreamError{Status: resp.StatusCode, Detail: string(body)}
	}

	var parsed responsesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.IncLLMFailure()
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	logUsage(c.model, parsed)
	return extractText(parsed), nil
}

// extractText prefers output_text, then the first chat choice, then the
// joined output content parts.
func extractText(r responsesResponse) string {
	if r.OutputText != nil {
		return strings.TrimSpace(*r.OutputText)
	}
	if len(r.Choices) > 0 && r.Choices[0].Message.Content != nil {
		return strings.TrimSpace(*r.Choices[0].Message.Content)
	}
	parts := make([]string, 0)
	for _, o := range r.Output {
		for _, c := range o.Content {
			switch {
			case c.Text != nil:
				parts = append(parts, *c.Text)
			case c.Content != nil:
				parts = append(parts, *c.Content)
			default:
				parts = append(parts, "")
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func logUsage(model string, r responsesResponse) {
	fields := map[string]any{"provider": "openai", "model": model}
	if r.Usage != nil {
		fields["input_tokens"] = r.Usage.InputTokens
		fields["output_tokens"] = r.Usage.OutputTokens
		fields["total_tokens"] = r.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

var _ llm.Generator = (*Client)(nil)
