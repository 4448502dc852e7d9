// Package requester is a typed client for the remote function endpoints.
package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/util"
)

const (
	// MaxTextChars caps every document text sent to a function.
	MaxTextChars = 200000

	noSummary = "No summary."
	noAnswer  = "No answer."

	maxBodyBytes = 4 << 20
)

// Result is the decoded outcome of one function call: Success or Failure.
type Result interface {
	result()
}

// Success carries the endpoint's result field.
type Success struct {
	Value string
}

// Failure carries a flat function error body.
type Failure struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (Success) result() {}
func (Failure) result() {}

// Error is returned for every non-success result.
type Error struct {
	Failure
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = e.Detail
	}
	return fmt.Sprintf("function status %d: %s", e.Status, msg)
}

// LimitReached reports whether the server refused the call on quota.
func (e *Error) LimitReached() bool {
	return e.Status == http.StatusTooManyRequests
}

// Client calls the functions as one user. Session supplies that user's
// access token; APIKey is sent as the apikey header.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Session oauth2.TokenSource
}

// New returns a Client for the user holding accessToken.
func New(baseURL, apiKey, accessToken string) *Client {
	var session oauth2.TokenSource
	if accessToken != "" {
		session = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 3 * time.Minute},
		Session: session,
	}
}

// Summarize asks the summarize function for a summary of text.
func (c *Client) Summarize(ctx context.Context, text, name string) (string, error) {
	body := map[string]string{"text": util.Truncate(text, MaxTextChars)}
	if name != "" {
		body["name"] = name
	}
	return c.call(ctx, "/summarize", body, "summary", noSummary)
}

// Ask asks a question grounded in docs.
func (c *Client) Ask(ctx context.Context, question string, docs []llm.Doc) (string, error) {
	capped := make([]llm.Doc, len(docs))
	for i, d := range docs {
		capped[i] = llm.Doc{Name: d.Name, Text: util.Truncate(d.Text, MaxTextChars)}
	}
	return c.call(ctx, "/ask", map[string]any{"question": question, "docs": capped}, "answer", noAnswer)
}

// Transcribe asks the transcribe function to fetch and transcribe url.
func (c *Client) Transcribe(ctx context.Context, url string) (string, error) {
	return c.call(ctx, "/transcribe", map[string]string{"url": url}, "text", "")
}

// Share publishes a summary page and returns its public URL.
func (c *Client) Share(ctx context.Context, name, summary string) (string, error) {
	return c.call(ctx, "/share", map[string]string{"name": name, "summary": summary}, "url", "")
}

func (c *Client) call(ctx context.Context, path string, payload any, field, placeholder string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", path, err)
	}

	switch r := Decode(resp.StatusCode, body, field).(type) {
	case Success:
		if r.Value == "" {
			return placeholder, nil
		}
		return r.Value, nil
	case Failure:
		return "", &Error{Failure: r}
	default:
		return "", fmt.Errorf("call %s: unexpected result %T", path, r)
	}
}

func (c *Client) httpClient() *http.Client {
	base := c.HTTP
	if base == nil {
		base = http.DefaultClient
	}
	if c.Session == nil {
		return base
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: c.Session, Base: base.Transport},
		Timeout:   base.Timeout,
	}
}

// Decode validates a function response body. Any 2xx body must be a JSON
// object; field is read from it when it is a string. Non-2xx bodies decode
// into Failure, keeping the status.
func Decode(status int, body []byte, field string) Result {
	if status < 200 || status > 299 {
		var f Failure
		if err := json.Unmarshal(body, &f); err != nil || f.Message == "" {
			f = Failure{Message: http.StatusText(status), Detail: strings.TrimSpace(string(body))}
		}
		f.Status = status
		return f
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return Failure{Status: status, Message: "invalid response"}
	}
	var value string
	if raw, ok := obj[field]; ok {
		if err := json.Unmarshal(raw, &value); err != nil {
			return Failure{Status: status, Message: "invalid response"}
		}
	}
	return Success{Value: strings.TrimSpace(value)}
}
