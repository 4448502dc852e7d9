package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// RemoteVerifier resolves tokens by asking the identity provider who they belong to.
type RemoteVerifier struct {
	userURL string
	apiKey  string
	base    *http.Client
}

// NewRemoteVerifier targets <authURL>/user. apiKey is forwarded as the apikey header.
func NewRemoteVerifier(authURL, apiKey string) (*RemoteVerifier, error) {
	authURL = strings.TrimRight(strings.TrimSpace(authURL), "/")
	if authURL == "" {
		return nil, fmt.Errorf("AUTH_URL is required for remote auth")
	}
	return &RemoteVerifier{
		userURL: authURL + "/user",
		apiKey:  apiKey,
		base:    http.DefaultClient,
	}, nil
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify calls the provider's user endpoint with token as the bearer credential.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return Session{}, err
	}
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("auth user lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Session{}, ErrInvalidToken
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Session{}, fmt.Errorf("auth user lookup status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return Session{}, fmt.Errorf("auth user decode: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: user.ID, Email: user.Email, AccessToken: token}, nil
}

var _ Verifier = (*RemoteVerifier)(nil)
