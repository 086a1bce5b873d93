// Package authflow drives sign-in and sign-out against the hosted auth
// provider: password sign-in through its REST API and the OAuth redirect
// flow with a callback on this service.
package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quicktasker/gig-service/internal/apperr"
)

const httpTimeout = 15 * time.Second

// Session is what the provider returns on a successful sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// Client calls the auth provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient returns a Client for the provider at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e providerError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignIn exchanges email and password for a session. Rejected credentials
// come back as a validation error carrying the provider's message.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	body, status, err := c.do(ctx, "/token?grant_type=password", "", payload)
	if err != nil {
		return Session{}, err
	}
	if status != http.StatusOK {
		return Session{}, c.fail(status, body)
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("json unmarshal: %w", err)
	}
	if s.AccessToken == "" || s.User.ID == "" {
		return Session{}, fmt.Errorf("auth provider returned an empty session")
	}
	return s, nil
}

// SignOut revokes the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	body, status, err := c.do(ctx, "/logout", token, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return c.fail(status, body)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path, token string, payload []byte) ([]byte, int, error) {
	if c.baseURL == "" {
		return nil, 0, fmt.Errorf("auth provider is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) fail(status int, body []byte) error {
	var pe providerError
	_ = json.Unmarshal(body, &pe)
	msg := pe.text()
	if msg == "" {
		msg = string(body)
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity {
		return apperr.Invalid(msg)
	}
	return fmt.Errorf("auth provider returned %d: %s", status, msg)
}
