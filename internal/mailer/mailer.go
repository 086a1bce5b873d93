// Package mailer sends transactional email through a hosted delivery API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 15 * time.Second

// Client sends email through the provider's REST API.
type Client struct {
	baseURL string
	key     string
	from    string
	client  *http.Client
}

// New returns a Client. from is the sender address used for every message.
func New(baseURL, key, from string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		from:    from,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send delivers one message and returns the provider's message id.
func (c *Client) Send(ctx context.Context, to, subject, html string) (string, error) {
	if c.key == "" {
		return "", fmt.Errorf("email delivery is not configured")
	}

	payload, err := json.Marshal(sendRequest{From: c.from, To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var sr sendResponse
	_ = json.Unmarshal(body, &sr)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := sr.Message
		if msg == "" {
			msg = string(body)
		}
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, msg)
	}
	return sr.ID, nil
}
