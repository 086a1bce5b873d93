// Package storage uploads files to the hosted object store and builds their
// public URLs.
package storage

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

const httpTimeout = 30 * time.Second

// Client talks to the object store REST API of one bucket.
type Client struct {
	baseURL string
	key     string
	bucket  string
	client  *http.Client
}

// New returns a Client for bucket. baseURL is the storage API root, e.g.
// https://project.example.co/storage/v1.
func New(baseURL, key, bucket string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		bucket:  bucket,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type uploadResponse struct {
	Key string `json:"Key"`
}

// Upload stores body under path, replacing any existing object, and returns
// the stored path.
func (c *Client) Upload(ctx context.Context, path, contentType string, body []byte) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("storage is not configured")
	}
	path = strings.TrimLeft(path, "/")
	endpoint := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage returned %d: %s", resp.StatusCode, string(raw))
	}

	var ur uploadResponse
	if err := json.Unmarshal(raw, &ur); err == nil && ur.Key != "" {
		// Key is "bucket/path".
		return strings.TrimPrefix(ur.Key, c.bucket+"/"), nil
	}
	return path, nil
}

// PublicURL returns the URL a browser can load path from.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
}
