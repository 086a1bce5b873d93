// Package geocode resolves free-text addresses to coordinates through a
// third-party geocoding API. One request per query; no caching or retries.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	httpTimeout = 10 * time.Second
	maxResults  = 5
)

// Suggestion is one geocoding result.
type Suggestion struct {
	Formatted string  `json:"formatted"`
	City      string  `json:"city"`
	Road      string  `json:"road"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Country   string  `json:"country"`
}

// Client calls the geocoding API.
type Client struct {
	endpoint string
	key      string
	client   *http.Client
}

// New returns a Client for endpoint authenticated with key.
func New(endpoint, key string) *Client {
	return &Client{endpoint: endpoint, key: key, client: &http.Client{Timeout: httpTimeout}}
}

type apiResponse struct {
	Results []apiResult `json:"results"`
	Status  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

type apiResult struct {
	Formatted  string `json:"formatted"`
	Components struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Road    string `json:"road"`
		Country string `json:"country"`
	} `json:"components"`
	Geometry struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"geometry"`
}

// Lookup returns suggestions for query in the provider's order.
func (c *Client) Lookup(ctx context.Context, query string) ([]Suggestion, error) {
	if c.key == "" {
		return nil, fmt.Errorf("geocoding is not configured")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.key)
	params.Set("limit", strconv.Itoa(maxResults))
	params.Set("no_annotations", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("geocoder returned %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned %d: %s", resp.StatusCode, apiResp.Status.Message)
	}

	out := make([]Suggestion, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		city := r.Components.City
		if city == "" {
			city = r.Components.Town
		}
		if city == "" {
			city = r.Components.Village
		}
		out = append(out, Suggestion{
			Formatted: r.Formatted,
			City:      city,
			Road:      r.Components.Road,
			Lat:       r.Geometry.Lat,
			Lng:       r.Geometry.Lng,
			Country:   r.Components.Country,
		})
	}
	return out, nil
}
