package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"truthlink/config"
	"truthlink/core/reports"
)

// Suggestion is one autocomplete candidate for a free-text location.
type Suggestion struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Client talks to a MapTiler-compatible geocoding API. Every call is
// bounded by the configured timeout; callers treat errors as a signal
// to continue without coordinates.
type Client struct {
	baseURL string
	apiKey  string
	limit   int
	http    *http.Client
}

func NewClient(cfg config.GeocodingConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	limit := cfg.SuggestLimit
	if limit <= 0 {
		limit = 5
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limit:   limit,
		http:    &http.Client{Timeout: timeout},
	}
}

// geoResponse mirrors the GeoJSON feature collection the API returns.
// center is [longitude, latitude].
type geoResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Resolve returns the best match for query, or nil when the API knows
// no such place.
func (c *Client) Resolve(ctx context.Context, query string) (*reports.GeoPoint, error) {
	res, err := c.forward(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(res.Features) == 0 || len(res.Features[0].Center) < 2 {
		return nil, nil
	}
	return &reports.GeoPoint{
		Latitude:  res.Features[0].Center[1],
		Longitude: res.Features[0].Center[0],
	}, nil
}

// Suggest returns up to the configured number of candidates for an
// autocomplete box.
func (c *Client) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	res, err := c.forward(ctx, query, c.limit)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(res.Features))
	for _, f := range res.Features {
		if len(f.Center) < 2 {
			continue
		}
		out = append(out, Suggestion{
			Label:     f.PlaceName,
			Latitude:  f.Center[1],
			Longitude: f.Center[0],
		})
	}
	return out, nil
}

func (c *Client) forward(ctx context.Context, query string, limit int) (*geoResponse, error) {
	u := fmt.Sprintf("%s/%s.json?key=%s&limit=%d",
		c.baseURL, url.PathEscape(query), url.QueryEscape(c.apiKey), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding api status %d", resp.StatusCode)
	}
	var res geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}
	return &res, nil
}
