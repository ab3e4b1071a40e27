package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"curator/internal/catalog"
	"curator/internal/config"
)

type searchResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	Runtime      int     `json:"runtime"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Client looks up metadata against a TMDB-compatible API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a metadata client from the provider configuration.
func NewClient(cfg config.Provider, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("provider api key required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("provider base url required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(cfg.Language),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchAndMatch queries the provider for the item's title and year, fetches
// details for the top search hit, and maps the payload into a MatchResult.
// It returns (nil, nil) when the search produced no results.
func (c *Client) SearchAndMatch(ctx context.Context, item *catalog.Item) (*MatchResult, error) {
	if item == nil || strings.TrimSpace(item.Title) == "" {
		return nil, errors.New("item title must not be empty")
	}

	hit, err := c.search(ctx, item)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return nil, nil
	}

	details, err := c.details(ctx, item.MediaType, hit.ID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		details = hit
	}
	return mapResult(item.MediaType, details), nil
}

func (c *Client) search(ctx context.Context, item *catalog.Item) (*searchResult, error) {
	path := "/search/movie"
	if !item.MediaType.IsMovie() {
		path = "/search/tv"
	}

	params := url.Values{}
	params.Set("query", item.Title)
	if item.Year > 0 {
		if item.MediaType.IsMovie() {
			params.Set("primary_release_year", strconv.Itoa(item.Year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(item.Year))
		}
	}

	var payload searchResponse
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}
	return &payload.Results[0], nil
}

func (c *Client) details(ctx context.Context, mediaType catalog.MediaType, id int64) (*searchResult, error) {
	if id <= 0 {
		return nil, nil
	}
	path := fmt.Sprintf("/movie/%d", id)
	if !mediaType.IsMovie() {
		path = fmt.Sprintf("/tv/%d", id)
	}
	var payload searchResult
	if err := c.get(ctx, path, url.Values{}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse provider url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d for %s (latency=%v)", resp.StatusCode, path, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func mapResult(mediaType catalog.MediaType, payload *searchResult) *MatchResult {
	result := &MatchResult{}

	title := payload.Title
	date := payload.ReleaseDate
	if !mediaType.IsMovie() {
		title = payload.Name
		date = payload.FirstAirDate
	}
	if title = strings.TrimSpace(title); title != "" {
		result.Title = &title
	}
	if year := parseYear(date); year > 0 {
		result.Year = &year
	}
	if overview := strings.TrimSpace(payload.Overview); overview != "" {
		result.Overview = &overview
	}
	if payload.VoteAverage > 0 {
		rating := payload.VoteAverage
		result.Rating = &rating
	}
	if payload.Runtime > 0 {
		runtime := payload.Runtime
		result.RuntimeMinutes = &runtime
	}
	if date = strings.TrimSpace(date); date != "" {
		result.AiredDate = &date
	}
	if len(payload.Genres) > 0 {
		names := make([]string, 0, len(payload.Genres))
		for _, genre := range payload.Genres {
			if name := strings.TrimSpace(genre.Name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			joined := strings.Join(names, ", ")
			result.Genres = &joined
		}
	}
	return result
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
