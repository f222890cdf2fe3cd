package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	MaxRetries int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements papersources.ClassificationSource for OpenAlex.
// Lookups are by title; the caller validates MatchedTitle.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements ClassificationSource interface.
var _ papersources.ClassificationSource = (*Client)(nil)

// New creates a new OpenAlex client. limiter and observer may be nil.
func New(cfg Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	userAgent := papersources.DefaultUserAgent
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     string(domain.SourceTypeOpenAlex),
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  userAgent,
		Limiter:    limiter,
		Observer:   observer,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "OpenAlex"
}

// Classify searches OpenAlex by title and returns the field of the best
// hit's primary topic along with its language.
func (c *Client) Classify(ctx context.Context, q domain.ClassificationQuery) (*domain.Classification, error) {
	title := strings.TrimSpace(q.Title)
	if title == "" {
		return nil, domain.NewValidationError("title", "OpenAlex lookups require a title")
	}

	searchURL, err := c.buildSearchURL(title)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	ctx = papersources.WithEndpoint(ctx, "works_search")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			"OpenAlex",
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w: %w", domain.ErrMalformedResponse, err)
	}

	if len(searchResp.Results) == 0 {
		return nil, domain.NewNotFoundError("work", title)
	}

	work := &searchResp.Results[0]
	category := workCategory(work)
	if category == "" {
		return nil, domain.NewNotFoundError("work category", title)
	}

	matched := work.Title
	if matched == "" {
		matched = work.DisplayName
	}

	return &domain.Classification{
		Category:     category,
		Language:     work.Language,
		MatchedTitle: matched,
		TitleKeyed:   true,
		Source:       domain.SourceTypeOpenAlex,
	}, nil
}

// buildSearchURL constructs the works search URL for a single best hit.
func (c *Client) buildSearchURL(title string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works"

	query := url.Values{}
	// Commas separate OpenAlex filter clauses and break free-text search.
	query.Set("search", strings.ReplaceAll(title, ",", " "))
	query.Set("per_page", "1")
	query.Set("select", "id,doi,title,display_name,language,primary_topic,topics")

	// Add mailto for polite pool
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// workCategory picks the field of the primary topic, falling back to the
// first topic that carries one and then to the topic's domain.
func workCategory(w *Work) string {
	topics := make([]*Topic, 0, len(w.Topics)+1)
	if w.PrimaryTopic != nil {
		topics = append(topics, w.PrimaryTopic)
	}
	for i := range w.Topics {
		topics = append(topics, &w.Topics[i])
	}

	for _, t := range topics {
		if t.Field != nil && t.Field.DisplayName != "" {
			return t.Field.DisplayName
		}
	}
	for _, t := range topics {
		if t.Domain != nil && t.Domain.DisplayName != "" {
			return t.Domain.DisplayName
		}
	}
	return ""
}
