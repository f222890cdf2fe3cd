package paperswithcode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Papers with Code API base URL.
	DefaultBaseURL = "https://paperswithcode.com/api/v1"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second

	sourceName = "Papers with Code"
)

// Config holds configuration for the Papers with Code client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int
	UserAgent  string
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

// Client implements papersources.CatalogSource for Papers with Code.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements CatalogSource interface.
var _ papersources.CatalogSource = (*Client)(nil)

// New creates a new Papers with Code client. limiter and observer may be nil.
func New(cfg Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     string(domain.SourceTypePapersWithCode),
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
		Limiter:    limiter,
		Observer:   observer,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client.
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
	return sourceName
}

// ListPage returns one page of seed summaries. A 404 past the last page is
// reported as an empty page.
func (c *Client) ListPage(ctx context.Context, page, size int) (*domain.CatalogPage, error) {
	if page < 1 {
		return nil, domain.NewValidationError("page", "must be >= 1")
	}
	if size < 1 {
		return nil, domain.NewValidationError("size", "must be >= 1")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/papers/"
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("items_per_page", strconv.Itoa(size))
	baseURL.RawQuery = query.Encode()

	ctx = papersources.WithEndpoint(ctx, "papers")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.CatalogPage{Page: page}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	var listing PaperPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding response: %w: %w", domain.ErrMalformedResponse, err)
	}

	out := &domain.CatalogPage{
		Page:    page,
		Total:   listing.Count,
		Results: make([]domain.SeedSummary, 0, len(listing.Results)),
		HasNext: listing.Next != nil && *listing.Next != "",
	}
	for i := range listing.Results {
		if seed, ok := paperToSeed(&listing.Results[i]); ok {
			out.Results = append(out.Results, seed)
		}
	}
	return out, nil
}

// paperToSeed converts a catalog entry. Entries without a title are skipped.
func paperToSeed(p *Paper) (domain.SeedSummary, bool) {
	title := strings.Join(strings.Fields(p.Title), " ")
	if title == "" {
		return domain.SeedSummary{}, false
	}

	seed := domain.SeedSummary{
		CatalogID:  p.ID,
		Title:      title,
		ArxivID:    deref(p.ArxivID),
		Conference: deref(p.Conference),
	}
	if seed.Conference == "" {
		seed.Conference = deref(p.Proceeding)
	}
	if pub := deref(p.Published); pub != "" {
		if t, err := time.Parse("2006-01-02", pub); err == nil {
			seed.Published = &t
		}
	}
	for _, a := range p.Authors {
		if a = strings.TrimSpace(a); a != "" {
			seed.Authors = append(seed.Authors, a)
		}
	}
	return seed, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
