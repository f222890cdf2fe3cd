// Package arxiv classifies papers through the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is passed through to the HTTP client.
	MaxRetries int

	// UserAgent overrides the default User-Agent.
	UserAgent string
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

// Client implements papersources.ClassificationSource for arXiv.
// It only answers id-keyed queries.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements ClassificationSource interface.
var _ papersources.ClassificationSource = (*Client)(nil)

// New creates a new arXiv client. limiter and observer may be nil.
func New(cfg Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     string(domain.SourceTypeArXiv),
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

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
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

// Classify looks up the paper by arXiv id and returns its primary category
// and language. Title-keyed queries are rejected with domain.ErrInvalidInput.
func (c *Client) Classify(ctx context.Context, q domain.ClassificationQuery) (*domain.Classification, error) {
	if !q.ByID() {
		return nil, domain.NewValidationError("arxiv_id", "arXiv lookups require an identifier")
	}

	entry, lang, err := c.fetch(ctx, strings.TrimSpace(q.ArxivID))
	if err != nil {
		return nil, err
	}

	category := entry.PrimaryCategory.Term
	if category == "" {
		for _, cat := range entry.Categories {
			if cat.Term != "" {
				category = cat.Term
				break
			}
		}
	}
	if category == "" {
		return nil, domain.NewNotFoundError("arxiv category", q.ArxivID)
	}

	return &domain.Classification{
		Category:     category,
		Language:     lang,
		MatchedTitle: normalizeWhitespace(entry.Title),
		Source:       domain.SourceTypeArXiv,
	}, nil
}

// fetch retrieves the feed entry for an id along with its language. The
// language is taken from the summary, then the feed, then the response's
// Content-Language header.
func (c *Client) fetch(ctx context.Context, id string) (*Entry, string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	query := url.Values{}
	query.Set("id_list", id)
	baseURL.RawQuery = query.Encode()

	ctx = papersources.WithEndpoint(ctx, "query")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, "", domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, "", fmt.Errorf("decoding response: %w: %w", domain.ErrMalformedResponse, err)
	}

	// arXiv reports unknown or malformed ids as an entry whose id points at
	// its errors page rather than an abstract.
	if len(feed.Entries) == 0 || extractArXivID(feed.Entries[0].ID) == "" {
		return nil, "", domain.NewNotFoundError("paper", id)
	}

	entry := &feed.Entries[0]
	lang := entry.Summary.Lang
	if lang == "" {
		lang = feed.Lang
	}
	if lang == "" {
		lang = resp.Header.Get("Content-Language")
	}
	return entry, lang, nil
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" → "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
