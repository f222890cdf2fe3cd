package crossref

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
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the polite pool rate in requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second

	sourceName = "Crossref"
)

// selectFields are the work fields requested from searches.
var selectFields = strings.Join([]string{
	"DOI", "URL", "title", "subject", "publisher", "reference", "author",
	"issued", "event", "container-title", "language",
}, ",")

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	BaseURL string

	// Mailto identifies the caller for the polite pool.
	Mailto string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	MaxRetries int

	// UserAgent overrides the default User-Agent.
	UserAgent string

	// FollowRateHeaders lowers the client rate when Crossref advertises a
	// smaller limit through X-Rate-Limit-* headers.
	FollowRateHeaders bool
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

// Client implements papersources.MetadataSource for Crossref.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements MetadataSource interface.
var _ papersources.MetadataSource = (*Client)(nil)

// New creates a new Crossref client. limiter and observer may be nil.
func New(cfg Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = papersources.DefaultUserAgent
	}
	if cfg.Mailto != "" {
		userAgent += " (mailto:" + cfg.Mailto + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     string(domain.SourceTypeCrossref),
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

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
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

// SearchByTitle runs a bibliographic query and returns the top hit.
// The hit is not validated against the title.
func (c *Client) SearchByTitle(ctx context.Context, title string) (*domain.Candidate, error) {
	title = SanitizeQuery(title)
	if title == "" {
		return nil, domain.NewValidationError("title", "empty query")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works"

	query := url.Values{}
	query.Set("query.bibliographic", title)
	query.Set("select", selectFields)
	query.Set("rows", "1")
	if c.config.Mailto != "" {
		query.Set("mailto", c.config.Mailto)
	}
	baseURL.RawQuery = query.Encode()

	var works WorksResponse
	if err := c.get(papersources.WithEndpoint(ctx, "works_search"), baseURL.String(), title, &works); err != nil {
		return nil, err
	}
	if works.Status != "ok" {
		return nil, fmt.Errorf("%w: status %q", domain.ErrMalformedResponse, works.Status)
	}
	if len(works.Message.Items) == 0 {
		return nil, domain.NewNotFoundError("work", title)
	}

	item := &works.Message.Items[0]
	if len(item.Title) == 0 || strings.TrimSpace(item.DOI) == "" {
		return nil, domain.NewNotFoundError("work", title)
	}
	return workToCandidate(item), nil
}

// LookupTitle fetches a single work by DOI and returns its title.
func (c *Client) LookupTitle(ctx context.Context, id string) (string, error) {
	id = domain.CanonicalID(id)
	if id == "" {
		return "", domain.NewValidationError("id", "empty identifier")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works/" + id
	if c.config.Mailto != "" {
		baseURL.RawQuery = url.Values{"mailto": {c.config.Mailto}}.Encode()
	}

	var work WorkResponse
	if err := c.get(papersources.WithEndpoint(ctx, "works_lookup"), baseURL.String(), id, &work); err != nil {
		return "", err
	}
	if len(work.Message.Title) == 0 || strings.TrimSpace(work.Message.Title[0]) == "" {
		return "", domain.NewNotFoundError("work title", id)
	}
	return strings.TrimSpace(work.Message.Title[0]), nil
}

// get performs a GET and decodes a JSON body into out.
func (c *Client) get(ctx context.Context, rawURL, subject string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if c.config.FollowRateHeaders {
		c.followRateHeaders(resp.Header)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewNotFoundError("work", subject)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w: %w", domain.ErrMalformedResponse, err)
	}
	return nil
}

// followRateHeaders lowers the rate limiter to the advertised limit.
// Crossref sends e.g. "X-Rate-Limit-Limit: 50" and "X-Rate-Limit-Interval: 1s".
func (c *Client) followRateHeaders(h http.Header) {
	limit, err := strconv.ParseFloat(h.Get("X-Rate-Limit-Limit"), 64)
	if err != nil || limit <= 0 {
		return
	}
	interval, err := time.ParseDuration(h.Get("X-Rate-Limit-Interval"))
	if err != nil || interval <= 0 {
		return
	}
	advertised := limit / interval.Seconds()
	rl := c.httpClient.RateLimiter()
	if advertised < rl.Rate() {
		rl.SetRate(advertised)
	}
}

// SanitizeQuery prepares a title for use as a bibliographic query.
// Ampersands are spelled out so they cannot split the query string.
func SanitizeQuery(title string) string {
	title = strings.ReplaceAll(title, "&", " and ")
	return strings.Join(strings.Fields(title), " ")
}

// workToCandidate converts a Crossref work into a domain candidate.
func workToCandidate(w *Work) *domain.Candidate {
	id := domain.CanonicalID(w.DOI)
	link := strings.TrimSpace(w.URL)
	if link == "" {
		link = domain.DOIURL(id)
	}

	cand := &domain.Candidate{
		ID:        id,
		URL:       link,
		Title:     strings.TrimSpace(w.Title[0]),
		Authors:   convertAuthors(w.Author),
		Date:      w.Issued.Time(),
		Publisher: strings.TrimSpace(w.Publisher),
		Subjects:  w.Subject,
		Language:  w.Language,
		Source:    domain.SourceTypeCrossref,
	}

	if w.Event != nil {
		cand.Venue = domain.Conference{
			Name:  strings.TrimSpace(w.Event.Name),
			Place: strings.TrimSpace(w.Event.Location),
			Date:  w.Event.Start.Time(),
		}
	}

	// A deposited but empty reference list still counts as structured.
	if w.Reference != nil {
		cand.HasReferences = true
		cand.References = convertReferences(w.Reference)
	}
	return cand
}

func convertAuthors(authors []Author) []domain.Author {
	out := make([]domain.Author, 0, len(authors))
	for _, a := range authors {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name == "" {
			continue
		}
		author := domain.Author{Name: name}
		for _, aff := range a.Affiliation {
			if org := strings.TrimSpace(aff.Name); org != "" {
				author.Organization = org
				break
			}
		}
		out = append(out, author)
	}
	return out
}

// convertReferences maps deposited references to raw entries. A DOI wins
// over free text; structured titles are used only as a last resort.
func convertReferences(refs []Reference) []domain.RawReferenceEntry {
	out := make([]domain.RawReferenceEntry, 0, len(refs))
	for _, r := range refs {
		switch {
		case strings.TrimSpace(r.DOI) != "":
			out = append(out, domain.RawReferenceEntry{Kind: domain.ReferenceKindDOI, Value: strings.TrimSpace(r.DOI)})
		case strings.TrimSpace(r.Unstructured) != "":
			out = append(out, domain.RawReferenceEntry{Kind: domain.ReferenceKindUnstructured, Value: strings.TrimSpace(r.Unstructured)})
		case strings.TrimSpace(r.ArticleTitle) != "":
			out = append(out, domain.RawReferenceEntry{Kind: domain.ReferenceKindStructuredTitle, Value: strings.TrimSpace(r.ArticleTitle)})
		case strings.TrimSpace(r.VolumeTitle) != "":
			out = append(out, domain.RawReferenceEntry{Kind: domain.ReferenceKindStructuredTitle, Value: strings.TrimSpace(r.VolumeTitle)})
		}
	}
	return out
}

// Time returns the first date in the parts, nil when no year is known.
// Missing month and day default to 1.
func (d DateParts) Time() *time.Time {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == 0 {
		return nil
	}
	parts := d.DateParts[0]
	month, day := 1, 1
	if len(parts) > 1 && parts[1] >= 1 && parts[1] <= 12 {
		month = parts[1]
	}
	if len(parts) > 2 && parts[2] >= 1 && parts[2] <= 31 {
		day = parts[2]
	}
	t := time.Date(parts[0], time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
