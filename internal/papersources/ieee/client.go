package ieee

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

const (
	// DefaultHandleURL is the doi.org handle API prefix.
	DefaultHandleURL = "https://doi.org/api/handles/"

	// DefaultBaseURL is the IEEE Xplore base URL.
	DefaultBaseURL = "https://ieeexplore.ieee.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second

	sourceName = "IEEE Xplore"

	// handleSuccess is the handle API response code for a resolved handle.
	handleSuccess = 1
)

// documentNumberRegex extracts the Xplore article number from a document URL.
var documentNumberRegex = regexp.MustCompile(`/document/(\d+)`)

// Config holds configuration for the IEEE extractor.
type Config struct {
	// HandleURL is the DOI handle API prefix; the DOI is appended.
	HandleURL string

	// BaseURL is the Xplore base URL used for the REST endpoint.
	BaseURL string

	// RenderEndpoint, when set, fetches the HTML references page through a
	// rendering proxy as GET {RenderEndpoint}?url={page}.
	RenderEndpoint string

	// DisableREST skips the REST endpoint and reads the HTML page only.
	DisableREST bool

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int
	UserAgent  string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.HandleURL == "" {
		c.HandleURL = DefaultHandleURL
	}
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

// Client implements papersources.PublisherExtractor for IEEE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PublisherExtractor interface.
var _ papersources.PublisherExtractor = (*Client)(nil)

// New creates a new IEEE extractor. limiter and observer may be nil.
func New(cfg Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     string(domain.SourceTypeIEEE),
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

// NewWithHTTPClient creates a new extractor with a custom HTTP client.
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

// Extract returns the paper's reference strings in page order with markup
// removed. publisher is accepted for interface symmetry; the registry has
// already routed the call here.
func (c *Client) Extract(ctx context.Context, id, publisher string) ([]string, error) {
	id = domain.CanonicalID(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "empty identifier")
	}

	docURL, err := c.resolveHandle(ctx, id)
	if err != nil {
		return nil, err
	}

	if !c.config.DisableREST {
		if m := documentNumberRegex.FindStringSubmatch(docURL); len(m) == 2 {
			refs, err := c.fetchREST(ctx, m[1], docURL)
			if err == nil && len(refs) > 0 {
				return refs, nil
			}
		}
	}

	refs, err := c.fetchHTML(ctx, strings.TrimRight(docURL, "/")+"/references")
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, domain.NewNotFoundError("references", id)
	}
	return refs, nil
}

// resolveHandle maps a DOI to the publisher's landing URL.
func (c *Client) resolveHandle(ctx context.Context, id string) (string, error) {
	var handle HandleResponse
	err := c.getJSON(papersources.WithEndpoint(ctx, "doi_handle"), c.config.HandleURL+id, "", &handle)
	if err != nil {
		return "", err
	}
	if handle.ResponseCode != handleSuccess || len(handle.Values) == 0 {
		return "", domain.NewNotFoundError("handle", id)
	}

	// Prefer the URL record; the first value is the historical default.
	chosen := handle.Values[0]
	for _, v := range handle.Values {
		if strings.EqualFold(v.Type, "URL") {
			chosen = v
			break
		}
	}

	var link string
	if err := json.Unmarshal(chosen.Data.Value, &link); err != nil || strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("%w: handle %s has no URL value", domain.ErrMalformedResponse, id)
	}
	return strings.TrimSpace(link), nil
}

// fetchREST reads references from the Xplore REST endpoint.
func (c *Client) fetchREST(ctx context.Context, docNumber, docURL string) ([]string, error) {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/rest/document/" + docNumber + "/references"

	var payload ReferencesResponse
	err := c.getJSON(papersources.WithEndpoint(ctx, "rest_references"), endpoint, strings.TrimRight(docURL, "/")+"/references", &payload)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(payload.References))
	for _, r := range payload.References {
		text := stripMarkup(r.Text)
		if text == "" {
			// A bare title is quoted so it reads like a full citation.
			if title := stripMarkup(r.Title); title != "" {
				text = `"` + title + `"`
			}
		}
		if text != "" {
			refs = append(refs, text)
		}
	}
	return refs, nil
}

// fetchHTML reads the references page and returns the text of the first
// non-number span of each reference container.
func (c *Client) fetchHTML(ctx context.Context, pageURL string) ([]string, error) {
	target := pageURL
	if c.config.RenderEndpoint != "" {
		u, err := url.Parse(c.config.RenderEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing render endpoint: %w", err)
		}
		q := u.Query()
		q.Set("url", pageURL)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(papersources.WithEndpoint(ctx, "references_page"), http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w: %w", domain.ErrMalformedResponse, err)
	}

	var refs []string
	doc.Find("div.reference-container").Each(func(_ int, s *goquery.Selection) {
		span := s.Find("span").Not(".number").First()
		text := strings.Join(strings.Fields(span.Text()), " ")
		if text != "" {
			refs = append(refs, text)
		}
	})
	return refs, nil
}

// getJSON performs a GET and decodes a JSON body into out. referer is sent
// when non-empty; Xplore rejects REST calls without one.
func (c *Client) getJSON(ctx context.Context, rawURL, referer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewNotFoundError("resource", rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w: %w", domain.ErrMalformedResponse, err)
	}
	return nil
}

// stripMarkup returns the text content of an HTML fragment with whitespace
// collapsed.
func stripMarkup(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
