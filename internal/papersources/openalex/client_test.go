package openalex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

// newTestClient creates a client configured for testing with the given server URL.
func newTestClient(serverURL string) *Client {
	cfg := Config{
		BaseURL:   serverURL,
		Email:     "test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 100, // High rate for testing
		BurstSize: 100,
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "TestClient/1.0",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// sampleSearchResponse returns a sample OpenAlex search response for testing.
func sampleSearchResponse() SearchResponse {
	return SearchResponse{
		Meta: Meta{Count: 1, Page: 1, PerPage: 1},
		Results: []Work{
			{
				ID:          "https://openalex.org/W2194775991",
				DOI:         "https://doi.org/10.1109/cvpr.2016.90",
				Title:       "Deep Residual Learning for Image Recognition",
				DisplayName: "Deep Residual Learning for Image Recognition",
				Language:    "en",
				PrimaryTopic: &Topic{
					DisplayName: "Advanced Neural Network Applications",
					Subfield:    &Hierarchy{DisplayName: "Computer Vision and Pattern Recognition"},
					Field:       &Hierarchy{DisplayName: "Computer Science"},
					Domain:      &Hierarchy{DisplayName: "Physical Sciences"},
				},
			},
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_Classify(t *testing.T) {
	t.Run("maps primary topic field and language", func(t *testing.T) {
		var gotQuery map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			q := r.URL.Query()
			gotQuery = map[string]string{
				"search":   q.Get("search"),
				"per_page": q.Get("per_page"),
				"mailto":   q.Get("mailto"),
			}
			writeJSON(t, w, sampleSearchResponse())
		}))
		defer server.Close()

		cls, err := newTestClient(server.URL).Classify(context.Background(),
			domain.ClassificationQuery{Title: "Deep Residual Learning, for Image Recognition"})

		require.NoError(t, err)
		assert.Equal(t, "Deep Residual Learning  for Image Recognition", gotQuery["search"])
		assert.Equal(t, "1", gotQuery["per_page"])
		assert.Equal(t, "test@example.com", gotQuery["mailto"])

		assert.Equal(t, "Computer Science", cls.Category)
		assert.Equal(t, "en", cls.Language)
		assert.Equal(t, "Deep Residual Learning for Image Recognition", cls.MatchedTitle)
		assert.True(t, cls.TitleKeyed)
		assert.Equal(t, domain.SourceTypeOpenAlex, cls.Source)
	})

	t.Run("falls back to topics then domain", func(t *testing.T) {
		resp := SearchResponse{Results: []Work{{
			DisplayName: "Only display name",
			Topics: []Topic{
				{Domain: &Hierarchy{DisplayName: "Life Sciences"}},
			},
		}}}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, resp)
		}))
		defer server.Close()

		cls, err := newTestClient(server.URL).Classify(context.Background(), domain.ClassificationQuery{Title: "x"})

		require.NoError(t, err)
		assert.Equal(t, "Life Sciences", cls.Category)
		assert.Equal(t, "Only display name", cls.MatchedTitle)
	})

	t.Run("no results is not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, SearchResponse{})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Classify(context.Background(), domain.ClassificationQuery{Title: "nothing"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("work without topics is not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, SearchResponse{Results: []Work{{Title: "bare"}}})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Classify(context.Background(), domain.ClassificationQuery{Title: "bare"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("requires a title", func(t *testing.T) {
		_, err := newTestClient("http://127.0.0.1:1").Classify(context.Background(), domain.ClassificationQuery{ArxivID: "1706.03762"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rate limit status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Classify(context.Background(), domain.ClassificationQuery{Title: "x"})

		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Classify(context.Background(), domain.ClassificationQuery{Title: "x"})

		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	})
}

func TestNew(t *testing.T) {
	client := New(Config{}, nil, nil)

	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, "openalex", client.httpClient.Source())
	assert.Equal(t, "OpenAlex", client.Name())
}
