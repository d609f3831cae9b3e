package history_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raulshma/tech-ticker-sub007/internal/history"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
)

type capturedRequest struct {
	method string
	path   string
	body   []byte
}

// mockTransport answers every Elasticsearch call with status and records it.
type mockTransport struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   func(req *http.Request) int
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	t.mu.Lock()
	t.requests = append(t.requests, capturedRequest{method: req.Method, path: req.URL.Path, body: body})
	t.mu.Unlock()

	status := http.StatusOK
	if t.status != nil {
		status = t.status(req)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(`{"acknowledged":true}`)),
		Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}},
	}, nil
}

func newProjection(t *testing.T, transport *mockTransport) *history.SearchProjection {
	t.Helper()
	client, err := es.NewClient(es.Config{Transport: transport})
	require.NoError(t, err)
	return history.NewSearchProjection(client, history.SearchConfig{}, logger.NewNop())
}

func TestSearchProjection_IndexUsesCommandID(t *testing.T) {
	t.Parallel()

	transport := &mockTransport{
		status: func(*http.Request) int { return http.StatusCreated },
	}
	projection := newProjection(t, transport)

	p := point("0b6f8a3e-1d2c-4c55-9a8e-6f7f1f0e2d11")
	require.NoError(t, projection.Index(context.Background(), &p))

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/price_points/_doc/0b6f8a3e-1d2c-4c55-9a8e-6f7f1f0e2d11", req.path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(req.body, &doc))
	assert.Equal(t, "prod-1", doc["canonicalProductId"])
	assert.Equal(t, "IN_STOCK", doc["stockStatus"])
}

func TestSearchProjection_IndexError(t *testing.T) {
	t.Parallel()

	transport := &mockTransport{
		status: func(*http.Request) int { return http.StatusBadRequest },
	}
	projection := newProjection(t, transport)

	p := point("cmd-1")
	require.Error(t, projection.Index(context.Background(), &p))

	p.CommandID = ""
	require.Error(t, projection.Index(context.Background(), &p))
	assert.Len(t, transport.requests, 1)
}

func TestSearchProjection_EnsureIndex(t *testing.T) {
	t.Parallel()

	t.Run("creates missing index", func(t *testing.T) {
		t.Parallel()
		transport := &mockTransport{
			status: func(req *http.Request) int {
				if req.Method == http.MethodHead {
					return http.StatusNotFound
				}
				return http.StatusOK
			},
		}
		require.NoError(t, newProjection(t, transport).EnsureIndex(context.Background()))

		require.Len(t, transport.requests, 2)
		assert.Equal(t, http.MethodPut, transport.requests[1].method)
		assert.Equal(t, "/price_points", transport.requests[1].path)
		assert.Contains(t, string(transport.requests[1].body), `"canonicalProductId"`)
	})

	t.Run("keeps existing index", func(t *testing.T) {
		t.Parallel()
		transport := &mockTransport{}
		require.NoError(t, newProjection(t, transport).EnsureIndex(context.Background()))
		assert.Len(t, transport.requests, 1)
	})
}
