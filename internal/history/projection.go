package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/retry"
)

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"commandId":           map[string]any{"type": "keyword"},
			"canonicalProductId":  map[string]any{"type": "keyword"},
			"sellerName":          map[string]any{"type": "keyword"},
			"price":               map[string]any{"type": "scaled_float", "scaling_factor": 100},
			"stockStatus":         map[string]any{"type": "keyword"},
			"originalStockStatus": map[string]any{"type": "text"},
			"productName":         map[string]any{"type": "text"},
			"sourceUrl":           map[string]any{"type": "keyword", "index": false},
			"timestamp":           map[string]any{"type": "date"},
		},
	},
}

// NewSearchClient creates an Elasticsearch client and verifies it answers a
// ping, retrying with backoff.
func NewSearchClient(ctx context.Context, cfg SearchConfig, log logger.Logger) (*es.Client, error) {
	cfg.SetDefaults()
	url := cfg.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	esCfg := es.Config{
		Addresses:  []string{url},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := es.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.IsRetryable = func(error) bool { return true }
	err = retry.Retry(ctx, retryCfg, func() error {
		res, pingErr := client.Ping(client.Ping.WithContext(ctx))
		if pingErr != nil {
			return pingErr
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("ping: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to elasticsearch at %s: %w", url, err)
	}

	log.Info("Elasticsearch connection established", logger.String("url", url))
	return client, nil
}

// SearchProjection indexes price points into Elasticsearch, one document
// per command id.
type SearchProjection struct {
	client  *es.Client
	index   string
	timeout time.Duration
	log     logger.Logger
}

// NewSearchProjection creates a projection writing to cfg.Index.
func NewSearchProjection(client *es.Client, cfg SearchConfig, log logger.Logger) *SearchProjection {
	cfg.SetDefaults()
	return &SearchProjection{
		client:  client,
		index:   cfg.Index,
		timeout: cfg.IndexTimeout,
		log:     log.With(logger.Component("search_projection")),
	}
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (p *SearchProjection) EnsureIndex(ctx context.Context) error {
	res, err := p.client.Indices.Exists([]string{p.index}, p.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", p.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	res, err = p.client.Indices.Create(
		p.index,
		p.client.Indices.Create.WithContext(ctx),
		p.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", p.index, err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", p.index, res.String())
	}
	p.log.Info("Created search index", logger.String("index", p.index))
	return nil
}

// Index writes point under its command id. Re-indexing the same point
// overwrites the document with identical content.
func (p *SearchProjection) Index(ctx context.Context, point *domain.NormalizedPricePoint) error {
	if point.CommandID == "" {
		return errors.New("price point has no command id")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("encode price point: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      p.index,
		DocumentID: point.CommandID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return fmt.Errorf("index price point %s: %w", point.CommandID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index price point %s: %s", point.CommandID, res.String())
	}
	return nil
}
