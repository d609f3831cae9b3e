package history

import "time"

// DefaultIndex is the search projection index name.
const DefaultIndex = "price_points"

// Config configures the recorder.
type Config struct {
	Workers int          `yaml:"workers" env:"HISTORY_WORKERS"`
	Search  SearchConfig `yaml:"search"`
}

// SearchConfig configures the optional Elasticsearch projection.
type SearchConfig struct {
	Enabled      bool          `yaml:"enabled"       env:"HISTORY_SEARCH_ENABLED"`
	URL          string        `yaml:"url"           env:"ELASTICSEARCH_URL"`
	Username     string        `yaml:"username"      env:"ELASTICSEARCH_USERNAME"`
	Password     string        `yaml:"password"      env:"ELASTICSEARCH_PASSWORD"`
	APIKey       string        `yaml:"api_key"       env:"ELASTICSEARCH_API_KEY"`
	Index        string        `yaml:"index"         env:"HISTORY_SEARCH_INDEX"`
	IndexTimeout time.Duration `yaml:"index_timeout" env:"HISTORY_SEARCH_INDEX_TIMEOUT"`
	MaxRetries   int           `yaml:"max_retries"   env:"ELASTICSEARCH_MAX_RETRIES"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	c.Search.SetDefaults()
}

// SetDefaults fills zero values.
func (c *SearchConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:9200"
	}
	if c.Index == "" {
		c.Index = DefaultIndex
	}
	if c.IndexTimeout <= 0 {
		c.IndexTimeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}
