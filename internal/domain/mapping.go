// Package domain holds the entities and message contracts shared by every
// stage of the scraping pipeline.
package domain

import (
	"net/url"
	"strings"
	"time"
)

// Selectors are the CSS selectors a site config supplies for extraction.
type Selectors struct {
	ProductName  string `db:"selector_product_name" json:"productName"`
	Price        string `db:"selector_price"        json:"price"`
	Stock        string `db:"selector_stock"        json:"stock"`
	SellerOnPage string `db:"selector_seller"       json:"sellerOnPage,omitempty"`
}

// Mapping is a tracked (canonical product, seller, URL) tuple. Identity,
// Active and the frequency override are owned by the external catalog; the
// schedule fields are mutated only by the scheduler and the correlator.
type Mapping struct {
	ID                 int64  `db:"id"`
	CanonicalProductID string `db:"canonical_product_id"`
	SellerName         string `db:"seller_name"`
	URL                string `db:"url"`
	Active             bool   `db:"active"`
	SiteConfigID       int64  `db:"site_config_id"`
	// FrequencySeconds overrides the site config default when set.
	FrequencySeconds *int64 `db:"frequency_seconds"`
	// SiteFrequencySeconds is the site config default, joined in.
	SiteFrequencySeconds *int64 `db:"site_frequency_seconds"`
	Selectors

	LastScrapedAt       *time.Time `db:"last_scraped_at"`
	LastAttemptAt       *time.Time `db:"last_attempt_at"`
	NextScrapeAt        time.Time  `db:"next_scrape_at"`
	InFlight            bool       `db:"in_flight"`
	CurrentCommandID    *string    `db:"current_command_id"`
	DispatchedAt        *time.Time `db:"dispatched_at"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	LastErrorCode       *string    `db:"last_error_code"`
}

// EffectiveFrequency resolves the scrape interval: mapping override, then
// site config default, then fallback.
func (m *Mapping) EffectiveFrequency(fallback time.Duration) time.Duration {
	if m.FrequencySeconds != nil && *m.FrequencySeconds > 0 {
		return time.Duration(*m.FrequencySeconds) * time.Second
	}
	if m.SiteFrequencySeconds != nil && *m.SiteFrequencySeconds > 0 {
		return time.Duration(*m.SiteFrequencySeconds) * time.Second
	}
	return fallback
}

// Domain returns the throttling key for the mapping's URL.
func (m *Mapping) Domain() (string, error) {
	return DomainOf(m.URL)
}

// DomainOf returns the lowercased hostname of rawURL.
func DomainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &url.Error{Op: "parse", URL: rawURL, Err: errMissingHost}
	}
	return host, nil
}
