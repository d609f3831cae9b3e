package domain

import (
	"errors"
	"time"
)

// ErrInvalidCommand is returned by ScrapeCommand.Validate.
var ErrInvalidCommand = errors.New("invalid scrape command")

// ScrapeCommand asks the executor to scrape one mapping. At most one is
// outstanding per mapping; CommandID correlates every downstream message.
type ScrapeCommand struct {
	CommandID          string    `json:"commandId"`
	MappingID          int64     `json:"mappingId"`
	CanonicalProductID string    `json:"canonicalProductId"`
	SellerName         string    `json:"sellerName"`
	URL                string    `json:"url"`
	Selectors          Selectors `json:"selectors"`
	Profile            Identity  `json:"profile"`
	ScheduledAt        time.Time `json:"scheduledAt"`
}

// Validate checks the fields the executor cannot work without.
func (c *ScrapeCommand) Validate() error {
	switch {
	case c.CommandID == "":
		return errors.Join(ErrInvalidCommand, errors.New("commandId is required"))
	case c.MappingID <= 0:
		return errors.Join(ErrInvalidCommand, errors.New("mappingId is required"))
	case c.URL == "":
		return errors.Join(ErrInvalidCommand, errors.New("url is required"))
	case c.Selectors.Price == "":
		return errors.Join(ErrInvalidCommand, errors.New("price selector is required"))
	}
	return nil
}

// OutcomeEvent records the result of executing one ScrapeCommand.
type OutcomeEvent struct {
	CommandID      string      `json:"commandId"`
	MappingID      int64       `json:"mappingId"`
	WasSuccessful  bool        `json:"wasSuccessful"`
	Timestamp      time.Time   `json:"timestamp"`
	FailureKind    FailureKind `json:"failureKind,omitempty"`
	ErrorCode      string      `json:"errorCode,omitempty"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	HTTPStatusCode int         `json:"httpStatusCode,omitempty"`
	Attempts       int         `json:"attempts,omitempty"`
}

// RawPricePoint is the unvalidated extraction result of a successful scrape.
type RawPricePoint struct {
	CommandID          string    `json:"commandId"`
	MappingID          int64     `json:"mappingId"`
	CanonicalProductID string    `json:"canonicalProductId"`
	SellerName         string    `json:"sellerName"`
	ScrapedPrice       float64   `json:"scrapedPrice"`
	ScrapedPriceText   string    `json:"scrapedPriceText,omitempty"`
	ScrapedStockStatus string    `json:"scrapedStockStatus"`
	ScrapedProductName string    `json:"scrapedProductName"`
	SourceURL          string    `json:"sourceUrl"`
	Timestamp          time.Time `json:"timestamp"`
}

// NormalizedPricePoint is a validated, canonical price observation.
// Persisted append-only and never mutated.
type NormalizedPricePoint struct {
	CommandID           string      `db:"command_id"            json:"commandId"`
	CanonicalProductID  string      `db:"canonical_product_id"  json:"canonicalProductId"`
	SellerName          string      `db:"seller_name"           json:"sellerName"`
	Price               float64     `db:"price"                 json:"price"`
	StockStatus         StockStatus `db:"stock_status"          json:"stockStatus"`
	OriginalStockStatus *string     `db:"original_stock_status" json:"originalStockStatus,omitempty"`
	ProductName         *string     `db:"product_name"          json:"productName,omitempty"`
	SourceURL           string      `db:"source_url"            json:"sourceUrl"`
	Timestamp           time.Time   `db:"observed_at"           json:"timestamp"`
}
