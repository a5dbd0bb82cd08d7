package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComparisonEntry is a ProductRecord annotated with its ranking against the rest of
// the result set.
type ComparisonEntry struct {
	ProductRecord
	Savings     decimal.Decimal `json:"savings"`
	IsBestPrice bool            `json:"isBestPrice"`
}

// ComparisonResult is what /compare returns and what gets cached under
// compare:<product>:<platforms>.
type ComparisonResult struct {
	Query            string              `json:"query"`
	BestPrice        decimal.NullDecimal `json:"bestPrice"`
	Comparison       []ComparisonEntry   `json:"comparison"`
	PlatformsChecked []string            `json:"platformsChecked"`
	TotalOptions     int                 `json:"totalOptions"`
	Timestamp        time.Time           `json:"timestamp"`
}

// SearchResult groups raw records by normalized name so the same product sold by
// different sources ends up under one key.
type SearchResult struct {
	Query        string                     `json:"query"`
	TotalResults int                        `json:"totalResults"`
	Platforms    []string                   `json:"platforms"`
	Products     map[string][]ProductRecord `json:"products"`
	Timestamp    time.Time                  `json:"timestamp"`
}

// ScrapeResult is the response of an on-demand single source scrape.
type ScrapeResult struct {
	Success       bool            `json:"success"`
	Platform      string          `json:"platform"`
	Query         string          `json:"query"`
	ProductsFound int             `json:"productsFound"`
	Products      []ProductRecord `json:"products"`
}
