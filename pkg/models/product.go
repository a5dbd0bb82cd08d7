package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are rendered as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductRecord is one listing from one source. Records are built by an adapter at
// parse time and never modified afterwards.
type ProductRecord struct {
	SourceID      string              `json:"sourceId"`
	ExternalID    string              `json:"externalId"`
	Name          string              `json:"name"`
	Price         decimal.NullDecimal `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	DiscountLabel string              `json:"discountLabel,omitempty"`
	ImageURL      string              `json:"imageUrl,omitempty"`
	DetailURL     string              `json:"detailUrl,omitempty"`
	InStock       bool                `json:"inStock"`
	Weight        string              `json:"weight,omitempty"`
	Brand         string              `json:"brand,omitempty"`
	FetchedAt     time.Time           `json:"fetchedAt"`
}

// HasPrice reports whether the listing carried a parsable price.
func (p ProductRecord) HasPrice() bool {
	return p.Price.Valid
}

// Price returns a known price as a NullDecimal.
func Price(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(v)
}

// NoPrice is the absent price. It is never treated as zero.
var NoPrice = decimal.NullDecimal{}
