package scrapers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"hunter-compare/pkg/models"
)

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// ParsePrice keeps only digits and decimal points. Anything that does not then read
// as a number is an absent price, never zero: "₹1,234.50 off" is 1234.50 and
// "Out of stock" is absent.
func ParsePrice(s string) decimal.NullDecimal {
	cleaned := strings.Trim(nonNumeric.ReplaceAllString(s, ""), ".")
	if cleaned == "" {
		return models.NoPrice
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return models.NoPrice
	}
	return models.Price(d)
}

// CommaDecimal rewrites a price written with a decimal comma ("1.299,99 €") into
// the decimal-point form ParsePrice reads ("1299.99 €"). Strings whose last
// separator is a point, like "1,299.99", are returned unchanged.
func CommaDecimal(s string) string {
	comma := strings.LastIndex(s, ",")
	if comma < 0 || comma < strings.LastIndex(s, ".") {
		return s
	}
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", ".")
}

// NormalizeName lower-cases and collapses whitespace. The result is the grouping
// key for search results, not a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
