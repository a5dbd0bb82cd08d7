package scrapers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{name: "rupee with grouping and suffix", input: "₹1,234.50 off", want: "1234.5", valid: true},
		{name: "plain integer", input: "60", want: "60", valid: true},
		{name: "currency prefix with dot", input: "Rs. 55", want: "55", valid: true},
		{name: "euro suffix", input: "4.99 €", want: "4.99", valid: true},
		{name: "zero is a real price", input: "₹0", want: "0", valid: true},
		{name: "negative sign is stripped", input: "-12", want: "12", valid: true},
		{name: "out of stock", input: "Out of stock", valid: false},
		{name: "empty", input: "", valid: false},
		{name: "only dots", input: "...", valid: false},
		{name: "two decimal points", input: "1.234.50", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Decimal.String())
				assert.False(t, got.Decimal.IsNegative())
			}
		})
	}
}

func TestCommaDecimal(t *testing.T) {
	tests := map[string]string{
		"4,99 €":   "4.99 €",
		"1.299,00": "1299.00",
		"12,99":    "12.99",
		"4.99":     "4.99",
		"1,299.99": "1,299.99",
		"":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CommaDecimal(in), "input %q", in)
	}
	assert.Equal(t, "12.99", ParsePrice(CommaDecimal("12,99")).Decimal.String())
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"  Amul Taaza   Milk 1L ": "amul taaza milk 1l",
		"MILK\t1L":                "milk 1l",
		"milk\n\n1l":              "milk 1l",
		"":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}
