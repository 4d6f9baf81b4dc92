// Package parse converts German-formatted amounts and dates from OCR text
// into typed values. Parsers report absence through a boolean instead of an
// error, because missing values are the normal case on scanned invoices.
package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// 1.234,56 with thousands dot and decimal comma
	germanAmount = regexp.MustCompile(`^\d{1,3}(\.\d{3})*,\d{2}$`)
	// 1,234.56 with thousands comma and decimal dot
	englishAmount = regexp.MustCompile(`^\d{1,3}(,\d{3})*\.\d{2}$`)
)

// AmountParser parses monetary amounts written in German or English
// notation. The zero value is ready to use.
type AmountParser struct{}

// NewAmountParser returns an AmountParser.
func NewAmountParser() *AmountParser {
	return &AmountParser{}
}

// Parse converts an amount string into a decimal. The strict German format
// is tried before the strict English one, since a string like "1.234" is
// ambiguous and these invoices are German. Anything that fits neither strict
// format falls back to treating a comma as the decimal separator. The second
// return value is false when the input holds no parseable number, so a
// genuine zero amount stays distinguishable from an absent one.
func (p *AmountParser) Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var cleaned string
	switch {
	case germanAmount.MatchString(s):
		cleaned = strings.ReplaceAll(s, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case englishAmount.MatchString(s):
		cleaned = strings.ReplaceAll(s, ",", "")
	default:
		cleaned = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
