package extract

import (
	"regexp"
	"strings"

	"invoicescan/pkg/models"
)

// Supplier identity is rarely labeled on German invoices; it sits in the
// document header above everything else. These heuristics exploit that
// position instead of guessing from arbitrary text, and prefer returning
// the sentinel over a confident wrong answer.

var (
	// lines carrying labeled invoice data are never a company name. Short
	// keywords are word-bounded so names like "Muster Handwerk" are not
	// rejected for containing them.
	supplierStoplist = regexp.MustCompile(`(?i)rechnung|invoice|datum|total|mwst|\bust\b|€|\btel\b|telefon|fax|email|www|\b(?:nr|nummer)\b\s*[:.]`)
	startsWithDigit  = regexp.MustCompile(`^\d`)
	hasLetters       = regexp.MustCompile(`[a-zA-ZäöüÄÖÜß]`)

	streetCityPattern = regexp.MustCompile(`(?i)([A-Za-zäöüÄÖÜß \-\.]+(?:straße|str\.|weg|platz|gasse|allee).*?\d+.*?)(\d{5} [A-Za-zäöüÄÖÜß \-]+)`)
	postalCityPattern = regexp.MustCompile(`(\d{5} [A-Za-zäöüÄÖÜß \-]+)`)
)

// SupplierIdentifier infers supplier name and address from the document
// header lines.
type SupplierIdentifier struct {
	nameScanLines    int
	addressScanLines int
}

// NewSupplierIdentifier returns an identifier scanning the given number of
// header lines for the name and the address respectively.
func NewSupplierIdentifier(nameScanLines, addressScanLines int) *SupplierIdentifier {
	return &SupplierIdentifier{
		nameScanLines:    nameScanLines,
		addressScanLines: addressScanLines,
	}
}

// Name returns the first header line that looks like a company name: longer
// than 10 characters, contains letters, does not start with a digit and
// carries none of the labeled-field keywords. Returns the sentinel when no
// line qualifies.
func (s *SupplierIdentifier) Name(lines []string) string {
	for i := 0; i < len(lines) && i < s.nameScanLines; i++ {
		line := strings.TrimSpace(lines[i])
		if len(line) > 10 &&
			!supplierStoplist.MatchString(line) &&
			!startsWithDigit.MatchString(line) &&
			hasLetters.MatchString(line) {
			return line
		}
	}
	return models.NotFound
}

// Address scans the header for a street plus postal-code/city pair on one
// line. When only a postal-code/city line is found, the immediately
// preceding line is assumed to be the street. Returns "" when neither shape
// appears.
func (s *SupplierIdentifier) Address(lines []string) string {
	for i := 0; i < len(lines) && i < s.addressScanLines; i++ {
		line := strings.TrimSpace(lines[i])

		if m := streetCityPattern.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]) + ", " + strings.TrimSpace(m[2])
		}

		if m := postalCityPattern.FindStringSubmatch(line); m != nil && i > 0 {
			return strings.TrimSpace(lines[i-1]) + ", " + strings.TrimSpace(m[1])
		}
	}
	return ""
}
