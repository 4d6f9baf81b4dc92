// Package textnorm cleans raw OCR output before field extraction. All
// operations are pure and idempotent: normalizing already-normalized text
// returns it unchanged.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// htmlEntities maps the HTML entities that OCR pipelines and upstream web
// forms leave behind in German invoice text.
var htmlEntities = strings.NewReplacer(
	"&auml;", "ä",
	"&ouml;", "ö",
	"&uuml;", "ü",
	"&Auml;", "Ä",
	"&Ouml;", "Ö",
	"&Uuml;", "Ü",
	"&szlig;", "ß",
	"&euro;", "€",
	"&nbsp;", " ",
	"&amp;", "&",
	"&quot;", "\"",
)

// mojibake maps UTF-8 byte sequences that were decoded as Latin-1 somewhere
// along the OCR chain back to the intended characters.
var mojibake = strings.NewReplacer(
	"Ã¤", "ä",
	"Ã¶", "ö",
	"Ã¼", "ü",
	"Ã„", "Ä",
	"Ã–", "Ö",
	"Ãœ", "Ü",
	"ÃŸ", "ß",
	"â‚¬", "€",
)

// ocrTypos corrects recognition mistakes that recur across scanned German
// invoices. The table is ordered longest-first so broader corrections run
// before substrings of themselves.
var ocrTypos = strings.NewReplacer(
	"l nvoice", "Invoice",
	"Rechnunq", "Rechnung",
	"Daturn", "Datum",
	"Surnme", "Summe",
	"GrnbH", "GmbH",
	"Betraq", "Betrag",
	"Gesarnt", "Gesamt",
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
)

// Normalizer prepares raw OCR text for pattern extraction.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize repairs HTML entities, mojibake and common OCR typos, applies
// Unicode NFC composition and collapses whitespace while preserving line
// structure. It never fails; unrecognized input passes through untouched.
func (n *Normalizer) Normalize(text string) string {
	text = htmlEntities.Replace(text)
	text = mojibake.Replace(text)
	text = ocrTypos.Replace(text)

	composed, _, err := transform.String(norm.NFC, text)
	if err == nil {
		text = composed
	}

	return collapseWhitespace(text)
}

// collapseWhitespace squeezes runs of horizontal whitespace to a single
// space and runs of three or more newlines to two. Newlines survive because
// the supplier and position heuristics work line by line.
func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = manyNewlines.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
