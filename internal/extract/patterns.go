package extract

import (
	"regexp"
	"strings"
)

// Each logical field owns an ordered pattern list. Order is a contract:
// labeled, specific patterns come first and a generic catch-all, if any,
// comes last so it can never shadow a labeled match. The first pattern whose
// capturing group matches wins.

var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Rechnungs[\s-]*(?:Nr\.?|Nummer)\s*[:.]\s*([A-Z0-9\-/\._]+)`),
	regexp.MustCompile(`(?i)Rechnung\s*(?:Nr\.?|Nummer)?\s*[:.]\s*([A-Z0-9\-/\._]+)`),
	regexp.MustCompile(`(?i)(?:Rg|Re)[\s-]*(?:Nr\.?|Nummer)?\s*[:.]\s*([A-Z0-9\-/\._]+)`),
	regexp.MustCompile(`(?i)Invoice\s*(?:No\.?|Number)?\s*[:.]\s*([A-Z0-9\-/\._]+)`),
	regexp.MustCompile(`(?i)Beleg[\s-]*(?:Nr\.?|Nummer)?\s*[:.]\s*([A-Z0-9\-/\._]+)`),
	regexp.MustCompile(`(?i)(?:Nr\.?|Nummer)\s*[:.]\s*([A-Z0-9\-/\._]{3,})`),
}

var invoiceDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:rechnungsdatum|datum der rechnung)[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`),
	regexp.MustCompile(`(?i)(?:ausstellungsdatum|erstellungsdatum)[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`),
	regexp.MustCompile(`(?i)Datum[:\s]*(\d{1,2}\.\d{1,2}\.\d{4})`),
	// first bare date anywhere, as a last resort
	regexp.MustCompile(`(\d{1,2}\.\d{1,2}\.\d{4})`),
}

var serviceDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:leistungsdatum|lieferdatum)[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`),
	regexp.MustCompile(`(?i)(?:leistung vom|geliefert am)[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`),
}

// servicePeriodPattern captures start and end in one go.
var servicePeriodPattern = regexp.MustCompile(`(?i)(?:leistungszeitraum|zeitraum)[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})\s*(?:bis|-)\s*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`)

var vatIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:ust\.?[\s-]*id\.?[\s-]*nr\.?|umsatzsteuer[\s-]*id|vat[\s-]*id)[:\s]*([A-Z]{2}[\d\s]{8,12})`),
}

var taxNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:steuer[\s-]*nr\.?|steuernummer)[:\s]*(\d{2,4}/\d{3,4}/\d{4,6})`),
}

var ibanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)IBAN[:\s]*([A-Z]{2}\d{2}[\s\d]{15,32})`),
	regexp.MustCompile(`([A-Z]{2}\d{2}[\s\d]{15,32})`),
}

var bicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)BIC[:\s]*([A-Z]{4}[A-Z]{2}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)`),
	regexp.MustCompile(`(?i)SWIFT[:\s]*([A-Z]{4}[A-Z]{2}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)`),
}

var totalAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:gesamtbetrag|gesamt|total|summe|zu zahlen|zahlbetrag|brutto)[:\s]*€?\s*(\d{1,3}(?:[\.\s]\d{3})*[,\.]\d{2})`),
	regexp.MustCompile(`(?i)(?:endsumme|rechnungsbetrag)[:\s]*€?\s*(\d{1,3}(?:[\.\s]\d{3})*[,\.]\d{2})`),
	regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*,\d{2})\s*€`),
	regexp.MustCompile(`€\s*(\d{1,3}(?:\.\d{3})*,\d{2})`),
}

var netAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:netto(?:betrag|summe)?|summe netto)[:\s]*€?\s*(\d{1,3}(?:[\.\s]\d{3})*[,\.]\d{2})`),
	regexp.MustCompile(`(?i)zwischensumme[:\s]*€?\s*(\d{1,3}(?:[\.\s]\d{3})*[,\.]\d{2})`),
}

var vatRatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2}(?:[,\.]\d{1,2})?)\s*%\s*(?:mwst|ust|vat)`),
	regexp.MustCompile(`(?i)(?:mwst|ust|vat)\s*(\d{1,2}(?:[,\.]\d{1,2})?)\s*%`),
}

var vatAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:mwst|ust|steuer)[:\s]*€?\s*(\d{1,3}(?:[\.\s]\d{3})*[,\.]\d{2})`),
}

// vatBreakdownPattern scans the whole document for rate/amount pairs like
// "19% MwSt 190,00" to build a multi-rate breakdown.
var vatBreakdownPattern = regexp.MustCompile(`(?i)(\d{1,2}(?:[,\.]\d{1,2})?)\s*%.*?€?\s*(\d{1,3}(?:[\.\s]\d{3})*[,\.]\d{2})`)

var dueDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:fällig am|zahlbar bis|zahlungsziel|zahlung bis)[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`),
	regexp.MustCompile(`(?i)fälligkeit[:\s]*(\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4})`),
}

// relativeDueDatePattern captures payment terms given as a day offset.
var relativeDueDatePattern = regexp.MustCompile(`(?i)(?:zahlbar innerhalb|zahlung innerhalb)\s*(\d{1,2})\s*(?:tagen|tage|tag)`)

var paymentReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:verwendungszweck|zahlungsreferenz|referenz)[:\s]*([A-Z0-9\-/]+)`),
	regexp.MustCompile(`(?i)bei zahlung bitte angeben[:\s]*([A-Z0-9\-/]+)`),
}

var orderNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:bestell[\s-]*nr\.?|bestellung|auftrag(?:s)?[\s-]*nr\.?)[:\s]*([A-Z0-9\-/]+)`),
	regexp.MustCompile(`(?i)(?:order|po)[\s-]*(?:no\.?|number)[:\s]*([A-Z0-9\-/]+)`),
}

var deliveryNotePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:liefer[\s-]*schein[\s-]*nr\.?|ls[\s-]*nr\.?)[:\s]*([A-Z0-9\-/]+)`),
}

var projectReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:projekt[\s-]*nr\.?|projekt|project)[:\s]*([A-Z0-9\-/]+)`),
	regexp.MustCompile(`(?i)(?:bauvorhaben|baustelle)[:\s]*([A-Z0-9\-/]+)`),
}

var customerNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)kunden(?:nummer|nr)[:\s]*([A-Z0-9\-/]+)`),
	regexp.MustCompile(`(?i)kd\.?[\s-]?nr[:\s]*([A-Z0-9\-/]+)`),
}

var contactPersonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:ihr ansprechpartner|ansprechpartner|kontakt)[:\s]*([A-Za-zäöüÄÖÜß\-\. ]+)`),
}

var emailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`),
}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:tel\.?|telefon|phone)[:\s]*([+\d][\d\s\-/\(\)]+)`),
}

var discountTermsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2}\s*%\s*(?:skonto|rabatt)(?:\s*bei\s*zahlung)?[^\n]*)`),
	regexp.MustCompile(`(?i)(?:skonto|rabatt)[:\s]*([^\n]{5,50})`),
}

var reverseChargePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)reverse[\s-]*charge`),
	regexp.MustCompile(`(?i)steuerschuldnerschaft des leistungsempfängers`),
	regexp.MustCompile(`(?i)§\s*13b\s*ustg`),
}

var intraCommunityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)innergemeinschaftliche\s+lieferung`),
	regexp.MustCompile(`(?i)§\s*4\s*nr\.\s*1b\s*ustg`),
}

var (
	euroCurrencyPattern = regexp.MustCompile(`€|EUR`)
	usdCurrencyPattern  = regexp.MustCompile(`\$|USD`)
	chfCurrencyPattern  = regexp.MustCompile(`CHF`)
)

// firstMatch tries patterns in order and returns the first capturing group
// of the first one that matches. A missing match is reported as ok=false and
// never aborts extraction of other fields.
func firstMatch(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// firstMatchIndexed is firstMatch plus the index of the winning pattern, so
// callers can tell a labeled match from the generic catch-all at the end of
// the list.
func firstMatchIndexed(text string, patterns []*regexp.Regexp) (string, int, bool) {
	for i, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1]), i, true
		}
	}
	return "", -1, false
}

// anyMatch reports whether any pattern in the list matches the text. Used
// for boolean flags like reverse charge notices.
func anyMatch(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
