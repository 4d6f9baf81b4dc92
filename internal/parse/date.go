package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericDate matches DD.MM.YYYY and the dash and slash variants, with two
// or four digit years.
var numericDate = regexp.MustCompile(`^(\d{1,2})[\./-](\d{1,2})[\./-](\d{2}|\d{4})$`)

// twoDigitYearPivot splits two-digit years between the 1900s and 2000s:
// values above it become 19xx, the rest 20xx.
const twoDigitYearPivot = 50

// DateParser parses German-style numeric dates into ISO form. The clock is
// injectable so relative due dates ("zahlbar innerhalb 14 Tagen") stay
// deterministic under test.
type DateParser struct {
	clock func() time.Time
}

// NewDateParser returns a DateParser running on the system clock.
func NewDateParser() *DateParser {
	return NewDateParserWithClock(time.Now)
}

// NewDateParserWithClock returns a DateParser using the given clock.
func NewDateParserWithClock(clock func() time.Time) *DateParser {
	return &DateParser{clock: clock}
}

// Parse converts a DD.MM.YYYY style date (dot, dash or slash separated) to
// YYYY-MM-DD. Two-digit years are pivoted at 50. The second return value is
// false for anything that is not a valid calendar date.
func (p *DateParser) Parse(s string) (string, bool) {
	m := numericDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		if year > twoDigitYearPivot {
			year += 1900
		} else {
			year += 2000
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		// time.Date normalizes overflow, so 31.02. would roll into March
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// AddDays returns the date n days from now in YYYY-MM-DD, for payment terms
// expressed relative to the invoice ("zahlbar innerhalb 14 Tagen").
func (p *DateParser) AddDays(n int) string {
	return p.clock().AddDate(0, 0, n).Format("2006-01-02")
}

// FormatISO validates that s already is a YYYY-MM-DD date.
func FormatISO(s string) (string, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
