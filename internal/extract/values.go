package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var (
	// MM/DD/YYYY or MM/DD/YY.
	datePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)

	// Amounts must carry cents so store numbers in descriptions are not
	// mistaken for money.
	amountPattern = regexp.MustCompile(`^\(?[-+]?\$?[-+]?(\d{1,3}(,\d{3})+|\d+)\.\d{2}\)?(CR|Cr|cr)?$`)
)

// parseDate parses a US statement date.
func parseDate(s string) (civil.Date, bool) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return civil.Date{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}

// parseDMY parses DD-MM-YYYY, the format used in the bill period line.
func parseDMY(s string) (civil.Date, bool) {
	t, err := time.Parse("02-01-2006", strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// parseAmount returns the magnitude of a statement amount and whether the
// notation marks it as a credit: a leading minus, parentheses or a CR suffix.
func parseAmount(s string) (decimal.Decimal, bool, bool) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, false, false
	}

	credit := false
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CR") {
		credit = true
		s = s[:len(s)-2]
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		credit = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", "+", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		credit = true
		s = s[1:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, false
	}
	return d.Abs(), credit, true
}

// normalizeText folds compatibility characters (ligatures, full-width forms)
// and collapses whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
