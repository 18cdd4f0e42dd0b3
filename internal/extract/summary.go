package extract

import (
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Summary is the account summary box printed on the first pages of a
// statement. Fields that are not found stay zero.
type Summary struct {
	PeriodStart     civil.Date
	PeriodEnd       civil.Date
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
}

var (
	billPeriodPattern  = regexp.MustCompile(`(?i)bill(?:ing)?\s+period\s*:?\s*(\d{2}-\d{2}-\d{4})\s*(?:-|to)\s*(\d{2}-\d{2}-\d{4})`)
	prevBalancePattern = regexp.MustCompile(`(?i)previous\s+balance\s*:?\s*(\(?-?\$?[\d,]+\.\d{2}\)?)`)
	newBalancePattern  = regexp.MustCompile(`(?i)new\s+balance\s*:?\s*(\(?-?\$?[\d,]+\.\d{2}\)?)`)
)

// summaryPages bounds how far into the document the summary is searched.
const summaryPages = 2

// Summary scans the first pages for the billing period and balances.
func (d *Document) Summary() (Summary, error) {
	var text []string
	for page := 1; page <= min(d.src.NumPage(), summaryPages); page++ {
		lines, err := d.pageText(page)
		if err != nil {
			return Summary{}, &ParseError{Page: page, Message: "read summary", Cause: err}
		}
		text = append(text, lines...)
	}
	return parseSummary(strings.Join(text, "\n")), nil
}

func parseSummary(text string) Summary {
	var s Summary
	if m := billPeriodPattern.FindStringSubmatch(text); m != nil {
		s.PeriodStart, _ = parseDMY(m[1])
		s.PeriodEnd, _ = parseDMY(m[2])
	}
	if m := prevBalancePattern.FindStringSubmatch(text); m != nil {
		s.PreviousBalance = signedAmount(m[1])
	}
	if m := newBalancePattern.FindStringSubmatch(text); m != nil {
		s.NewBalance = signedAmount(m[1])
	}
	return s
}

// signedAmount keeps the sign for balances, where a credit balance is negative.
func signedAmount(s string) decimal.Decimal {
	d, credit, ok := parseAmount(s)
	if !ok {
		return decimal.Zero
	}
	if credit {
		return d.Neg()
	}
	return d
}
