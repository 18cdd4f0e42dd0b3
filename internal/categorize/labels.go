package categorize

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Labels is the closed set of categories the model may assign.
var Labels = []string{
	"Shopping",
	"Food & Dining",
	"Transportation",
	"Subscriptions",
	"Utilities",
	"Housing",
	"Entertainment",
	"Travel",
	"Healthcare",
	"Income",
	"Other",
}

// labelPatterns match each label as whole words, so "Other" does not match
// inside "another".
var labelPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(Labels))
	for i, label := range Labels {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(label) + `\b`)
	}
	return out
}()

// SystemPrompt lists the labels with examples for the model.
const SystemPrompt = `You are a transaction categorizer. Given a credit card transaction, respond with ONLY the category name from this list:
- Shopping (retail: Amazon, Walmart, Target, etc.)
- Food & Dining (restaurants, food delivery, groceries)
- Transportation (Uber, Lyft, gas, parking)
- Subscriptions (Netflix, Spotify, cloud services, software)
- Utilities (phone, internet, electricity)
- Housing (rent, mortgage, home services)
- Entertainment (movies, games, events, hobbies)
- Travel (hotels, flights, travel bookings)
- Healthcare (medical, pharmacy, insurance)
- Income (refunds, cashback, payments received)
- Other (anything else)

Respond with ONLY the category name, nothing else.`

// ParseLabel maps a raw model response onto Labels: an exact
// case-insensitive match wins, then the label appearing earliest in the
// response as whole words, then domain.UncategorizedLabel.
func ParseLabel(response string) string {
	s := strings.TrimSpace(response)
	if i := strings.Index(strings.ToLower(s), "category:"); i != -1 {
		s = strings.TrimSpace(s[i+len("category:"):])
	}
	s = strings.Trim(s, " \t\n\"'`*.-")

	for _, label := range Labels {
		if strings.EqualFold(s, label) {
			return label
		}
	}

	best, bestAt := "", -1
	for i, label := range Labels {
		loc := labelPatterns[i].FindStringIndex(s)
		if loc == nil {
			continue
		}
		at := loc[0]
		if bestAt == -1 || at < bestAt || (at == bestAt && len(label) > len(best)) {
			best, bestAt = label, at
		}
	}
	if best != "" {
		return best
	}
	return domain.UncategorizedLabel
}
