package extract

import (
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

type dateKind int

const (
	dateGeneric dateKind = iota
	datePosted
	dateTransaction
)

type dateColumn struct {
	kind   dateKind
	center float64
}

// header holds the column anchors found on the table header row.
type header struct {
	dates        []dateColumn
	descX0       float64
	amountCenter float64
	amountX1     float64
}

var (
	descriptionLabels = map[string]bool{"description": true, "details": true, "merchant": true}
	postedLabels      = map[string]bool{"posted": true, "post": true, "posting": true}
	transactionLabels = map[string]bool{"transaction": true, "trans": true, "txn": true, "sale": true}
)

type sectionHeading struct {
	prefix    string
	direction domain.Direction
}

var sectionHeadings = []sectionHeading{
	{prefix: "payments and other credits", direction: domain.DirectionCredit},
	{prefix: "payments and credits", direction: domain.DirectionCredit},
	{prefix: "purchases and cash advances", direction: domain.DirectionDebit},
	{prefix: "purchases and adjustments", direction: domain.DirectionDebit},
	{prefix: "fees and interest charged", direction: domain.DirectionDebit},
	{prefix: "fees charged", direction: domain.DirectionDebit},
	{prefix: "interest charged", direction: domain.DirectionDebit},
}

var skipMarkers = []string{"sub total", "subtotal", "no transaction available", "no transactions available"}

func cleanLabel(s string) string {
	return strings.Trim(strings.ToLower(s), ".:*")
}

// detectHeader recognises a header row by its labels rather than by fixed
// offsets, so layouts that move columns between months still parse.
func detectHeader(l line) (*header, bool) {
	h := &header{descX0: -1, amountCenter: -1}
	for i, w := range l.Words {
		label := cleanLabel(w.Text)
		switch {
		case label == "date":
			col := dateColumn{kind: dateGeneric, center: w.center()}
			if i > 0 {
				prev := cleanLabel(l.Words[i-1].Text)
				switch {
				case postedLabels[prev]:
					col.kind = datePosted
				case transactionLabels[prev]:
					col.kind = dateTransaction
				}
				if col.kind != dateGeneric {
					col.center = (l.Words[i-1].X0 + w.X1) / 2
				}
			}
			h.dates = append(h.dates, col)
		case descriptionLabels[label] && h.descX0 < 0:
			h.descX0 = w.X0
		case label == "amount" || label == "amount($)":
			h.amountCenter = w.center()
			h.amountX1 = w.X1
		}
	}
	if len(h.dates) == 0 || h.descX0 < 0 || h.amountCenter < 0 {
		return nil, false
	}
	return h, true
}

// tableParser turns page lines into raw transaction lines. It holds back the
// most recent row so a wrapped description on the following line can be
// appended before the row is emitted.
type tableParser struct {
	hdr        *header
	headerSeen bool
	direction  domain.Direction
	section    string
	pending    *domain.RawLine
	emitted    int
}

func newTableParser() *tableParser {
	return &tableParser{direction: domain.DirectionDebit}
}

// feed consumes one line and returns a completed row when one is ready.
func (p *tableParser) feed(l line, page int) (domain.RawLine, bool) {
	if h, ok := detectHeader(l); ok {
		p.hdr = h
		p.headerSeen = true
		return p.flush()
	}

	lower := strings.ToLower(l.text())
	for _, s := range sectionHeadings {
		if strings.HasPrefix(lower, s.prefix) {
			p.direction = s.direction
			p.section = l.text()
			return p.flush()
		}
	}
	if strings.HasPrefix(lower, "total") || containsAny(lower, skipMarkers) {
		return p.flush()
	}
	if p.hdr == nil {
		return domain.RawLine{}, false
	}

	if row, ok := p.parseRow(l, page); ok {
		prev, had := p.flush()
		p.pending = &row
		return prev, had
	}

	if p.pending != nil && p.isContinuation(l) {
		p.pending.Description = normalizeText(p.pending.Description + " " + l.text())
		return domain.RawLine{}, false
	}
	return p.flush()
}

// flush releases the held row, if any.
func (p *tableParser) flush() (domain.RawLine, bool) {
	if p.pending == nil {
		return domain.RawLine{}, false
	}
	row := *p.pending
	p.pending = nil
	p.emitted++
	return row, true
}

func (p *tableParser) parseRow(l line, page int) (domain.RawLine, bool) {
	words := l.Words

	// Leading dates.
	var dates []word
	i := 0
	for ; i < len(words); i++ {
		if _, ok := parseDate(words[i].Text); !ok {
			break
		}
		dates = append(dates, words[i])
	}
	if len(dates) == 0 {
		return domain.RawLine{}, false
	}

	// Amount: an amount-looking word right of the description start, closest
	// to the amount anchor. A detached "CR" marks a credit.
	amountIdx := -1
	best := math.MaxFloat64
	var amount decimal.Decimal
	var credit bool
	for j := i; j < len(words); j++ {
		w := words[j]
		if w.center() < p.hdr.descX0 {
			continue
		}
		d, cr, ok := parseAmount(w.Text)
		if !ok {
			continue
		}
		dist := math.Min(math.Abs(w.center()-p.hdr.amountCenter), math.Abs(w.X1-p.hdr.amountX1))
		if dist < best {
			best = dist
			amountIdx = j
			amount = d
			credit = cr
			if j+1 < len(words) && strings.EqualFold(words[j+1].Text, "CR") {
				credit = true
			}
		}
	}
	if amountIdx < 0 || !amount.IsPositive() {
		return domain.RawLine{}, false
	}

	parts := make([]string, 0, amountIdx-i)
	for _, w := range words[i:amountIdx] {
		parts = append(parts, w.Text)
	}
	desc := normalizeText(strings.Join(parts, " "))
	if desc == "" {
		return domain.RawLine{}, false
	}

	posted, trans := p.assignDates(dates)

	dir := p.direction
	if credit {
		dir = domain.DirectionCredit
	}

	return domain.RawLine{
		TransactionDate: trans,
		PostedDate:      posted,
		Description:     desc,
		Amount:          amount,
		Direction:       dir,
		Page:            page,
		Section:         p.section,
	}, true
}

// assignDates maps the leading date words onto the header's date columns by
// nearest anchor. Without labelled columns the first date is the posting date,
// matching the usual "Posted Date / Transaction Date" order.
func (p *tableParser) assignDates(dates []word) (posted, trans civil.Date) {
	first, _ := parseDate(dates[0].Text)
	posted, trans = first, first
	if len(dates) == 1 {
		return posted, trans
	}
	second, _ := parseDate(dates[1].Text)
	posted, trans = first, second

	var postedCol, transCol *dateColumn
	for k := range p.hdr.dates {
		switch p.hdr.dates[k].kind {
		case datePosted:
			postedCol = &p.hdr.dates[k]
		case dateTransaction:
			transCol = &p.hdr.dates[k]
		}
	}
	if postedCol == nil || transCol == nil {
		return posted, trans
	}
	if math.Abs(dates[0].center()-transCol.center) < math.Abs(dates[0].center()-postedCol.center) {
		return second, first
	}
	return first, second
}

// isContinuation reports whether l is a wrapped piece of the previous
// description: only text, all of it inside the description column.
func (p *tableParser) isContinuation(l line) bool {
	if len(l.Words) == 0 {
		return false
	}
	for _, w := range l.Words {
		if _, _, ok := parseAmount(w.Text); ok {
			return false
		}
		if _, ok := parseDate(w.Text); ok {
			return false
		}
		if w.X0 < p.hdr.descX0-2 || w.center() >= p.hdr.amountCenter {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
