package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/ledongthuc/pdf"
)

// pageSource yields positioned glyph rows per page (1-based).
type pageSource interface {
	NumPage() int
	Rows(page int) ([][]glyph, error)
}

// Document is an opened, decrypted statement.
type Document struct {
	src pageSource
}

// Open reads blob as a PDF, decrypting it with password when the file is
// protected. It fails with *DecryptionError for a wrong or missing password
// and *ParseError for anything that is not a readable PDF, including
// encryption schemes the reader does not support.
func Open(blob []byte, password string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &ParseError{Message: "malformed PDF", Cause: fmt.Errorf("%v", r)}
		}
	}()

	var pw func() string
	if password != "" {
		tried := false
		// The reader keeps asking until it gets an empty string.
		pw = func() string {
			if tried {
				return ""
			}
			tried = true
			return password
		}
	}

	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(blob), int64(len(blob)), pw)
	if err != nil {
		switch {
		case errors.Is(err, pdf.ErrInvalidPassword):
			return nil, &DecryptionError{Cause: err}
		case strings.Contains(strings.ToLower(err.Error()), "encrypt"):
			// Encryption schemes the reader cannot handle, e.g. AES-256.
			return nil, &ParseError{Message: "unsupported encryption", Cause: err}
		}
		return nil, &ParseError{Message: "open PDF", Cause: err}
	}
	return &Document{src: &pdfPages{reader: reader}}, nil
}

// NumPage returns the page count.
func (d *Document) NumPage() int {
	return d.src.NumPage()
}

// Lines returns a lazy sequence of transaction lines, page by page. The
// sequence ends with a *ParseError if no table header was ever found, or an
// *EmptyDocumentError if the table held no rows. Iteration stops at the first
// error or when ctx is done.
func (d *Document) Lines(ctx context.Context) iter.Seq2[domain.RawLine, error] {
	return func(yield func(domain.RawLine, error) bool) {
		p := newTableParser()
		pages := d.src.NumPage()

		for page := 1; page <= pages; page++ {
			if err := ctx.Err(); err != nil {
				yield(domain.RawLine{}, err)
				return
			}
			rows, err := readRows(d.src, page)
			if err != nil {
				yield(domain.RawLine{}, &ParseError{Page: page, Message: "read text rows", Cause: err})
				return
			}
			for _, l := range buildLines(rows) {
				if row, ok := p.feed(l, page); ok {
					if !yield(row, nil) {
						return
					}
				}
			}
		}

		if row, ok := p.flush(); ok {
			if !yield(row, nil) {
				return
			}
		}

		switch {
		case !p.headerSeen:
			yield(domain.RawLine{}, &ParseError{Message: "no transaction table header found"})
		case p.emitted == 0:
			yield(domain.RawLine{}, &EmptyDocumentError{Pages: pages})
		}
	}
}

// ExtractAll drains Lines into a slice.
func (d *Document) ExtractAll(ctx context.Context) ([]domain.RawLine, error) {
	var out []domain.RawLine
	for row, err := range d.Lines(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// pageText returns the page as plain lines of text, top to bottom.
func (d *Document) pageText(page int) ([]string, error) {
	rows, err := readRows(d.src, page)
	if err != nil {
		return nil, err
	}
	lines := buildLines(rows)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.text()
	}
	return out, nil
}

// readRows shields callers from panics inside the PDF content parser.
func readRows(src pageSource, page int) (rows [][]glyph, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("content stream panic: %v", r)
		}
	}()
	return src.Rows(page)
}

type pdfPages struct {
	reader *pdf.Reader
}

func (p *pdfPages) NumPage() int {
	return p.reader.NumPage()
}

func (p *pdfPages) Rows(page int) ([][]glyph, error) {
	pg := p.reader.Page(page)
	if pg.V.IsNull() {
		return nil, nil
	}
	rows, err := pg.GetTextByRow()
	if err != nil {
		return nil, err
	}
	out := make([][]glyph, 0, len(rows))
	for _, r := range rows {
		gs := make([]glyph, 0, len(r.Content))
		for _, t := range r.Content {
			gs = append(gs, glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		out = append(out, gs)
	}
	return out, nil
}
