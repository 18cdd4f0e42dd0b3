package extract

import (
	"sort"
	"strings"
)

// glyph is a positioned run of text as reported by the PDF content stream.
// Runs are often a single character.
type glyph struct {
	X, Y, W  float64
	FontSize float64
	S        string
}

// word is a horizontally contiguous group of glyphs.
type word struct {
	X0, X1 float64
	Text   string
}

func (w word) center() float64 {
	return (w.X0 + w.X1) / 2
}

// line is one visual row of a page, words ordered left to right.
type line struct {
	Y     float64
	Words []word
}

func (l line) text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// wordGapRatio is the horizontal gap, relative to font size, above which two
// glyphs belong to different words.
const wordGapRatio = 0.2

// splitRuns breaks runs that contain spaces into separate glyphs, sharing the
// run width evenly per rune.
func splitRuns(glyphs []glyph) []glyph {
	out := make([]glyph, 0, len(glyphs))
	for _, g := range glyphs {
		runes := []rune(g.S)
		if len(runes) == 0 {
			continue
		}
		width := g.W
		if width <= 0 {
			width = float64(len(runes)) * fontSizeOr(g.FontSize) * 0.5
		}
		if !strings.Contains(g.S, " ") {
			g.W = width
			out = append(out, g)
			continue
		}
		charW := width / float64(len(runes))
		pos := g.X
		for _, piece := range strings.Split(g.S, " ") {
			n := len([]rune(piece))
			if n > 0 {
				out = append(out, glyph{X: pos, Y: g.Y, W: charW * float64(n), FontSize: g.FontSize, S: piece})
			}
			pos += charW * float64(n+1)
		}
	}
	return out
}

func fontSizeOr(size float64) float64 {
	if size <= 0 {
		return 10
	}
	return size
}

// groupWords merges the glyphs of one row into words by horizontal gap.
func groupWords(glyphs []glyph) []word {
	expanded := splitRuns(glyphs)
	sort.SliceStable(expanded, func(i, j int) bool { return expanded[i].X < expanded[j].X })

	var words []word
	var cur *word
	for _, g := range expanded {
		if cur != nil && g.X-cur.X1 <= fontSizeOr(g.FontSize)*wordGapRatio {
			cur.Text += g.S
			cur.X1 = max(cur.X1, g.X+g.W)
			continue
		}
		if cur != nil {
			words = append(words, *cur)
		}
		cur = &word{X0: g.X, X1: g.X + g.W, Text: g.S}
	}
	if cur != nil {
		words = append(words, *cur)
	}
	return words
}

// buildLines turns rows of glyphs into lines, top of the page first.
// PDF y coordinates grow upwards.
func buildLines(rows [][]glyph) []line {
	lines := make([]line, 0, len(rows))
	for _, r := range rows {
		words := groupWords(r)
		if len(words) == 0 {
			continue
		}
		lines = append(lines, line{Y: r[0].Y, Words: words})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Y > lines[j].Y })
	return lines
}
