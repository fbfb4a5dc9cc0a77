package coordinator

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var cardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 2)

// rect is a drawn card in terminal cells.
type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// box is a framed card split into rows, w cells wide.
type box struct {
	lines []string
	w, h  int
}

// frame wraps content in the card border.
func frame(content string, maxWidth int) box {
	style := cardStyle
	if maxWidth > 4 {
		style = style.MaxWidth(maxWidth)
	}
	lines := strings.Split(style.Render(content), "\n")
	b := box{lines: lines, h: len(lines)}
	for _, l := range lines {
		b.w = max(b.w, ansi.StringWidth(l))
	}
	return b
}

// canvas is a fixed width by height grid of styled rows that cards are
// stamped onto, bottom first.
type canvas struct {
	width int
	rows  []string
}

func newCanvas(base string, width, height int) *canvas {
	src := strings.Split(base, "\n")
	c := &canvas{width: width, rows: make([]string, height)}
	for i := range c.rows {
		var row string
		if i < len(src) {
			row = src[i]
		}
		c.rows[i] = fit(row, width)
	}
	return c
}

// stamp draws b with its top-left cell at (x, y) and returns the area it
// covers. Parts that fall off the canvas are dropped.
func (c *canvas) stamp(b box, x, y int) rect {
	x = max(x, 0)
	span := min(b.w, c.width-x)
	for i, line := range b.lines {
		row := y + i
		if span <= 0 || row < 0 || row >= len(c.rows) {
			continue
		}
		under := c.rows[row]
		rest := c.width - x - span
		c.rows[row] = fit(ansi.Truncate(under, x, ""), x) +
			fit(line, span) +
			fit(ansi.TruncateLeft(under, x+span, ""), rest)
	}
	return rect{x: x, y: y, w: b.w, h: b.h}
}

func (c *canvas) String() string {
	return strings.Join(c.rows, "\n")
}

// fit cuts or space-pads s to exactly n cells.
func fit(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = ansi.Truncate(s, n, "")
	if w := ansi.StringWidth(s); w < n {
		s += strings.Repeat(" ", n-w)
	}
	return s
}
