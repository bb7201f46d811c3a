package display

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// BorderStyle holds the characters used to draw a table frame
type BorderStyle struct {
	Corner     string
	Horizontal string
	Vertical   string
}

var (
	// ASCIIBorderStyle draws +---+ frames like most database CLIs
	ASCIIBorderStyle = BorderStyle{Corner: "+", Horizontal: "-", Vertical: "|"}
	// CompactBorderStyle draws no frame, columns separated by spaces
	CompactBorderStyle = BorderStyle{Vertical: " "}
)

// Table renders rows under a header line. Cells wider than the available
// width are truncated with "...", except in columns marked as fixed.
type Table struct {
	headers  []string
	rows     [][]string
	border   BorderStyle
	padding  int
	maxWidth int
	fixed    map[int]bool
	colors   *ColorSystem
}

// NewTable creates a table; colors may be nil
func NewTable(colors *ColorSystem, headers ...string) *Table {
	return &Table{
		headers: headers,
		border:  ASCIIBorderStyle,
		padding: 1,
		colors:  colors,
	}
}

// AddRow appends a row; missing cells render empty
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetBorder switches the frame style
func (t *Table) SetBorder(b BorderStyle) {
	t.border = b
}

// SetMaxWidth limits the rendered width; 0 means unlimited
func (t *Table) SetMaxWidth(width int) {
	t.maxWidth = width
}

// SetFixedColumns keeps the given columns at full width. The table may then
// exceed the maximum width.
func (t *Table) SetFixedColumns(columns ...int) {
	if t.fixed == nil {
		t.fixed = make(map[int]bool, len(columns))
	}
	for _, c := range columns {
		t.fixed[c] = true
	}
}

// Len is the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the table including a trailing newline
func (t *Table) Render() string {
	widths := t.columnWidths()
	if len(widths) == 0 {
		return ""
	}
	widths = t.fit(widths)

	var b strings.Builder
	rule := t.rule(widths)
	if rule != "" {
		b.WriteString(rule + "\n")
	}
	if len(t.headers) > 0 {
		b.WriteString(t.line(t.headers, widths, true) + "\n")
		if rule != "" {
			b.WriteString(rule + "\n")
		}
	}
	for _, row := range t.rows {
		b.WriteString(t.line(row, widths, false) + "\n")
	}
	if rule != "" {
		b.WriteString(rule + "\n")
	}
	return b.String()
}

// RenderTo writes the table to w
func (t *Table) RenderTo(w io.Writer) error {
	_, err := io.WriteString(w, t.Render())
	return err
}

func (t *Table) columnWidths() []int {
	n := len(t.headers)
	for _, row := range t.rows {
		if len(row) > n {
			n = len(row)
		}
	}
	widths := make([]int, n)
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// fit shrinks the widest columns first until the table fits maxWidth
func (t *Table) fit(widths []int) []int {
	if t.maxWidth <= 0 {
		return widths
	}
	const minColumn = 4
	for t.totalWidth(widths) > t.maxWidth {
		widest := -1
		for i, w := range widths {
			if t.fixed[i] {
				continue
			}
			if widest < 0 || w > widths[widest] {
				widest = i
			}
		}
		if widest < 0 || widths[widest] <= minColumn {
			break
		}
		widths[widest]--
	}
	return widths
}

func (t *Table) totalWidth(widths []int) int {
	total := len(t.border.Vertical) * (len(widths) + 1)
	for _, w := range widths {
		total += w + 2*t.padding
	}
	return total
}

func (t *Table) rule(widths []int) string {
	if t.border.Horizontal == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.border.Corner)
	for _, w := range widths {
		b.WriteString(strings.Repeat(t.border.Horizontal, w+2*t.padding))
		b.WriteString(t.border.Corner)
	}
	return b.String()
}

func (t *Table) line(cells []string, widths []int, header bool) string {
	var b strings.Builder
	pad := strings.Repeat(" ", t.padding)
	if t.border.Horizontal != "" {
		b.WriteString(t.border.Vertical)
	}
	for i, w := range widths {
		var cell string
		if i < len(cells) {
			cell = truncate(cells[i], w)
		}
		fill := strings.Repeat(" ", w-utf8.RuneCountInString(cell))
		if header && t.colors != nil {
			cell = t.colors.Sprint(ColorInfo, cell)
		}
		b.WriteString(pad + cell + fill + pad)
		if t.border.Horizontal != "" || i < len(widths)-1 {
			b.WriteString(t.border.Vertical)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width > 3 {
		return string(runes[:width-3]) + "..."
	}
	return string(runes[:width])
}

// TerminalWidth returns the width of w when it is a terminal, otherwise 0
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
