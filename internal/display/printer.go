package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Unresolved is the placeholder shown for connections that could not be resolved
const Unresolved = "- unresolved -"

// Options configures a Printer
type Options struct {
	Color   ColorMode
	Theme   string
	Verbose bool
}

// Printer writes the operator-facing output of a dump run
type Printer struct {
	out     io.Writer
	colors  *ColorSystem
	verbose bool
	width   int
}

// NewPrinter creates a printer for out, or stdout when out is nil
func NewPrinter(out io.Writer, opts Options) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{
		out:     out,
		colors:  NewColorSystem(out, GetThemeByName(opts.Theme), opts.Color),
		verbose: opts.Verbose,
		width:   TerminalWidth(out),
	}
}

// Writer exposes the destination, e.g. for prompts
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Colors returns the color system in use
func (p *Printer) Colors() *ColorSystem {
	return p.colors
}

// Verbose reports whether diagnostic output is shown for successful dumps too
func (p *Printer) Verbose() bool {
	return p.verbose
}

// Banner prints the headline block
func (p *Printer) Banner(title string) {
	fmt.Fprintln(p.out, p.block(ColorComment, "", "  "+title, ""))
}

// ErrorBlock prints a fatal error surrounded by blank lines
func (p *Printer) ErrorBlock(lines ...string) {
	padded := make([]string, 0, len(lines)+2)
	padded = append(padded, "")
	for _, l := range lines {
		padded = append(padded, "  "+l+"  ")
	}
	padded = append(padded, "")
	fmt.Fprintf(p.out, "\n%s\n\n", p.block(ColorErrorBlock, padded...))
}

// block pads every line to the same width so the background forms a box
func (p *Printer) block(role Color, lines ...string) string {
	width := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = p.colors.Sprint(role, l+strings.Repeat(" ", width-utf8.RuneCountInString(l)))
	}
	return strings.Join(out, "\n")
}

// Newline prints an empty line
func (p *Printer) Newline() {
	fmt.Fprintln(p.out)
}

// Table renders a table sized to the terminal
func (p *Printer) Table(headers []string, rows [][]string) {
	p.table(headers, rows)
}

func (p *Printer) table(headers []string, rows [][]string, fixed ...int) {
	t := NewTable(p.colors, headers...)
	t.SetMaxWidth(p.width)
	t.SetFixedColumns(fixed...)
	for _, row := range rows {
		t.AddRow(row...)
	}
	_ = t.RenderTo(p.out)
}

// OverviewRow is one line of the connection overview
type OverviewRow struct {
	Database   string
	Connection string
	Type       string
	BackupFile string
	Resolved   bool
}

// Overview prints the Database | Connection | Type | Backup file table. Backup
// file names are never shortened.
func (p *Printer) Overview(rows []OverviewRow) {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		if !r.Resolved {
			cells = append(cells, []string{Unresolved, r.Connection, "-", "-"})
			continue
		}
		cells = append(cells, []string{r.Database, r.Connection, r.Type, r.BackupFile})
	}
	p.table([]string{"Database", "Connection", "Type", "Backup file"}, cells, 3)
}

// DumpStarted begins a progress line; DumpDone or DumpFailed completes it
func (p *Printer) DumpStarted(database, identifier string) {
	fmt.Fprintf(p.out, "%s Dumping %s (connection: %s)... ",
		p.colors.Sprint(ColorInfo, "»"),
		p.colors.Sprint(ColorInfo, database),
		p.colors.Sprint(ColorInfo, identifier))
}

// DumpDone completes the progress line of a successful dump
func (p *Printer) DumpDone(size int64, took time.Duration) {
	status := p.colors.Sprint(ColorInfo, "done")
	if size > 0 {
		status += p.colors.Sprintf(ColorMuted, " (%s in %s)", humanize.Bytes(uint64(size)), took.Round(time.Millisecond))
	}
	fmt.Fprintln(p.out, status)
}

// DumpFailed completes the progress line of a failed dump
func (p *Printer) DumpFailed() {
	fmt.Fprintln(p.out, p.colors.Sprint(ColorError, "failed"))
}

// Diagnostic prints dump utility output indented by four spaces
func (p *Printer) Diagnostic(output string) {
	if output == "" {
		return
	}
	fmt.Fprintln(p.out, Indent(output, "    "))
}

// DumpError prints a block for a typed error raised during one dump
func (p *Printer) DumpError(message string) {
	p.ErrorBlock("An error occurred during backup creation:", message)
}

// Completed prints the closing line
func (p *Printer) Completed() {
	fmt.Fprintf(p.out, "\n%s\n", p.colors.Sprint(ColorInfo, "»» Backup completed."))
}

// Aborted tells the operator nothing happened
func (p *Printer) Aborted() {
	fmt.Fprintf(p.out, "%s. No files were written.\n", p.colors.Sprint(ColorInfo, "Aborting"))
}

// Summary prints counts after a run with failures
func (p *Printer) Summary(succeeded, failed int) {
	if failed == 0 {
		return
	}
	fmt.Fprintln(p.out, p.colors.Sprintf(ColorWarning, "%d of %d dumps failed.", failed, succeeded+failed))
}

// Indent prefixes every line of text
func Indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
