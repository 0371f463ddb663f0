package printer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TablePrinter handles formatted table output similar to kubectl
type TablePrinter struct {
	writer    *tabwriter.Writer
	headers   []string
	rows      [][]string
	noHeaders bool
}

// OutputType defines the output format
type OutputType string

const (
	// OutputTypeTable outputs in table format (default)
	OutputTypeTable OutputType = "table"
	// OutputTypeJSON outputs in JSON format
	OutputTypeJSON OutputType = "json"
	// OutputTypeYAML outputs in YAML format
	OutputTypeYAML OutputType = "yaml"
)

// ParseOutputType validates an --output flag value.
func ParseOutputType(s string) (OutputType, error) {
	switch t := OutputType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", OutputTypeTable:
		return OutputTypeTable, nil
	case OutputTypeJSON, OutputTypeYAML:
		return t, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Option configures the TablePrinter
type Option func(*TablePrinter)

// WithNoHeaders disables header output
func WithNoHeaders() Option {
	return func(p *TablePrinter) {
		p.noHeaders = true
	}
}

// NewTablePrinter creates a new table printer with kubectl-style formatting
// It uses tabwriter for clean column alignment with minimal styling
func NewTablePrinter(out io.Writer, opts ...Option) *TablePrinter {
	if out == nil {
		out = os.Stdout
	}

	p := &TablePrinter{
		writer: tabwriter.NewWriter(out, 0, 0, 3, ' ', 0),
		rows:   make([][]string, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetHeaders sets the table headers
func (p *TablePrinter) SetHeaders(headers ...string) {
	p.headers = headers
}

// AddRow adds a data row to the table
func (p *TablePrinter) AddRow(values ...any) {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprintf("%v", v)
	}
	p.rows = append(p.rows, row)
}

// Render outputs the formatted table
func (p *TablePrinter) Render() error {
	if len(p.rows) == 0 && len(p.headers) == 0 {
		return nil
	}

	if !p.noHeaders && len(p.headers) > 0 {
		headerLine := strings.ToUpper(strings.Join(p.headers, "\t"))
		_, _ = fmt.Fprintln(p.writer, headerLine)
	}

	for _, row := range p.rows {
		_, _ = fmt.Fprintln(p.writer, strings.Join(row, "\t"))
	}

	return p.writer.Flush()
}

// TruncateString truncates a string to maxLen cells with an ellipsis
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len([]rune(s)) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return truncate.String(s, uint(maxLen))
	}
	return truncate.StringWithTail(s, uint(maxLen), "...")
}

// Wrap word-wraps s at width and indents every line by pad spaces.
func Wrap(s string, width, pad int) string {
	wrapped := wordwrap.String(strings.TrimSpace(s), width)
	return indent.String(wrapped, uint(pad))
}

var (
	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	statusMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// FormatStatus title-cases a job or profile status and colours it when the terminal allows.
func FormatStatus(status string) string {
	label := strings.ReplaceAll(strings.TrimSpace(status), "_", " ")
	if label == "" {
		return statusMuted.Render("Unknown")
	}
	label = cases.Title(language.English).String(label)

	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "scraped", "healthy", "ok", "approve":
		return statusOK.Render(label)
	case "failed", "error", "timeout", "reject":
		return statusFailed.Render(label)
	case "running", "pending":
		return statusRunning.Render(label)
	default:
		return statusMuted.Render(label)
	}
}

// EmptyValueOrDefault returns the value or a default placeholder
func EmptyValueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
