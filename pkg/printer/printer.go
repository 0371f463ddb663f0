package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Printer writes command results in the selected output format.
type Printer struct {
	out        io.Writer
	outputType OutputType
}

// New creates a printer writing to out, or stdout when out is nil.
func New(outputType OutputType, out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if outputType == "" {
		outputType = OutputTypeTable
	}
	return &Printer{out: out, outputType: outputType}
}

// Out is the writer results go to.
func (p *Printer) Out() io.Writer {
	return p.out
}

// Structured reports whether results are printed as JSON or YAML instead of tables.
func (p *Printer) Structured() bool {
	return p.outputType == OutputTypeJSON || p.outputType == OutputTypeYAML
}

// Print writes data as JSON or YAML, and calls table for every other output type.
func (p *Printer) Print(data any, table func(io.Writer) error) error {
	switch p.outputType {
	case OutputTypeJSON:
		return p.PrintJSON(data)
	case OutputTypeYAML:
		return p.PrintYAML(data)
	default:
		return table(p.out)
	}
}

// PrintJSON prints data in JSON format
func (p *Printer) PrintJSON(data any) error {
	encoder := json.NewEncoder(p.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to output JSON: %w", err)
	}
	return nil
}

// PrintYAML prints data in YAML format. Keys follow the JSON field names and order.
func (p *Printer) PrintYAML(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to output YAML: %w", err)
	}
	// JSON is valid YAML; decoding into a node keeps the key order a map would lose.
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to output YAML: %w", err)
	}
	blockStyle(&doc)

	encoder := yaml.NewEncoder(p.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to output YAML: %w", err)
	}
	return encoder.Close()
}

// blockStyle drops the flow collections and quoting inherited from JSON. The encoder
// quotes again any scalar whose plain form would change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// PrintSuccess prints a success message with kubectl-style formatting
func PrintSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "✓ %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "Warning: %s\n", message)
}

// FormatTimestamp formats a timestamp in kubectl style. Zero times print as "-".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// FormatAge formats the time since t as a kubectl-style age string (e.g., "5d", "3h", "45m")
func FormatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	duration := now.Sub(t)

	days := int(duration.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}

	hours := int(duration.Hours())
	if hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}

	minutes := int(duration.Minutes())
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}

	seconds := max(int(duration.Seconds()), 0)
	return fmt.Sprintf("%ds", seconds)
}
