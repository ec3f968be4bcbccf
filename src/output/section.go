package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

const sectionWidth = 61 // inner width between │ and line end

// Section renders a box-drawing framed output section.
type Section struct {
	w     io.Writer
	name  string
	color bool
}

// NewSection creates a section and writes its header.
// If elapsed is non-zero, it appears right-aligned in the header.
func NewSection(w io.Writer, name string, elapsed time.Duration, useColor bool) *Section {
	s := &Section{w: w, name: name, color: useColor}
	s.writeHeader(elapsed)
	return s
}

// Row writes a content line inside the section frame.
func (s *Section) Row(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(s.w, "    │ %s\n", line)
}

// Separator writes a mid-section divider.
func (s *Section) Separator() {
	fmt.Fprintf(s.w, "    ├%s\n", strings.Repeat("─", sectionWidth))
}

// Close writes the section footer.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "    └%s\n", strings.Repeat("─", sectionWidth))
}

// writeHeader renders: ── Name ──────────────────── elapsed ──
func (s *Section) writeHeader(elapsed time.Duration) {
	label := fmt.Sprintf("── %s ", s.name)

	suffix := "──"
	if elapsed > 0 {
		suffix = fmt.Sprintf(" %s ──", formatElapsed(elapsed))
	}

	fill := max(sectionWidth+4-len([]rune(label))-len([]rune(suffix)), 1)
	header := label + strings.Repeat("─", fill) + suffix
	fmt.Fprintf(s.w, "\n    %s\n", paint(header, s.color, color.Faint, color.FgCyan))
}

// StatusIcon returns a status icon for "success", "failed" or anything
// else (skipped).
func StatusIcon(status string, useColor bool) string {
	switch status {
	case "success":
		return paint("✓", useColor, color.FgGreen)
	case "failed":
		return paint("✗", useColor, color.FgRed)
	default:
		return paint("⊘", useColor, color.FgYellow)
	}
}

// Dimmed returns dimmed text if color is enabled.
func Dimmed(text string, useColor bool) string {
	return paint(text, useColor, color.FgHiBlack)
}

// formatElapsed formats a duration for display in section headers.
func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// SummaryRow writes a summary line with status icon.
func SummaryRow(w io.Writer, name, status, detail string, useColor bool) {
	icon := StatusIcon(status, useColor)
	fmt.Fprintf(w, "    │ %-16s%s  %s\n", name, icon, detail)
}

// SummaryTotal writes the final total line.
func SummaryTotal(w io.Writer, elapsed time.Duration, status string, useColor bool) {
	icon := StatusIcon(status, useColor)
	fmt.Fprintf(w, "    │ %-16s%36s   %s\n", "total", formatElapsed(elapsed), icon)
}
