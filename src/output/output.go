// Package output renders task results for terminals and CI logs.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/install"
	"github.com/sofmeright/themeforge/src/pipeline"
)

// UseColor returns true if colored output should be used.
// Respects NO_COLOR, TERM=dumb and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) || IsCI()
}

// paint applies attrs when enabled. Color is forced on so output written
// to a CI log keeps its escapes.
func paint(text string, enabled bool, attrs ...color.Attribute) string {
	if !enabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// BuildReport writes one section per outcome: a row per package, then the
// (file, stage, message) list of every failure.
func BuildReport(w io.Writer, outcome *pipeline.Outcome, useColor bool) {
	sec := NewSection(w, "Build "+outcome.Kind, outcome.Duration, useColor)
	if len(outcome.Results) == 0 {
		sec.Row("%s", Dimmed("no packages", useColor))
		sec.Close()
		return
	}
	for _, r := range outcome.Results {
		status := "success"
		detail := fmt.Sprintf("%d file(s) → %s", len(r.Outputs), r.Dest)
		if !r.Success {
			status = "failed"
			detail = fmt.Sprintf("%d error(s)", len(r.Errors))
		}
		sec.Row("%-16s%s  %s %s", r.Package, StatusIcon(status, useColor), detail,
			Dimmed(formatElapsed(r.Duration), useColor))
	}

	if errs := outcome.Errors(); len(errs) > 0 {
		sec.Separator()
		for _, e := range errs {
			file := e.File
			if file == "" {
				file = "-"
			}
			sec.Row("%s %s %s",
				paint(file, useColor, color.Bold),
				paint("["+e.Stage+"]", useColor, color.FgCyan),
				e.Message())
		}
	}
	sec.Close()
}

// CheckReport writes a per-checker stats table followed by findings
// grouped by file.
func CheckReport(w io.Writer, reports []check.Report, useColor bool) {
	for _, r := range reports {
		sec := NewSection(w, "Check "+r.Checker, r.Duration, useColor)
		status := "success"
		if r.Failed() {
			status = "failed"
		}
		sec.Row("%-16s%6s  %6s  %s", "checker", "files", "cached", "findings")
		sec.Row("%-16s%5d   %5d   %5d  %s", r.Checker, r.Files, r.Cached, len(r.Findings), StatusIcon(status, useColor))
		if r.Err != nil {
			sec.Separator()
			for _, line := range strings.Split(r.Err.Error(), "\n") {
				sec.Row("%s", paint(line, useColor, color.FgRed))
			}
		}
		SectionFindings(sec, r.Findings, useColor)
		sec.Row("%s", FindingsSummaryLine(r.Findings, r.Files, useColor))
		sec.Close()
	}
}

// FindingsSummaryLine returns a one-line findings summary.
func FindingsSummaryLine(findings []check.Finding, files int, useColor bool) string {
	var critical, warning, info int
	for _, f := range findings {
		switch f.Severity {
		case check.SeverityCritical:
			critical++
		case check.SeverityWarning:
			warning++
		default:
			info++
		}
	}

	var parts []string
	if critical > 0 {
		parts = append(parts, paint(fmt.Sprintf("%d critical", critical), useColor, color.FgRed))
	}
	if warning > 0 {
		parts = append(parts, paint(fmt.Sprintf("%d warning", warning), useColor, color.FgYellow))
	}
	if info > 0 {
		parts = append(parts, fmt.Sprintf("%d info", info))
	}
	summary := "no findings"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}
	total := paint(fmt.Sprintf("%d", len(findings)), useColor, color.Bold)
	return fmt.Sprintf("%s findings in %d files: %s", total, files, summary)
}

// SectionFindings renders findings grouped by file inside a section.
// Files are sorted lexicographically; findings within each file by line,
// column, checker and message.
func SectionFindings(sec *Section, findings []check.Finding, useColor bool) {
	if len(findings) == 0 {
		return
	}

	byFile := map[string][]check.Finding{}
	for _, f := range findings {
		byFile[f.File] = append(byFile[f.File], f)
	}
	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	sec.Row("")
	for _, file := range files {
		ff := byFile[file]
		sort.Slice(ff, func(i, j int) bool {
			a, b := ff[i], ff[j]
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			if a.Column != b.Column {
				return a.Column < b.Column
			}
			if a.Checker != b.Checker {
				return a.Checker < b.Checker
			}
			return a.Message < b.Message
		})

		sec.Row("%s", paint(file, useColor, color.Bold))
		for _, f := range ff {
			var loc string
			switch {
			case f.Line == 0:
				loc = "-"
			case f.Column > 0:
				loc = fmt.Sprintf("%d:%d", f.Line, f.Column)
			default:
				loc = fmt.Sprintf("%d", f.Line)
			}
			msg := f.Message
			if f.Rule != "" {
				msg += " " + Dimmed("("+f.Rule+")", useColor)
			}
			sec.Row("  %-8s %-4s  %s", loc, severityTag(f.Severity, useColor), msg)
		}
		sec.Row("")
	}
}

// severityTag returns a short severity label.
func severityTag(s check.Severity, useColor bool) string {
	switch s {
	case check.SeverityCritical:
		return paint("CRIT", useColor, color.FgRed)
	case check.SeverityWarning:
		return paint("WARN", useColor, color.FgYellow)
	case check.SeverityInfo:
		return paint("INFO", useColor, color.FgHiBlack)
	default:
		return s.String()
	}
}

// InstallReport writes one row per install step.
func InstallReport(w io.Writer, results []install.Result, useColor bool) {
	sec := NewSection(w, "Install", 0, useColor)
	for _, r := range results {
		status := "success"
		detail := r.Command
		if r.Err != nil {
			status = "failed"
			detail = r.Err.Error()
		}
		sec.Row("%-16s%s  %s %s", r.Step, StatusIcon(status, useColor), detail,
			Dimmed(formatElapsed(r.Duration), useColor))
	}
	sec.Close()
}

// TaskInfo describes one runnable task for listings.
type TaskInfo struct {
	Name string
	Help string
}

// TaskList writes the task catalog.
func TaskList(w io.Writer, tasks []TaskInfo, useColor bool) {
	width := 0
	for _, t := range tasks {
		width = max(width, len(t.Name))
	}
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s  %s\n", paint(fmt.Sprintf("%-*s", width, t.Name), useColor, color.FgCyan), t.Help)
	}
}
