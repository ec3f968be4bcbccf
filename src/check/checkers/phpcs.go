package checkers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/toolrun"
)

// phpcsChunk caps files per invocation to stay under argv limits.
const phpcsChunk = 200

func init() {
	check.Register("phpcs", func(env check.Env) check.Checker {
		return &phpcs{bin: env.Config.PHPCSBin, standard: env.Config.PHPCSStd, tools: env.Tools}
	})
}

// phpcs runs PHP_CodeSniffer with the configured coding standard.
type phpcs struct {
	bin      string
	standard string
	tools    *toolrun.Runner
}

func (p *phpcs) Name() string           { return "phpcs" }
func (p *phpcs) Sets() []config.FileSet { return []config.FileSet{config.FileSetPHP} }

func (p *phpcs) CheckFiles(ctx context.Context, files []check.FileInfo) ([]check.Finding, error) {
	byAbs := make(map[string]string, len(files))
	for _, f := range files {
		byAbs[f.AbsPath] = f.Path
	}

	var findings []check.Finding
	for start := 0; start < len(files); start += phpcsChunk {
		end := min(start+phpcsChunk, len(files))
		args := []string{"--report=json", "-q"}
		if p.standard != "" {
			args = append(args, "--standard="+p.standard)
		}
		for _, f := range files[start:end] {
			args = append(args, f.AbsPath)
		}

		res, err := p.tools.Run(ctx, toolrun.Command{Name: p.bin, Args: args})
		// phpcs exits 1 or 2 when it reports violations.
		var tie *toolrun.ToolInvocationError
		if err != nil && !(errors.As(err, &tie) && (tie.ExitCode == 1 || tie.ExitCode == 2)) {
			return findings, err
		}
		parsed, perr := parsePHPCS(res.Stdout, byAbs)
		if perr != nil {
			if err != nil {
				return findings, err
			}
			return findings, perr
		}
		findings = append(findings, parsed...)
	}
	return findings, nil
}

type phpcsReport struct {
	Files map[string]struct {
		Messages []struct {
			Message  string `json:"message"`
			Source   string `json:"source"`
			Severity int    `json:"severity"`
			Type     string `json:"type"`
			Line     int    `json:"line"`
			Column   int    `json:"column"`
		} `json:"messages"`
	} `json:"files"`
}

// parsePHPCS decodes a --report=json document. byAbs maps reported paths
// back to project-relative ones.
func parsePHPCS(data []byte, byAbs map[string]string) ([]check.Finding, error) {
	var rep phpcsReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing phpcs report: %w", err)
	}
	paths := make([]string, 0, len(rep.Files))
	for p := range rep.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var findings []check.Finding
	for _, p := range paths {
		rel, ok := byAbs[p]
		if !ok {
			rel = p
		}
		for _, m := range rep.Files[p].Messages {
			sev := check.SeverityWarning
			if strings.EqualFold(m.Type, "ERROR") {
				sev = check.SeverityCritical
			}
			findings = append(findings, check.Finding{
				File:     rel,
				Line:     m.Line,
				Column:   m.Column,
				Checker:  "phpcs",
				Rule:     m.Source,
				Severity: sev,
				Message:  m.Message,
			})
		}
	}
	return findings, nil
}
