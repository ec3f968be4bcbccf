package checkers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/toolrun"
)

func init() {
	check.Register("eslint", func(env check.Env) check.Checker {
		return &eslint{bin: env.Config.ESLintBin, tools: env.Tools}
	})
}

// eslint runs ESLint with the project's own configuration.
type eslint struct {
	bin   string
	tools *toolrun.Runner
}

func (e *eslint) Name() string           { return "eslint" }
func (e *eslint) Sets() []config.FileSet { return []config.FileSet{config.FileSetJS} }

func (e *eslint) CheckFiles(ctx context.Context, files []check.FileInfo) ([]check.Finding, error) {
	args := []string{"--format", "json"}
	for _, f := range files {
		args = append(args, f.Path)
	}
	res, err := e.tools.Run(ctx, toolrun.Command{Name: e.bin, Args: args})
	// Exit 1 means lint errors were found; 2 is a configuration or crash.
	var tie *toolrun.ToolInvocationError
	if err != nil && !(errors.As(err, &tie) && tie.ExitCode == 1) {
		return nil, err
	}
	return parseESLint(res.Stdout, e.tools.Root)
}

type eslintResult struct {
	FilePath string `json:"filePath"`
	Messages []struct {
		RuleID   string `json:"ruleId"`
		Severity int    `json:"severity"`
		Message  string `json:"message"`
		Line     int    `json:"line"`
		Column   int    `json:"column"`
	} `json:"messages"`
}

func parseESLint(data []byte, root string) ([]check.Finding, error) {
	var results []eslintResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing eslint report: %w", err)
	}
	var findings []check.Finding
	for _, r := range results {
		path := relTo(root, r.FilePath)
		for _, m := range r.Messages {
			sev := check.SeverityWarning
			if m.Severity >= 2 {
				sev = check.SeverityCritical
			}
			findings = append(findings, check.Finding{
				File:     path,
				Line:     m.Line,
				Column:   m.Column,
				Checker:  "eslint",
				Rule:     m.RuleID,
				Severity: sev,
				Message:  m.Message,
			})
		}
	}
	return findings, nil
}

// relTo returns path relative to root in slash form, or path unchanged
// when it lies outside root.
func relTo(root, path string) string {
	if root == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
