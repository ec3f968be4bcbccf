package checkers

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/toolrun"
)

func init() {
	check.Register("phplint", func(env check.Env) check.Checker {
		return &phpLint{bin: env.Config.PHPBin, tools: env.Tools}
	})
}

// phpLint runs `php -l` on each file.
type phpLint struct {
	bin   string
	tools *toolrun.Runner
}

var phpErrorRe = regexp.MustCompile(`(?m)^(?:PHP )?((?:Parse|Fatal) error):\s+(.+?) in (.+?) on line (\d+)\s*$`)

func (p *phpLint) Name() string           { return "phplint" }
func (p *phpLint) Sets() []config.FileSet { return []config.FileSet{config.FileSetPHP} }

func (p *phpLint) CheckFile(ctx context.Context, file check.FileInfo) ([]check.Finding, error) {
	res, err := p.tools.Run(ctx, toolrun.Command{Name: p.bin, Args: []string{"-l", file.AbsPath}})
	if err == nil {
		return nil, nil
	}
	findings := parsePHPLint(file.Path, string(res.Stdout)+"\n"+string(res.Stderr))
	var tie *toolrun.ToolInvocationError
	if len(findings) > 0 && errors.As(err, &tie) && tie.ExitCode > 0 {
		return findings, nil
	}
	return nil, err
}

// parsePHPLint extracts parse errors from `php -l` output. PHP prints each
// error to both streams, so duplicates are dropped.
func parsePHPLint(path, output string) []check.Finding {
	var findings []check.Finding
	seen := make(map[string]bool)
	for _, m := range phpErrorRe.FindAllStringSubmatch(output, -1) {
		line, _ := strconv.Atoi(m[4])
		msg := strings.TrimSpace(m[2])
		key := m[4] + "|" + msg
		if seen[key] {
			continue
		}
		seen[key] = true
		findings = append(findings, check.Finding{
			File:     path,
			Line:     line,
			Checker:  "phplint",
			Rule:     strings.ToLower(strings.ReplaceAll(m[1], " ", "-")),
			Severity: check.SeverityCritical,
			Message:  msg,
		})
	}
	return findings
}
