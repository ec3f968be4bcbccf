package checkers

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

func init() {
	check.Register("secrets", func(check.Env) check.Checker { return &secrets{} })
}

// secrets scans PHP and JS sources for credentials with the gitleaks
// default rule set.
type secrets struct {
	once     sync.Once
	mu       sync.Mutex
	detector *detect.Detector
	initErr  error
}

func (s *secrets) Name() string { return "secrets" }
func (s *secrets) Sets() []config.FileSet {
	return []config.FileSet{config.FileSetPHP, config.FileSetJS}
}

func (s *secrets) CheckFile(ctx context.Context, file check.FileInfo) ([]check.Finding, error) {
	s.once.Do(func() {
		s.detector, s.initErr = detect.NewDetectorDefaultConfig()
	})
	if s.initErr != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", s.initErr)
	}

	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}

	// The detector keeps internal state that is not safe for concurrent use.
	s.mu.Lock()
	hits := s.detector.DetectBytes(data)
	s.mu.Unlock()

	findings := make([]check.Finding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, check.Finding{
			File:     file.Path,
			Line:     h.StartLine + 1, // gitleaks is 0-indexed
			Column:   h.StartColumn,
			Checker:  s.Name(),
			Rule:     h.RuleID,
			Severity: check.SeverityCritical,
			Message:  h.Description,
		})
	}
	return findings, nil
}
