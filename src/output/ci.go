package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/pipeline"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", time.Now().Unix(), id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), id)
}

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// BuildJUnit converts build outcomes into JUnit suites: one suite per
// kind, one case per package.
func BuildJUnit(outcomes []*pipeline.Outcome) JUnitTestSuites {
	root := JUnitTestSuites{Name: "themeforge-build"}
	var total time.Duration
	for _, o := range outcomes {
		suite := JUnitTestSuite{Name: "themeforge/build/" + o.Kind, Time: seconds(o.Duration)}
		for _, r := range o.Results {
			tc := JUnitTestCase{
				Name:      r.Package,
				Classname: "themeforge.build." + o.Kind,
				Time:      seconds(r.Duration),
			}
			if !r.Success {
				lines := make([]string, 0, len(r.Errors))
				for _, e := range r.Errors {
					lines = append(lines, fmt.Sprintf("%s [%s] %s", e.File, e.Stage, e.Message()))
				}
				tc.Failure = &JUnitFailure{
					Message: fmt.Sprintf("%d error(s) in package %s", len(r.Errors), r.Package),
					Type:    "build",
					Body:    strings.Join(lines, "\n"),
				}
				suite.Failures++
			}
			suite.Cases = append(suite.Cases, tc)
			suite.Tests++
		}
		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Suites = append(root.Suites, suite)
		total += o.Duration
	}
	root.Time = seconds(total)
	return root
}

// CheckJUnit converts checker reports into JUnit suites: one suite per
// checker, one case per file with findings. Only critical findings and
// checker errors are failures.
func CheckJUnit(reports []check.Report) JUnitTestSuites {
	root := JUnitTestSuites{Name: "themeforge-check"}
	var total time.Duration
	for _, r := range reports {
		suite := JUnitTestSuite{Name: "themeforge/check/" + r.Checker, Time: seconds(r.Duration)}
		class := "themeforge.check." + r.Checker

		if r.Err != nil {
			suite.Cases = append(suite.Cases, JUnitTestCase{
				Name:      r.Checker,
				Classname: class,
				Time:      seconds(r.Duration),
				Failure:   &JUnitFailure{Message: "checker failed", Type: "error", Body: r.Err.Error()},
			})
			suite.Tests++
			suite.Failures++
		}

		byFile := map[string][]check.Finding{}
		var order []string
		for _, f := range r.Findings {
			if _, ok := byFile[f.File]; !ok {
				order = append(order, f.File)
			}
			byFile[f.File] = append(byFile[f.File], f)
		}
		for _, file := range order {
			ff := byFile[file]
			tc := JUnitTestCase{Name: file, Classname: class, Time: "0.000"}
			worst := check.SeverityInfo
			lines := make([]string, 0, len(ff))
			for _, f := range ff {
				worst = max(worst, f.Severity)
				lines = append(lines, fmt.Sprintf("  %d:%d [%s] %s", f.Line, f.Column, f.Severity, f.Message))
			}
			if worst >= check.SeverityCritical {
				tc.Failure = &JUnitFailure{
					Message: fmt.Sprintf("%d finding(s) in %s", len(ff), file),
					Type:    worst.String(),
					Body:    strings.Join(lines, "\n"),
				}
				suite.Failures++
			}
			suite.Cases = append(suite.Cases, tc)
			suite.Tests++
		}

		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Suites = append(root.Suites, suite)
		total += r.Duration
	}
	root.Time = seconds(total)
	return root
}

// WriteJUnit writes suites to dir/name.
func WriteJUnit(dir, name string, suites JUnitTestSuites) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err = f.WriteString("\n")
	return err
}

// CIHeader prints a compact pipeline context line at the start of a CI run.
func CIHeader(w io.Writer) {
	if !IsCI() {
		return
	}
	var parts []string
	if ref := os.Getenv("CI_COMMIT_REF_NAME"); ref != "" {
		parts = append(parts, "ref="+ref)
	}
	if sha := os.Getenv("CI_COMMIT_SHORT_SHA"); sha != "" {
		parts = append(parts, "sha="+sha)
	} else if sha := os.Getenv("CI_COMMIT_SHA"); len(sha) >= 8 {
		parts = append(parts, "sha="+sha[:8])
	}
	if pipe := os.Getenv("CI_PIPELINE_ID"); pipe != "" {
		parts = append(parts, "pipeline="+pipe)
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  ci: %s\n", strings.Join(parts, "  "))
	}
}
