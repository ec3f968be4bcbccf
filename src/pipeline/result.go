package pipeline

import "time"

// Result is the outcome of one package pipeline run.
type Result struct {
	Package  string
	Dest     string
	Success  bool
	Inputs   []string // matched source files, root-relative
	Outputs  []string // content files written, root-relative
	Maps     []string // source map files written, root-relative
	Errors   []*StageError
	Duration time.Duration
}

// Written returns every file the pipeline wrote, content first.
func (r *Result) Written() []string {
	out := make([]string, 0, len(r.Outputs)+len(r.Maps))
	out = append(out, r.Outputs...)
	return append(out, r.Maps...)
}

// Outcome aggregates the results of one orchestrated run.
// Results are in configuration order.
type Outcome struct {
	Kind     string
	Results  []*Result
	Success  bool
	Duration time.Duration
}

// Errors concatenates every package's errors, grouped by package in
// configuration order.
func (o *Outcome) Errors() []*StageError {
	var errs []*StageError
	for _, r := range o.Results {
		errs = append(errs, r.Errors...)
	}
	return errs
}

// Failed returns how many packages failed.
func (o *Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// Status returns "success" or "failed" for reporting.
func (o *Outcome) Status() string {
	if o.Success {
		return "success"
	}
	return "failed"
}
