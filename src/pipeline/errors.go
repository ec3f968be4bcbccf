package pipeline

import (
	"errors"
	"fmt"
)

// Built-in stage names. Capabilities contribute their own between
// StageMapInit and StageMapWrite.
const (
	StageConfigure = "configure"
	StageRead      = "read"
	StageMapInit   = "sourcemap:init"
	StageMapWrite  = "sourcemap:write"
	StageEmit      = "emit"
)

// TransformError is returned by a stage when a capability rejects its input,
// such as a syntax error in a source file.
type TransformError struct {
	Stage   string
	File    string
	Line    int // 1-based, zero when unknown
	Column  int
	Message string
}

func (e *TransformError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// StageError records a failure that aborted one package's pipeline,
// tagged with the originating file and stage.
type StageError struct {
	Package string
	Stage   string
	File    string
	Err     error
}

func (e *StageError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s [%s]: %v", e.Package, e.File, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Package, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Message returns the underlying error text without the package/file prefix.
func (e *StageError) Message() string {
	var te *TransformError
	if errors.As(e.Err, &te) {
		if te.Line > 0 {
			return fmt.Sprintf("line %d: %s", te.Line, te.Message)
		}
		return te.Message
	}
	return e.Err.Error()
}

// fileError attributes a non-transform failure, such as a missing tool, to a file.
type fileError struct {
	file string
	err  error
}

func (e *fileError) Error() string { return e.file + ": " + e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

// InFile tags err with the file being processed when it failed.
func InFile(file string, err error) error {
	if err == nil {
		return nil
	}
	return &fileError{file: file, err: err}
}

func newStageError(pkg, stage string, err error) *StageError {
	se := &StageError{Package: pkg, Stage: stage, Err: err}
	var te *TransformError
	var fe *fileError
	switch {
	case errors.As(err, &te):
		se.File = te.File
		if te.Stage != "" {
			se.Stage = te.Stage
		}
	case errors.As(err, &fe):
		se.File = fe.file
		se.Err = fe.err
	}
	return se
}
