// Package logging configures the process logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options selects level and format.
type Options struct {
	Level   string // debug, info, warn, error
	JSON    bool
	Verbose bool // shorthand for debug
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "themeforge",
	})
	if opts.JSON {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger, nil
}

// Into stores logger in ctx and makes it the package default.
func Into(ctx context.Context, logger *log.Logger) context.Context {
	log.SetDefault(logger)
	return log.WithContext(ctx, logger)
}
