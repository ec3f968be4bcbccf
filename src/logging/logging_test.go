package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "WARN"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}

	logger, err = New(&buf, Options{Level: "error", Verbose: true})
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("verbose level = %v", logger.GetLevel())
	}

	if _, err := New(&buf, Options{Level: "chatty"}); err == nil {
		t.Error("invalid level accepted")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("built", "package", "theme")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if rec["msg"] != "built" || rec["package"] != "theme" {
		t.Errorf("record = %v", rec)
	}
}

func TestInto(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	logger, _ := New(&bytes.Buffer{}, Options{})
	ctx := Into(context.Background(), logger)
	if log.FromContext(ctx) != logger || log.Default() != logger {
		t.Error("logger not installed")
	}
}
