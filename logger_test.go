package eduapi

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSimpleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	l.Info("request completed", "method", "GET", "status", 200)

	line := buf.String()
	if !strings.Contains(line, "INFO request completed") {
		t.Errorf("missing level and message: %q", line)
	}
	if !strings.Contains(line, "method=GET") || !strings.Contains(line, "status=200") {
		t.Errorf("missing key=value pairs: %q", line)
	}
}

func TestSimpleLoggerOddPairs(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	// Trailing key without a value is dropped, not panicked on.
	l.Error("boom", "dangling")
	if !strings.Contains(buf.String(), "ERROR boom") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestSimpleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		if !strings.Contains(out, level) {
			t.Errorf("missing %s line in %q", level, out)
		}
	}
}

func TestZerologLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := NewZerologLogger(zl)

	l.Warn("retrying request", "attempt", 2, "method", "GET")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["message"] != "retrying request" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", entry["attempt"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %v, want GET", entry["method"])
	}
}

func TestDefaultDebugConfig(t *testing.T) {
	cfg := DefaultDebugConfig()
	if cfg.Enabled {
		t.Error("debug must default off")
	}
	if !cfg.LogRequests || !cfg.LogRetries || !cfg.LogCircuit || !cfg.LogRefresh || !cfg.LogRateLimit {
		t.Error("all event gates must default on")
	}
	if cfg.RequestIDGen == nil {
		t.Fatal("RequestIDGen must be set")
	}
	a, b := cfg.RequestIDGen(), cfg.RequestIDGen()
	if a == "" || a == b {
		t.Errorf("request IDs must be unique and non-empty: %q, %q", a, b)
	}
}
