package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetDebug(false)

	l.Printf("hello %s", "world")
	l.Warnf("careful")
	l.Debugf("hidden")

	out := buf.String()
	if !strings.Contains(out, "[INFO] hello world") {
		t.Errorf("missing INFO line: %q", out)
	}
	if !strings.Contains(out, "[WARN] careful") {
		t.Errorf("missing WARN line: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("DEBUG line written while debug is off: %q", out)
	}

	l.SetDebug(true)
	l.Debugf("shown")
	if !strings.Contains(buf.String(), "[DEBUG] shown") {
		t.Errorf("missing DEBUG line after SetDebug")
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segmenter.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.Errorf("disk line")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[ERROR] disk line") {
		t.Errorf("log file missing line: %q", data)
	}

	// Writes after Close are dropped.
	l.Printf("late")
	data, _ = os.ReadFile(path)
	if strings.Contains(string(data), "late") {
		t.Errorf("closed logger still writing")
	}
}
