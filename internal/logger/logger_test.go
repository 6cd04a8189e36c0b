package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func restore(t *testing.T) {
	old := Logger
	t.Cleanup(func() {
		Close()
		Logger = old
	})
}

func TestInitWritesLogfmtToRotatingFile(t *testing.T) {
	restore(t)
	dir := t.TempDir()
	if err := Init(Config{LogDir: dir}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info("alarm armed", "alarm_id", 3)
	Debug("hidden at info level")

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `msg="alarm armed"`) || !strings.Contains(out, "alarm_id=3") {
		t.Errorf("expected logfmt entry in log, got %q", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug entry should be filtered, got %q", out)
	}
}

func TestDebugKeepsDebugEntries(t *testing.T) {
	restore(t)
	dir := t.TempDir()
	if err := Init(Config{LogDir: dir, Debug: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Debug("sync tick", "alarms", 2)

	data, _ := os.ReadFile(filepath.Join(dir, fileName))
	if !strings.Contains(string(data), "sync tick") {
		t.Errorf("expected debug entry, got %q", data)
	}
}

func TestCloseWithoutInit(t *testing.T) {
	restore(t)
	Close()
	if err := Close(); err != nil {
		t.Errorf("expected nil on second close, got %v", err)
	}
	// the default logger stays usable
	Warn("before init")
}
