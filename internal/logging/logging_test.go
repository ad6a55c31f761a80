package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sentinel.log")
	logger, err := New(Config{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("new logger failed: %v", err)
	}
	logger.Debug("listening armed")
	_ = logger.Sync()

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(contents), `"msg":"listening armed"`) || !strings.Contains(string(contents), `"level":"debug"`) {
		t.Fatalf("unexpected log contents: %s", contents)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sentinel.log")
	logger, err := New(Config{Level: "warn", Format: "console", File: path})
	if err != nil {
		t.Fatalf("new logger failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	contents, _ := os.ReadFile(path)
	if strings.Contains(string(contents), "hidden") || !strings.Contains(string(contents), "shown") {
		t.Fatalf("unexpected log contents: %s", contents)
	}
}

func TestNewRejectsBadSettings(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatalf("expected invalid format error")
	}
}
