package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coachline/coachline/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "coachline.log")
	closer, err := Setup(config.LoggingConfig{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		log.SetOutput(os.Stdout)
		_ = closer.Close()
	})

	log.WithField("order", "order_1").Info("hello")
	if errClose := closer.Close(); errClose != nil {
		t.Fatalf("close: %v", errClose)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"order":"order_1"`) {
		t.Fatalf("expected json field in log, got %s", data)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
