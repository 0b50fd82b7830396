package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/versecast/versecast/internal/config"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
}

func TestWatcherLoadsInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versecast.yaml")
	writeConfigFile(t, path, "transcribe:\n  provider: mock\ndetect:\n  cooldown_ms: 4000\n")

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Detect.CooldownMS; got != 4000 {
		t.Errorf("initial cooldown = %d", got)
	}
}

func TestWatcherRejectsInvalidInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versecast.yaml")
	writeConfigFile(t, path, "log:\n  level: chatty\n")

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("invalid initial config accepted")
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versecast.yaml")
	writeConfigFile(t, path, "transcribe:\n  provider: mock\ndetect:\n  cooldown_ms: 4000\n")

	changed := make(chan config.ConfigDiff, 1)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changed <- config.Diff(old, new)
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// The poller compares mtimes; backdate the first write so the rewrite is
	// seen even on coarse filesystem clocks.
	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("backdating file: %v", err)
	}
	writeConfigFile(t, path, "transcribe:\n  provider: mock\ndetect:\n  cooldown_ms: 9000\n")

	select {
	case d := <-changed:
		if !d.CooldownChanged || d.NewCooldownMS != 9000 {
			t.Fatalf("diff = %+v", d)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("change never detected")
	}

	if got := w.Current().Detect.CooldownMS; got != 9000 {
		t.Errorf("Current cooldown = %d after reload", got)
	}
}

func TestWatcherKeepsOldConfigOnInvalidRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versecast.yaml")
	writeConfigFile(t, path, "transcribe:\n  provider: mock\ndetect:\n  cooldown_ms: 4000\n")

	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		t.Error("onChange called for invalid config")
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("backdating file: %v", err)
	}
	writeConfigFile(t, path, "log:\n  level: chatty\n")

	// Give the poller a few cycles to notice the rewrite.
	time.Sleep(100 * time.Millisecond)

	if got := w.Current().Detect.CooldownMS; got != 4000 {
		t.Errorf("Current cooldown = %d, old config not retained", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versecast.yaml")
	writeConfigFile(t, path, "transcribe:\n  provider: mock\n")

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
