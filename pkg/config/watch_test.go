package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWatcher_ReloadOnWrite(t *testing.T) {
	path := writeConfigFile(t, validConfigYAML)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Let the watch register before touching the file.
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(validConfigYAML, "limit: 20", "limit: 99", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Limits.Requests.Limit != 99 {
			t.Errorf("reloaded request limit = %d, want 99", cfg.Limits.Requests.Limit)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback not invoked after file change")
	}
}

func TestWatcher_InvalidReloadKeepsRunning(t *testing.T) {
	path := writeConfigFile(t, validConfigYAML)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)

	// A broken rewrite must not invoke the callback.
	if err := os.WriteFile(path, []byte("limits: [broken"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("reload callback invoked for an invalid configuration")
	case <-time.After(600 * time.Millisecond):
	}

	// A subsequent valid rewrite still reloads.
	if err := os.WriteFile(path, []byte(validConfigYAML), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback not invoked after recovery")
	}
}
