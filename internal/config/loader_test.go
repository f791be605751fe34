package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	opts, err := l.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SchedulerWorkers != Default().SchedulerWorkers {
		t.Fatalf("expected default scheduler workers, got %d", opts.SchedulerWorkers)
	}
}

func TestLoadParsesFileAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "enable_cors_for_api: true\nproxy:\n  host: proxy.local\n  port: 3128\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	opts, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.EnableCORSForAPI {
		t.Fatal("expected EnableCORSForAPI to be true")
	}
	if opts.Proxy == nil || opts.Proxy.Host != "proxy.local" || opts.Proxy.Port != 3128 {
		t.Fatalf("unexpected proxy config: %+v", opts.Proxy)
	}
	if opts.SocketConnectionTimeout != Default().SocketConnectionTimeout {
		t.Fatalf("expected default timeout to be filled in, got %v", opts.SocketConnectionTimeout)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scheduler_workers: 2\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	reloaded := make(chan Options, 1)
	w, err := NewWatcher(NewLoader(path), func(opts Options) {
		reloaded <- opts
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("scheduler_workers: 4\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite fixture: %v", err)
	}

	select {
	case opts := <-reloaded:
		if opts.SchedulerWorkers != 4 {
			t.Fatalf("expected reloaded worker count 4, got %d", opts.SchedulerWorkers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
