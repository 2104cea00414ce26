package config

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestWatcherStopsOnCancel(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	w := Watcher{Path: path, Cooldown: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	if err := w.Start(ctx, nil); err == nil {
		t.Fatalf("expected context cancellation")
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := Watcher{Path: "/nonexistent-dir-for-watch/cfg.yaml"}
	if err := w.Start(context.Background(), nil); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	w := Watcher{Path: path, Cooldown: 20 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updated := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case updated <- cfg:
			default:
			}
		})
	}()

	changed := strings.Replace(sampleConfig, "workers: 4", "workers: 2", 1)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case cfg := <-updated:
			if cfg.Lattice.Workers != 2 {
				t.Fatalf("expected reloaded workers=2, got %d", cfg.Lattice.Workers)
			}
			return
		case <-ticker.C:
			// watcher 可能尚未注册，重复写入直到回调触发
			if err := os.WriteFile(path, []byte(changed), 0o644); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-ctx.Done():
			t.Fatalf("watcher did not trigger")
		}
	}
}

func TestWatcherReportsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	var (
		mu   sync.Mutex
		errs []error
	)
	gotErr := make(chan struct{}, 1)
	w := Watcher{
		Path:     path,
		Cooldown: 20 * time.Millisecond,
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			select {
			case gotErr <- struct{}{}:
			default:
			}
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = w.Start(ctx, func(AppConfig) {})
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-gotErr:
			mu.Lock()
			defer mu.Unlock()
			if len(errs) == 0 {
				t.Fatalf("expected error to be recorded")
			}
			return
		case <-ticker.C:
			if err := os.WriteFile(path, []byte("env: \"\"\n"), 0o644); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-ctx.Done():
			t.Fatalf("watcher did not report invalid config")
		}
	}
}
