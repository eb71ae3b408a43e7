package config

import (
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type workerConfig struct {
	Model string `toml:"model"`
	Port  int    `toml:"port"`
}

func loadWorkerConfig(path string) (workerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workerConfig{}, err
	}
	var cfg workerConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.toml")
	if err != nil {
		t.Fatal(err)
	}

	tmpFile.WriteString("model = \"initial\"\nport = 1\n")
	tmpFile.Close()

	received := make(chan workerConfig, 1)
	watcher := NewConfigWatcher(
		tmpFile.Name(),
		loadWorkerConfig,
		newTestLogger(),
		WithDebounce[workerConfig](50*time.Millisecond),
	)

	watcher.OnReload(func(cfg workerConfig) {
		received <- cfg
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer func() {
		if stopErr := watcher.Stop(); stopErr != nil {
			t.Errorf("watcher.Stop failed: %v", stopErr)
		}
	}()

	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)

	if writeErr := os.WriteFile(tmpFile.Name(), []byte("model = \"updated\"\nport = 8088\n"), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case cfg := <-received:
		if cfg.Model != "updated" || cfg.Port != 8088 {
			t.Errorf("got %+v, want model=updated, port=8088", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_LoadErrorHandler(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.toml")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.WriteString("model = \"ok\"\n")
	tmpFile.Close()

	loadErr := errors.New("loader boom")
	loader := func(_ string) (workerConfig, error) {
		return workerConfig{}, loadErr
	}

	errCh := make(chan error, 1)
	watcher := NewConfigWatcher(
		tmpFile.Name(),
		loader,
		newTestLogger(),
		WithDebounce[workerConfig](50*time.Millisecond),
		WithErrorHandler[workerConfig](func(e error) {
			errCh <- e
		}),
	)

	handlerCalled := make(chan struct{}, 1)
	watcher.OnReload(func(workerConfig) {
		handlerCalled <- struct{}{}
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if writeErr := os.WriteFile(tmpFile.Name(), []byte("model = \"changed\"\n"), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	select {
	case got := <-errCh:
		if !errors.Is(got, loadErr) {
			t.Errorf("got error %v, want %v", got, loadErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}

	select {
	case <-handlerCalled:
		t.Error("reload handler should not run when the loader fails")
	case <-time.After(100 * time.Millisecond):
		// Expected
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.toml")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.WriteString("model = \"initial\"\n")
	tmpFile.Close()

	var calls atomic.Int32
	watcher := NewConfigWatcher(
		tmpFile.Name(),
		loadWorkerConfig,
		newTestLogger(),
		WithDebounce[workerConfig](50*time.Millisecond),
	)

	unsub := watcher.OnReload(func(workerConfig) {
		calls.Add(1)
	})
	unsub()

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if writeErr := os.WriteFile(tmpFile.Name(), []byte("model = \"changed\"\n"), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	time.Sleep(300 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("unsubscribed handler was called %d times", calls.Load())
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"
	if err := os.WriteFile(path, []byte("model = \"initial\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	received := make(chan workerConfig, 2)
	watcher := NewConfigWatcher(
		path,
		loadWorkerConfig,
		newTestLogger(),
		WithDebounce[workerConfig](50*time.Millisecond),
	)
	watcher.OnReload(func(cfg workerConfig) {
		received <- cfg
	})

	if startErr := watcher.Start(); startErr != nil {
		t.Fatal(startErr)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	// Simulate an editor replacing the file via rename
	tmpPath := dir + "/config.toml.new"
	if err := os.WriteFile(tmpPath, []byte("model = \"replaced\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Model != "replaced" {
			t.Errorf("got model %q, want %q", cfg.Model, "replaced")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after atomic replace")
	}
}
