package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWatcherNotifiesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	var lastLevel atomic.Value

	w := NewWatcher(path, func(p string) (string, error) {
		return LoadLoggingConfig(p).Level, nil
	}, WithDebounce[string](50*time.Millisecond))

	w.OnReload(func(level string) {
		lastLevel.Store(level)
		reloads.Add(1)
	})

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return reloads.Load() >= 1 }, 3*time.Second,
		"handler was not notified of the change")

	if got := lastLevel.Load(); got != "debug" {
		t.Errorf("handler got level %v, want debug", got)
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	w := NewWatcher(path, func(p string) (int, error) {
		return 0, nil
	}, WithDebounce[int](150*time.Millisecond))
	w.OnReload(func(int) { reloads.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// burst of writes inside one debounce window
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("a = 2\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, func() bool { return reloads.Load() >= 1 }, 3*time.Second,
		"debounced reload never fired")
	time.Sleep(300 * time.Millisecond)

	if n := reloads.Load(); n != 1 {
		t.Errorf("reloads = %d, want exactly 1 for a single burst", n)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var gotErr atomic.Bool
	loadErr := errors.New("load failed")

	w := NewWatcher(path, func(p string) (int, error) {
		return 0, loadErr
	},
		WithDebounce[int](50*time.Millisecond),
		WithErrorHandler[int](func(err error) {
			if errors.Is(err, loadErr) {
				gotErr.Store(true)
			}
		}))

	var notified atomic.Bool
	w.OnReload(func(int) { notified.Store(true) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("a = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return gotErr.Load() }, 3*time.Second,
		"error handler was not called")
	if notified.Load() {
		t.Error("handlers must not run when the loader fails")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var first, second atomic.Int32
	w := NewWatcher(path, func(p string) (int, error) {
		return 0, nil
	}, WithDebounce[int](50*time.Millisecond))

	unsub := w.OnReload(func(int) { first.Add(1) })
	w.OnReload(func(int) { second.Add(1) })
	unsub()

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("a = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return second.Load() >= 1 }, 3*time.Second,
		"remaining handler was not notified")
	if first.Load() != 0 {
		t.Error("unsubscribed handler must not be called")
	}
}

func TestWatcherStartMissingFile(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing.toml"),
		func(p string) (int, error) { return 0, nil })
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error watching a missing file")
	}
}
