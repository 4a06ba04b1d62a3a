package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	logBuffer = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"capture": "debug",
			"monitor": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"capture", true, true, true},
		{"monitor", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestReinitializeRelevelsExistingLoggers(t *testing.T) {
	resetState()

	Initialize(Config{Level: "info", Format: "text"})
	logger := GetLogger("capture")

	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before override")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"capture": "debug"},
	})

	if !GetLogger("capture").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after reconfigure")
	}
}

func TestRingBufferOverwrite(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{
			Timestamp: time.Now(),
			Level:     "info",
			Message:   string(rune('a' + i)),
		})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("ReadAll returned %d entries, want 3", len(entries))
	}
	for i, want := range []string{"c", "d", "e"} {
		if entries[i].Message != want {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, want)
		}
	}
}

func TestBufferHandlerCapturesAttrs(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", Format: "text"})

	GetLogger("encode").Info("frame done", "seq", 7)

	entries := GetBuffer().ReadAll()
	if len(entries) == 0 {
		t.Fatal("no entries captured")
	}
	last := entries[len(entries)-1]
	if last.Module != "encode" {
		t.Errorf("module = %q, want encode", last.Module)
	}
	if last.Message != "frame done" {
		t.Errorf("message = %q", last.Message)
	}
	if last.Attributes["seq"] != int64(7) {
		t.Errorf("seq attr = %v (%T)", last.Attributes["seq"], last.Attributes["seq"])
	}
}

type countingHandler struct {
	level   slog.Level
	records int
}

func (c *countingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= c.level }
func (c *countingHandler) Handle(_ context.Context, _ slog.Record) error {
	c.records++
	return nil
}
func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *countingHandler) WithGroup(string) slog.Handler      { return c }

func TestFanoutRespectsPerHandlerLevels(t *testing.T) {
	debug := &countingHandler{level: slog.LevelDebug}
	warn := &countingHandler{level: slog.LevelWarn}
	f := newFanout(debug, warn)

	ctx := context.Background()
	if !f.Enabled(ctx, slog.LevelDebug) {
		t.Fatal("fanout must be enabled when any member is")
	}

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := f.Handle(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if debug.records != 1 || warn.records != 0 {
		t.Fatalf("records = %d/%d, want 1/0", debug.records, warn.records)
	}

	rec = slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	if err := f.Handle(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if debug.records != 2 || warn.records != 1 {
		t.Fatalf("records = %d/%d, want 2/1", debug.records, warn.records)
	}
}
