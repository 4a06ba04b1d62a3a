package led

import (
	"sync"
	"testing"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/telemetry"
)

// fakeController records Set calls for assertions.
type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeController) Set(ledType string, enabled bool, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pattern)
	return nil
}

func (f *fakeController) Available() []string { return []string{"status"} }
func (f *fakeController) Patterns() []string  { return []string{"solid", "blink", "heartbeat"} }

func (f *fakeController) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func waitPattern(t *testing.T, f *fakeController, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.last() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("LED pattern = %q, want %q", f.last(), want)
}

func TestManagerFollowsStreamState(t *testing.T) {
	ctrl := &fakeController{}
	bus := telemetry.New()
	m := NewManager(ctrl, bus)
	m.Start()
	defer m.Stop()

	// idle on start
	waitPattern(t, ctrl, "heartbeat")

	bus.Publish(telemetry.StreamStateEvent{SessionID: "s1", Active: true})
	waitPattern(t, ctrl, "solid")

	bus.Publish(telemetry.StreamStateEvent{SessionID: "s1", Active: false})
	waitPattern(t, ctrl, "heartbeat")
}

func TestManagerShowsErrorsUntilNextSession(t *testing.T) {
	ctrl := &fakeController{}
	bus := telemetry.New()
	m := NewManager(ctrl, bus)
	m.Start()
	defer m.Stop()

	bus.Publish(telemetry.DeviceErrorEvent{Device: "capture", Error: "io"})
	waitPattern(t, ctrl, "blink")

	// a new session clears the error indication
	bus.Publish(telemetry.StreamStateEvent{SessionID: "s2", Active: true})
	waitPattern(t, ctrl, "solid")
}

func TestNoopControllerAcceptsAnything(t *testing.T) {
	c := newNoop(log)
	if err := c.Set("whatever", true, "blink"); err != nil {
		t.Fatal(err)
	}
	if len(c.Available()) != 0 {
		t.Fatal("noop controller must report no LEDs")
	}
}
