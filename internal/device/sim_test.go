package device

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func configuredCapture(t *testing.T, slots int) *SimCapture {
	t.Helper()
	c := NewSimCapture(slots)
	if err := c.Configure(64, 48, FmtYUV422P); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c
}

func TestCaptureSlotLifecycle(t *testing.T) {
	c := configuredCapture(t, 2)

	s1, err := c.DequeueSlot(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("first dequeue: %v", err)
	}
	s2, err := c.DequeueSlot(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("second dequeue: %v", err)
	}
	if s1.Index == s2.Index {
		t.Errorf("both dequeues returned slot %d", s1.Index)
	}

	// Ring exhausted until a slot comes back.
	if _, err := c.DequeueSlot(5 * time.Millisecond); !errors.Is(err, ErrNoSlot) {
		t.Fatalf("dequeue on starved ring = %v, want ErrNoSlot", err)
	}

	if err := c.RequeueSlot(s1.Index); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	// s1 is back in the ring; returning it again must be refused while it
	// is not outstanding.
	if err := c.RequeueSlot(s1.Index); err == nil {
		t.Error("double requeue of returned slot succeeded")
	}
	if _, err := c.DequeueSlot(10 * time.Millisecond); err != nil {
		t.Fatalf("dequeue after requeue: %v", err)
	}

	_ = s2
}

func TestCaptureRejectsUnsupportedGeometry(t *testing.T) {
	c := NewSimCapture(2, WithMaxGeometry(640, 480))
	if err := c.Configure(1920, 1080, FmtYUV422P); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Configure = %v, want ErrNotSupported", err)
	}
}

func TestCaptureInjectedFailures(t *testing.T) {
	c := configuredCapture(t, 2)
	c.FailNextDequeues(2)

	for i := 0; i < 2; i++ {
		if _, err := c.DequeueSlot(5 * time.Millisecond); !errors.Is(err, ErrIO) {
			t.Fatalf("dequeue %d = %v, want ErrIO", i, err)
		}
	}
	if _, err := c.DequeueSlot(10 * time.Millisecond); err != nil {
		t.Fatalf("dequeue after failures: %v", err)
	}
}

func TestCaptureNotStreaming(t *testing.T) {
	c := NewSimCapture(2)
	if err := c.Configure(64, 48, FmtGrey); err != nil {
		t.Fatal(err)
	}
	if _, err := c.DequeueSlot(time.Millisecond); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("dequeue before Start = %v, want ErrNotStreaming", err)
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	e := NewSimEncoder()
	err := e.Configure(EncoderConfig{
		Width: 64, Height: 48,
		InputFormat: FmtYUV422P, OutputFormat: FmtJPEG,
		Quality: 80,
	})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	raw := make([]byte, 64*48*2)
	for i := range raw {
		raw[i] = byte(i)
	}
	if err := e.Submit(raw); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	out, err := e.Retrieve()
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if !bytes.HasPrefix(out, jpegSOI) {
		t.Errorf("output missing JPEG SOI: % x", out[:4])
	}
	if !bytes.HasSuffix(out, jpegEOI) {
		t.Error("output missing JPEG EOI")
	}
	if len(out) >= len(raw) {
		t.Errorf("compressed size %d not smaller than input %d", len(out), len(raw))
	}

	// Retrieve without a fresh Submit fails.
	if _, err := e.Retrieve(); !errors.Is(err, ErrIO) {
		t.Fatalf("second Retrieve = %v, want ErrIO", err)
	}
}

func TestEncoderRejectsUnknownOutput(t *testing.T) {
	e := NewSimEncoder()
	err := e.Configure(EncoderConfig{Width: 64, Height: 48, OutputFormat: FmtGrey})
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Configure = %v, want ErrNotSupported", err)
	}
}

func TestEncoderInjectedFailures(t *testing.T) {
	e := NewSimEncoder()
	if err := e.Configure(EncoderConfig{Width: 8, Height: 8, OutputFormat: FmtJPEG}); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	e.FailNextSubmits(1)
	if err := e.Submit([]byte{1, 2, 3}); !errors.Is(err, ErrIO) {
		t.Fatalf("Submit = %v, want ErrIO", err)
	}

	if err := e.Submit([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	e.FailNextRetrieves(1)
	if _, err := e.Retrieve(); !errors.Is(err, ErrIO) {
		t.Fatalf("Retrieve = %v, want ErrIO", err)
	}
}
