package uvc

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubHandler struct {
	startErr error
	frames   []*FrameRef

	started  int
	stopped  int
	returned int
}

func (h *stubHandler) OnStart(cfg StreamConfig) error {
	h.started++
	return h.startErr
}

func (h *stubHandler) GetFrame() *FrameRef {
	if len(h.frames) == 0 {
		return nil
	}
	f := h.frames[0]
	h.frames = h.frames[1:]
	return f
}

func (h *stubHandler) ReturnFrame(f *FrameRef) {
	h.returned++
}

func (h *stubHandler) OnStop() {
	h.stopped++
}

func TestHostPropagatesStartError(t *testing.T) {
	wantErr := errors.New("unsupported")
	h := &stubHandler{startErr: wantErr}
	host := NewHost(h, StreamConfig{Format: FormatMJPEG, Width: 640, Height: 480, FPS: 30})

	err := host.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected start error, got %v", err)
	}
	if h.stopped != 0 {
		t.Error("OnStop called after failed OnStart")
	}
}

func TestHostReturnsEveryDeliveredFrame(t *testing.T) {
	h := &stubHandler{
		frames: []*FrameRef{
			{Seq: 1, Data: []byte{0xFF, 0xD8}},
			{Seq: 2, Data: []byte{0xFF, 0xD8}},
		},
	}
	host := NewHost(h, StreamConfig{Format: FormatMJPEG, Width: 640, Height: 480, FPS: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := host.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	pulls, delivered, empty := host.Stats()
	if delivered != 2 {
		t.Errorf("expected 2 delivered frames, got %d", delivered)
	}
	if h.returned != 2 {
		t.Errorf("expected 2 returned frames, got %d", h.returned)
	}
	if empty == 0 {
		t.Error("expected empty pulls once the handler ran dry")
	}
	if pulls != delivered+empty {
		t.Errorf("pulls %d != delivered %d + empty %d", pulls, delivered, empty)
	}
	if h.stopped != 1 {
		t.Errorf("expected exactly one OnStop, got %d", h.stopped)
	}
}

func TestStreamConfigString(t *testing.T) {
	cfg := StreamConfig{Format: FormatH264, Width: 1920, Height: 1080, FPS: 30}
	if got := cfg.String(); got != "H264 1920x1080@30fps" {
		t.Errorf("got %q", got)
	}
}
