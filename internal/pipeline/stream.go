package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maohuynh-embedded/camnode/internal/frame"
	"github.com/maohuynh-embedded/camnode/internal/metrics"
	"github.com/maohuynh-embedded/camnode/internal/telemetry"
	"github.com/maohuynh-embedded/camnode/internal/uvc"
)

// StreamStage serves compressed frames to the USB gadget. It implements
// uvc.Handler: OnStart negotiates and opens the streaming gate, GetFrame
// hands out at most one frame at a time, ReturnFrame releases it, OnStop
// tears the session down. In the default mode GetFrame drains the encoded
// queue; with SyncPull the whole capture-encode path runs inside the
// callback instead.
type StreamStage struct {
	state *State

	mu       sync.Mutex
	inflight *frame.Buffer
}

func NewStreamStage(state *State) *StreamStage {
	return &StreamStage{state: state}
}

func (st *StreamStage) Name() string { return "stream" }

func (st *StreamStage) Init() error {
	st.state.Flags.Set(FlagStreamReady)
	log.Info("Stream stage ready")
	return nil
}

func (st *StreamStage) Terminate() {
	st.state.Flags.Clear(FlagStreamReady)
	st.stopSession("terminate")
}

// OnStart handles the host's format selection. A rejected request leaves
// the pipeline exactly as it was.
func (st *StreamStage) OnStart(cfg uvc.StreamConfig) error {
	s := st.state

	if err := s.validateStream(cfg); err != nil {
		log.Warn("Host stream request rejected", "request", cfg.String(), "error", err)
		return err
	}

	// A host may renegotiate without a clean stop.
	if s.Flags.IsSet(FlagStreamingActive) {
		st.stopSession("renegotiate")
	}

	if err := s.applyStream(cfg); err != nil {
		s.reportDeviceError("stream", err)
		return err
	}

	id := uuid.NewString()
	s.sessionMu.Lock()
	s.sessionID = id
	s.sessionMu.Unlock()

	s.Flags.Set(FlagStreamingActive)
	s.PostControl(ControlEvent{Kind: KindStartStream, Stream: cfg})
	s.Bus.Publish(telemetry.StreamStateEvent{
		SessionID: id,
		Active:    true,
		Format:    cfg.Format.String(),
		Width:     cfg.Width,
		Height:    cfg.Height,
		FPS:       cfg.FPS,
	})
	log.Info("Streaming session started", "session", id, "stream", cfg.String())
	return nil
}

// GetFrame returns the next compressed frame, or nil when none is ready.
// It never blocks beyond the configured poll bound.
func (st *StreamStage) GetFrame() *uvc.FrameRef {
	s := st.state
	if !s.Flags.IsSet(FlagStreamingActive) {
		return nil
	}
	defer func(start time.Time) {
		metrics.ObservePullLatency(time.Since(start))
	}(time.Now())

	var buf *frame.Buffer
	if s.cfg.SyncPull {
		buf = s.encodeOne()
	} else {
		b, ok := s.Encoded.TryRecv()
		if !ok {
			return nil
		}
		buf = b
	}
	if buf == nil {
		return nil
	}

	st.mu.Lock()
	if st.inflight != nil {
		// The gadget contract allows one outstanding frame. A second pull
		// before ReturnFrame supersedes the first.
		old := st.inflight
		st.inflight = buf
		st.mu.Unlock()
		s.drop(old, "stream", "superseded before return")
	} else {
		st.inflight = buf
		st.mu.Unlock()
	}

	return &uvc.FrameRef{
		Data:      buf.Payload(),
		Timestamp: buf.Timestamp,
		Seq:       buf.Seq,
	}
}

// ReturnFrame releases the frame handed out by the last GetFrame.
func (st *StreamStage) ReturnFrame(f *uvc.FrameRef) {
	if f == nil {
		return
	}
	st.mu.Lock()
	buf := st.inflight
	if buf == nil || buf.Seq != f.Seq {
		st.mu.Unlock()
		log.Warn("Returned frame does not match the outstanding one", "seq", f.Seq)
		return
	}
	st.inflight = nil
	st.mu.Unlock()

	st.state.release(buf)
	st.state.stats.streamed.Add(1)
}

// OnStop ends the session.
func (st *StreamStage) OnStop() {
	st.stopSession("host stop")
}

// stopSession closes the streaming gate, releases every frame still in
// flight or queued, and stops the devices. Safe to call when no session is
// active.
func (st *StreamStage) stopSession(reason string) {
	s := st.state
	wasActive := s.Flags.IsSet(FlagStreamingActive)
	s.Flags.Clear(FlagStreamingActive)

	st.mu.Lock()
	buf := st.inflight
	st.inflight = nil
	st.mu.Unlock()
	if buf != nil {
		s.release(buf)
	}

	for {
		b, ok := s.Encoded.TryRecv()
		if !ok {
			break
		}
		s.release(b)
	}

	s.stopDevices()

	if wasActive {
		s.sessionMu.Lock()
		id := s.sessionID
		s.sessionID = ""
		cfg := s.video
		s.sessionMu.Unlock()

		s.Bus.Publish(telemetry.StreamStateEvent{
			SessionID: id,
			Active:    false,
			Format:    cfg.Format.String(),
			Width:     cfg.Width,
			Height:    cfg.Height,
			FPS:       cfg.FPS,
		})
		log.Info("Streaming session stopped", "session", id, "reason", reason)
	}
}
