// Package pipeline implements the camera frame path as a set of stages
// sharing one State: capture pulls filled slots from the sensor ring,
// encode compresses them, and stream serves the result to the USB gadget
// through the pull callbacks. Hand-offs between stages go over small
// bounded queues; when a consumer lags, frames are dropped at the hand-off
// after their buffers are disposed, so the producers never block on a slow
// host.
package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/device"
	"github.com/maohuynh-embedded/camnode/internal/eventgroup"
	"github.com/maohuynh-embedded/camnode/internal/frame"
	"github.com/maohuynh-embedded/camnode/internal/handoff"
	"github.com/maohuynh-embedded/camnode/internal/inspect"
	"github.com/maohuynh-embedded/camnode/internal/logging"
	"github.com/maohuynh-embedded/camnode/internal/telemetry"
	"github.com/maohuynh-embedded/camnode/internal/uvc"
)

var log = logging.GetLogger("pipeline")

// Config sizes the pipeline. Zero values fall back to the defaults, which
// mirror the capture hardware's ring depth: the queues stay shallow so a
// stalled consumer surfaces as drops instead of latency.
type Config struct {
	RawQueueCap     int           // filled slots awaiting encode, default 3
	EncodedQueueCap int           // compressed frames awaiting the host, default 3
	ControlQueueCap int           // pending control events, default 10
	RecvTimeout     time.Duration // per-wait bound on every queue and device poll, default 100ms
	ArenaBudget     int           // heap budget for compressed frames, default 16MiB

	MaxWidth  int // largest negotiable geometry, default 1920
	MaxHeight int // default 1080

	// SyncPull switches the stream stage to produce each frame inside the
	// GetFrame callback instead of draining the encoded queue.
	SyncPull bool

	InspectLevel inspect.Level
}

func (c Config) withDefaults() Config {
	if c.RawQueueCap <= 0 {
		c.RawQueueCap = 3
	}
	if c.EncodedQueueCap <= 0 {
		c.EncodedQueueCap = 3
	}
	if c.ControlQueueCap <= 0 {
		c.ControlQueueCap = 10
	}
	if c.RecvTimeout <= 0 {
		c.RecvTimeout = 100 * time.Millisecond
	}
	if c.ArenaBudget <= 0 {
		c.ArenaBudget = 16 << 20
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = 1920
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = 1080
	}
	return c
}

// Stats is a snapshot of the frame counters.
type Stats struct {
	Captured uint64
	Encoded  uint64
	Streamed uint64
	Dropped  uint64
	IOErrors uint64
}

type counters struct {
	captured atomic.Uint64
	encoded  atomic.Uint64
	streamed atomic.Uint64
	dropped  atomic.Uint64
	ioErrors atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Captured: c.captured.Load(),
		Encoded:  c.encoded.Load(),
		Streamed: c.streamed.Load(),
		Dropped:  c.dropped.Load(),
		IOErrors: c.ioErrors.Load(),
	}
}

func (c *counters) reset() {
	c.captured.Store(0)
	c.encoded.Store(0)
	c.streamed.Store(0)
	c.dropped.Store(0)
	c.ioErrors.Store(0)
}

// State is everything the stages share. Device access is serialized by
// capMu and encMu; the mutexes are held only for the device call itself,
// never across a queue wait.
type State struct {
	cfg Config

	Flags     *eventgroup.Group
	Raw       *handoff.Queue[*frame.Buffer]
	Encoded   *handoff.Queue[*frame.Buffer]
	Control   *handoff.Queue[ControlEvent]
	Arena     *frame.Arena
	Bus       *telemetry.Bus
	Inspector *inspect.Inspector

	capMu   sync.Mutex
	capture device.Capture
	encMu   sync.Mutex
	encoder device.Encoder

	seq    atomic.Uint64
	stats  counters
	rawFmt atomic.Uint32
	outFmt atomic.Uint32

	sessionMu sync.Mutex
	sessionID string
	video     uvc.StreamConfig
}

// NewState wires a State around the given devices.
func NewState(cfg Config, capture device.Capture, encoder device.Encoder, bus *telemetry.Bus) *State {
	cfg = cfg.withDefaults()
	if bus == nil {
		bus = telemetry.New()
	}
	return &State{
		cfg:       cfg,
		Flags:     eventgroup.New(),
		Raw:       handoff.New[*frame.Buffer](cfg.RawQueueCap),
		Encoded:   handoff.New[*frame.Buffer](cfg.EncodedQueueCap),
		Control:   handoff.New[ControlEvent](cfg.ControlQueueCap),
		Arena:     frame.NewArena(cfg.ArenaBudget),
		Bus:       bus,
		Inspector: inspect.New(cfg.InspectLevel),
		capture:   capture,
		encoder:   encoder,
	}
}

// Stats returns the current counter snapshot.
func (s *State) Stats() Stats { return s.stats.snapshot() }

// ResetStats zeroes the counters and the inspector. The streaming gate is
// not touched.
func (s *State) ResetStats() {
	s.stats.reset()
	s.Inspector.Reset()
	s.Bus.Publish(telemetry.StatsResetEvent{})
	log.Info("Statistics reset")
}

// Session returns the current session ID and negotiated stream parameters.
// The ID is empty when no host session is active.
func (s *State) Session() (string, uvc.StreamConfig) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.sessionID, s.video
}

// Streaming reports whether the streaming gate is open.
func (s *State) Streaming() bool {
	return s.Flags.IsSet(FlagStreamingActive)
}

// PostControl enqueues a control event without blocking. A full control
// queue drops the event; control traffic is advisory and must never stall
// a stage.
func (s *State) PostControl(ev ControlEvent) bool {
	if err := s.Control.TrySend(ev); err != nil {
		log.Warn("Control queue full, event dropped", "kind", ev.Kind.String())
		return false
	}
	return true
}

// nextSeq returns the next capture sequence number.
func (s *State) nextSeq() uint64 {
	return s.seq.Add(1)
}

// release disposes a buffer according to its ownership: device slots go
// back to the capture ring, heap buffers back to the arena. Every frame
// leaves the pipeline through this function exactly once.
func (s *State) release(b *frame.Buffer) {
	if b == nil {
		return
	}
	if idx := b.SlotIndex(); idx >= 0 {
		b.Retire()
		s.capMu.Lock()
		err := s.capture.RequeueSlot(idx)
		s.capMu.Unlock()
		if err != nil {
			log.Error("Failed to requeue capture slot", "slot", idx, "error", err)
		}
		return
	}
	s.Arena.Free(b)
}

// drop disposes a buffer and counts it as dropped at the named stage.
// Disposal always precedes the count so a dropped frame can never leak.
func (s *State) drop(b *frame.Buffer, stage, reason string) {
	seq := b.Seq
	s.release(b)
	s.stats.dropped.Add(1)
	s.Bus.Publish(telemetry.FrameDroppedEvent{Stage: stage, Seq: seq, Reason: reason})
}

// reportDeviceError counts an IO error and surfaces it on the bus and the
// control queue.
func (s *State) reportDeviceError(stage string, err error) {
	s.stats.ioErrors.Add(1)
	s.Bus.Publish(telemetry.DeviceErrorEvent{Device: stage, Error: err.Error()})
	s.PostControl(ControlEvent{Kind: KindDeviceError, Stage: stage, Err: err})
}

// validateStream checks a host request against the device limits without
// touching any state.
func (s *State) validateStream(cfg uvc.StreamConfig) error {
	switch cfg.Format {
	case uvc.FormatMJPEG, uvc.FormatH264:
	default:
		return fmt.Errorf("unsupported stream format %v", cfg.Format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 ||
		cfg.Width > s.cfg.MaxWidth || cfg.Height > s.cfg.MaxHeight {
		return fmt.Errorf("unsupported geometry %dx%d (limit %dx%d)",
			cfg.Width, cfg.Height, s.cfg.MaxWidth, s.cfg.MaxHeight)
	}
	if cfg.FPS <= 0 || cfg.FPS > 120 {
		return fmt.Errorf("unsupported frame rate %d", cfg.FPS)
	}
	return nil
}

// applyStream reconfigures both devices for the given session parameters
// and starts them. Callers have already validated cfg.
func (s *State) applyStream(cfg uvc.StreamConfig) error {
	rawFormat := device.FmtYUV422P
	outFormat := device.FmtJPEG
	if cfg.Format == uvc.FormatH264 {
		rawFormat = device.FmtYUV420
		outFormat = device.FmtH264
	}

	s.capMu.Lock()
	defer s.capMu.Unlock()
	s.encMu.Lock()
	defer s.encMu.Unlock()

	s.capture.Stop()
	s.encoder.Stop()

	if err := s.capture.Configure(cfg.Width, cfg.Height, rawFormat); err != nil {
		return fmt.Errorf("capture configure: %w", err)
	}
	if err := s.encoder.Configure(device.EncoderConfig{
		Width:        cfg.Width,
		Height:       cfg.Height,
		InputFormat:  rawFormat,
		OutputFormat: outFormat,
		Quality:      80,
		Bitrate:      4_000_000,
	}); err != nil {
		return fmt.Errorf("encoder configure: %w", err)
	}
	if err := s.capture.Start(); err != nil {
		return fmt.Errorf("capture start: %w", err)
	}
	if err := s.encoder.Start(); err != nil {
		s.capture.Stop()
		return fmt.Errorf("encoder start: %w", err)
	}

	s.rawFmt.Store(rawFormat)
	s.outFmt.Store(outFormat)

	s.sessionMu.Lock()
	s.video = cfg
	s.sessionMu.Unlock()
	return nil
}

// rawFormat returns the FourCC the capture device currently produces.
func (s *State) rawFormat() uint32 { return s.rawFmt.Load() }

// outFormat returns the FourCC the encoder currently emits.
func (s *State) outFormat() uint32 { return s.outFmt.Load() }

// stopDevices halts both devices.
func (s *State) stopDevices() {
	s.capMu.Lock()
	s.capture.Stop()
	s.capMu.Unlock()
	s.encMu.Lock()
	s.encoder.Stop()
	s.encMu.Unlock()
}
