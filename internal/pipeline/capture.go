package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/device"
	"github.com/maohuynh-embedded/camnode/internal/frame"
	"github.com/maohuynh-embedded/camnode/internal/handoff"
)

// CaptureStage pulls filled slots from the sensor ring and hands them to
// the encoder over the raw queue. The slot memory stays owned by the
// device; a slot that cannot be queued is requeued immediately so the ring
// never starves on a slow consumer.
type CaptureStage struct {
	state *State
}

func NewCaptureStage(state *State) *CaptureStage {
	return &CaptureStage{state: state}
}

func (c *CaptureStage) Name() string { return "capture" }

func (c *CaptureStage) Init() error {
	c.state.Flags.Set(FlagCaptureReady)
	log.Info("Capture stage ready")
	return nil
}

func (c *CaptureStage) Terminate() {
	c.state.Flags.Clear(FlagCaptureReady)
	c.state.capMu.Lock()
	c.state.capture.Stop()
	c.state.capMu.Unlock()
	log.Info("Capture stage terminated")
}

func (c *CaptureStage) Run(ctx context.Context) {
	s := c.state
	s.Flags.WaitAll(FlagCaptureReady, s.cfg.RecvTimeout)
	for {
		if ctx.Err() != nil || s.Flags.IsSet(FlagShutdown) {
			return
		}

		// Park until a host session opens the gate. The bounded wait keeps
		// shutdown responsive.
		if !s.Flags.IsSet(FlagStreamingActive) {
			s.Flags.WaitAny(FlagStreamingActive|FlagShutdown, s.cfg.RecvTimeout)
			continue
		}

		s.capMu.Lock()
		slot, err := s.capture.DequeueSlot(s.cfg.RecvTimeout)
		s.capMu.Unlock()

		if err != nil {
			switch {
			case errors.Is(err, device.ErrNoSlot):
				// empty poll
			case errors.Is(err, device.ErrNotStreaming):
				// gate closed between the check and the call
			default:
				s.reportDeviceError("capture", err)
				time.Sleep(s.cfg.RecvTimeout)
			}
			continue
		}

		buf := frame.WrapSlot(slot.Index, slot.Data, slot.Used)
		buf.Seq = s.nextSeq()
		buf.Timestamp = time.Now().UnixMicro()
		buf.Format = s.rawFormat()
		s.stats.captured.Add(1)

		if err := s.Raw.TrySend(buf); err != nil {
			if errors.Is(err, handoff.ErrFull) {
				s.drop(buf, "capture", "raw queue full")
			} else {
				s.drop(buf, "capture", err.Error())
			}
		}
	}
}
