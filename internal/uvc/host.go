package uvc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/logging"
)

var log = logging.GetLogger("uvc")

// Host drives a Handler the way a USB host would: start the stream, pull
// frames at the negotiated rate, return each frame after the simulated
// transfer, stop on context cancellation. It never lets a nil GetFrame
// result stall the cadence.
type Host struct {
	handler Handler
	cfg     StreamConfig

	pulls     atomic.Uint64
	delivered atomic.Uint64
	empty     atomic.Uint64
}

// NewHost creates a pull harness for the given handler and stream config.
func NewHost(handler Handler, cfg StreamConfig) *Host {
	return &Host{handler: handler, cfg: cfg}
}

// Run negotiates the stream and pulls frames until ctx is cancelled.
// The OnStart error, if any, is returned untouched.
func (h *Host) Run(ctx context.Context) error {
	if err := h.handler.OnStart(h.cfg); err != nil {
		return err
	}
	defer h.handler.OnStop()

	interval := time.Second / time.Duration(max(h.cfg.FPS, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("host streaming", "config", h.cfg.String(), "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.pulls.Add(1)
			frame := h.handler.GetFrame()
			if frame == nil {
				h.empty.Add(1)
				continue
			}
			h.delivered.Add(1)
			h.handler.ReturnFrame(frame)
		}
	}
}

// Stats returns pull counters: total pulls, frames delivered, empty pulls.
func (h *Host) Stats() (pulls, delivered, empty uint64) {
	return h.pulls.Load(), h.delivered.Load(), h.empty.Load()
}
