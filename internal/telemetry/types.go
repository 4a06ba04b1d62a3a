// Package telemetry broadcasts pipeline observations to in-process
// subscribers (monitoring, tests, future exporters). It is strictly an
// observability plane: the pipeline's control path uses the bounded
// control queue, never this bus.
package telemetry

// Event type constants for kelindar/event.
const (
	TypeStreamState uint32 = iota + 1
	TypeFrameDropped
	TypeStatsReset
	TypeDeviceError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateEvent is published when streaming starts or stops.
type StreamStateEvent struct {
	SessionID string `json:"session_id"`
	Active    bool   `json:"active"`
	Format    string `json:"format,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	FPS       int    `json:"fps,omitempty"`
}

// Type returns the event type identifier for StreamStateEvent.
func (e StreamStateEvent) Type() uint32 { return TypeStreamState }

// FrameDroppedEvent is published whenever a stage disposes a frame under
// backpressure or after a device failure.
type FrameDroppedEvent struct {
	Stage  string `json:"stage"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
}

// Type returns the event type identifier for FrameDroppedEvent.
func (e FrameDroppedEvent) Type() uint32 { return TypeFrameDropped }

// StatsResetEvent is published after the statistics counters are zeroed.
type StatsResetEvent struct{}

// Type returns the event type identifier for StatsResetEvent.
func (e StatsResetEvent) Type() uint32 { return TypeStatsReset }

// DeviceErrorEvent is published on capture or encode device failures.
type DeviceErrorEvent struct {
	Device string `json:"device"`
	Error  string `json:"error"`
}

// Type returns the event type identifier for DeviceErrorEvent.
func (e DeviceErrorEvent) Type() uint32 { return TypeDeviceError }
