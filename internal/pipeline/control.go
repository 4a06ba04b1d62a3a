package pipeline

import "github.com/maohuynh-embedded/camnode/internal/uvc"

// ControlKind discriminates control queue entries.
type ControlKind uint8

const (
	// KindStartStream announces a freshly negotiated session. The stream
	// stage posts it from OnStart; the control stage confirms the
	// streaming gate and logs the session parameters.
	KindStartStream ControlKind = iota + 1

	// KindStopStream asks the control stage to end the current session as
	// if the host had stopped it.
	KindStopStream

	// KindResetStats zeroes the frame counters and the inspector.
	KindResetStats

	// KindChangeFormat reconfigures the running session to a new payload
	// format, keeping geometry.
	KindChangeFormat

	// KindChangeResolution reconfigures the running session to a new
	// geometry, keeping format.
	KindChangeResolution

	// KindDeviceError reports a device failure a stage could not handle
	// locally.
	KindDeviceError
)

func (k ControlKind) String() string {
	switch k {
	case KindStartStream:
		return "start-stream"
	case KindStopStream:
		return "stop-stream"
	case KindResetStats:
		return "reset-stats"
	case KindChangeFormat:
		return "change-format"
	case KindChangeResolution:
		return "change-resolution"
	case KindDeviceError:
		return "device-error"
	default:
		return "unknown"
	}
}

// ControlEvent is one entry on the control queue. The consumer owns the
// event once received; any payload it carries is released by the consumer.
type ControlEvent struct {
	Kind   ControlKind
	Stream uvc.StreamConfig // for format and resolution changes
	Stage  string           // for device errors
	Err    error            // for device errors
}
