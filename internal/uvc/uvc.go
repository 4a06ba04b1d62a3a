// Package uvc defines the callback contract between the pipeline and the
// USB video-class gadget stack. The gadget is pull-based: it negotiates a
// stream with OnStart, then fetches frames one at a time with GetFrame and
// hands each back through ReturnFrame when the USB transfer completes.
// The pipeline's stream stage implements Handler; Host is a pull-cadence
// harness standing in for the gadget stack in tests and simulations.
package uvc

import "fmt"

// Format is the negotiated stream payload format.
type Format int

const (
	FormatMJPEG Format = iota
	FormatH264
)

func (f Format) String() string {
	switch f {
	case FormatMJPEG:
		return "MJPEG"
	case FormatH264:
		return "H264"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// StreamConfig is the geometry and rate requested by the USB host.
type StreamConfig struct {
	Format Format
	Width  int
	Height int
	FPS    int
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%s %dx%d@%dfps", c.Format, c.Width, c.Height, c.FPS)
}

// FrameRef is one compressed frame handed to the gadget. Data remains
// owned by the pipeline until the matching ReturnFrame call.
type FrameRef struct {
	Data      []byte
	Timestamp int64
	Seq       uint64
}

// Handler is implemented by the pipeline's stream stage.
//
// The gadget stack calls OnStart when the USB host selects a format.
// A non-nil error rejects the negotiation and must leave pipeline state
// untouched. After a successful OnStart the stack calls GetFrame whenever
// it needs payload; nil means "no frame right now" and the stack retries
// at its own cadence. Every non-nil frame is eventually handed back via
// ReturnFrame. OnStop ends the session.
type Handler interface {
	OnStart(cfg StreamConfig) error
	GetFrame() *FrameRef
	ReturnFrame(f *FrameRef)
	OnStop()
}
