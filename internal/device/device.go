// Package device defines the narrow interfaces through which the pipeline
// talks to the image sensor/ISP capture driver and the hardware
// compression engine, plus simulated implementations of both used by tests
// and the simulate command. Real drivers (V4L2 or vendor SDKs) plug in
// behind the same interfaces.
package device

import (
	"errors"
	"time"
)

var (
	// ErrNotSupported indicates a configuration the device cannot satisfy
	// (unsupported resolution or pixel format).
	ErrNotSupported = errors.New("device: configuration not supported")

	// ErrIO indicates a transient device-level failure. Callers recover by
	// retrying (capture) or aborting the affected frame (encode).
	ErrIO = errors.New("device: io error")

	// ErrNoSlot means no filled buffer slot became available within the
	// timeout. Not an error condition, just an empty poll.
	ErrNoSlot = errors.New("device: no slot available")

	// ErrNotStreaming indicates a data-path call before Start.
	ErrNotStreaming = errors.New("device: not streaming")
)

// FourCC builds a V4L2-style pixel format tag.
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Pixel formats the pipeline knows about. The tags are opaque to the
// stages; only the devices and the inspector interpret them.
var (
	FmtRGB565  = FourCC('R', 'G', 'B', 'P')
	FmtYUV422P = FourCC('4', '2', '2', 'P')
	FmtYUV420  = FourCC('Y', 'U', '1', '2')
	FmtGrey    = FourCC('G', 'R', 'E', 'Y')
	FmtJPEG    = FourCC('J', 'P', 'E', 'G')
	FmtH264    = FourCC('H', '2', '6', '4')
)

// Slot is a reference to one filled buffer in the capture device's
// fixed-size ring. The memory stays owned by the device; the holder must
// return it via RequeueSlot exactly once.
type Slot struct {
	Index int
	Data  []byte
	Used  int
}

// Capture is the image sensor / ISP collaborator.
type Capture interface {
	// Configure sets the capture geometry and pixel format. Must be called
	// before Start.
	Configure(width, height int, pixelFormat uint32) error

	// Start arms the buffer ring and begins filling slots.
	Start() error

	// Stop halts capture. Outstanding slots remain owed to the device.
	Stop() error

	// DequeueSlot returns the next filled slot, waiting up to timeout.
	// The call is bounded by the driver contract.
	DequeueSlot(timeout time.Duration) (Slot, error)

	// RequeueSlot returns a slot to the ring so the device can refill it.
	RequeueSlot(index int) error
}

// EncoderConfig describes one compression session.
type EncoderConfig struct {
	Width        int
	Height       int
	InputFormat  uint32
	OutputFormat uint32
	Quality      int // JPEG quality, 1..100
	Bitrate      int // H.264 target bitrate, bits/s
}

// Encoder is the hardware compression engine collaborator. Submit and
// Retrieve operate as a pair per frame; the buffer returned by Retrieve is
// owned by the device and only valid until the next Submit, so callers
// copy out.
type Encoder interface {
	Configure(cfg EncoderConfig) error
	Start() error
	Stop() error
	Submit(data []byte) error
	Retrieve() ([]byte, error)
}
