package device

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// jpegSOI/jpegEOI frame the simulated compressed payload so the inspector
// recognizes it as MJPEG.
var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF, 0xE0}
	jpegEOI = []byte{0xFF, 0xD9}
)

// h264AUD is an access unit delimiter NAL used to mark simulated H.264 output.
var h264AUD = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xF0}

// SimEncoder is a simulated compression engine. "Compression" is an 8:1
// decimation of the input wrapped in format markers, enough to exercise
// buffer sizing, format tagging and the inspector without a real codec.
type SimEncoder struct {
	mu        sync.Mutex
	cfg       EncoderConfig
	streaming bool
	pending   []byte
	out       []byte

	failSubmit   int
	failRetrieve int
	submits      uint64
}

// NewSimEncoder creates a simulated encoder.
func NewSimEncoder() *SimEncoder {
	return &SimEncoder{}
}

// Configure implements Encoder.
func (e *SimEncoder) Configure(cfg EncoderConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg.OutputFormat != FmtJPEG && cfg.OutputFormat != FmtH264 {
		return fmt.Errorf("%w: output format %#x", ErrNotSupported, cfg.OutputFormat)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrNotSupported, cfg.Width, cfg.Height)
	}
	e.cfg = cfg
	return nil
}

// Start implements Encoder.
func (e *SimEncoder) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.Width == 0 {
		return fmt.Errorf("%w: not configured", ErrIO)
	}
	e.streaming = true
	return nil
}

// Stop implements Encoder.
func (e *SimEncoder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.streaming = false
	e.pending = nil
	return nil
}

// Submit implements Encoder.
func (e *SimEncoder) Submit(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.streaming {
		return ErrNotStreaming
	}
	if e.failSubmit > 0 {
		e.failSubmit--
		return ErrIO
	}
	e.pending = data
	e.submits++
	return nil
}

// Retrieve implements Encoder. The returned slice is the encoder's
// internal output buffer; it is only valid until the next Submit.
func (e *SimEncoder) Retrieve() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.streaming {
		return nil, ErrNotStreaming
	}
	if e.failRetrieve > 0 {
		e.failRetrieve--
		return nil, ErrIO
	}
	if e.pending == nil {
		return nil, fmt.Errorf("%w: no submitted input", ErrIO)
	}

	compressed := decimate(e.pending, 8)
	e.pending = nil

	switch e.cfg.OutputFormat {
	case FmtH264:
		e.out = e.out[:0]
		e.out = append(e.out, h264AUD...)
		e.out = append(e.out, compressed...)
	default:
		e.out = e.out[:0]
		e.out = append(e.out, jpegSOI...)
		var dims [4]byte
		binary.BigEndian.PutUint16(dims[0:2], uint16(e.cfg.Width))
		binary.BigEndian.PutUint16(dims[2:4], uint16(e.cfg.Height))
		e.out = append(e.out, dims[:]...)
		e.out = append(e.out, compressed...)
		e.out = append(e.out, jpegEOI...)
	}
	return e.out, nil
}

// FailNextSubmits makes the next n Submit calls fail with ErrIO.
func (e *SimEncoder) FailNextSubmits(n int) {
	e.mu.Lock()
	e.failSubmit = n
	e.mu.Unlock()
}

// FailNextRetrieves makes the next n Retrieve calls fail with ErrIO.
func (e *SimEncoder) FailNextRetrieves(n int) {
	e.mu.Lock()
	e.failRetrieve = n
	e.mu.Unlock()
}

// Submits returns the number of frames accepted so far.
func (e *SimEncoder) Submits() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submits
}

func decimate(in []byte, factor int) []byte {
	out := make([]byte, 0, len(in)/factor+1)
	for i := 0; i < len(in); i += factor {
		out = append(out, in[i])
	}
	return out
}
