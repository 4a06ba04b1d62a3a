package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/logging"
)

var simLog = logging.GetLogger("device")

// SimCapture is a simulated capture device backed by a fixed ring of
// buffer slots. It fills slots with a moving test pattern at a configured
// frame interval and enforces the same ownership rules a V4L2 driver
// would: a dequeued slot is unavailable until requeued, and requeuing a
// slot that is not outstanding is an error.
type SimCapture struct {
	mu          sync.Mutex
	slots       [][]byte
	outstanding []bool
	width       int
	height      int
	format      uint32
	frameSize   int
	streaming   bool
	counter     uint64
	interval    time.Duration
	nextFrame   time.Time

	failNext int

	acquires uint64
	releases uint64

	maxWidth  int
	maxHeight int
}

// SimCaptureOption configures a SimCapture.
type SimCaptureOption func(*SimCapture)

// WithFrameInterval sets the simulated sensor frame pacing. Zero means a
// frame is available on every dequeue.
func WithFrameInterval(d time.Duration) SimCaptureOption {
	return func(c *SimCapture) { c.interval = d }
}

// WithMaxGeometry caps the resolutions Configure accepts, for negotiation
// rejection tests.
func WithMaxGeometry(width, height int) SimCaptureOption {
	return func(c *SimCapture) { c.maxWidth, c.maxHeight = width, height }
}

// NewSimCapture creates a simulated capture device with the given number
// of ring slots.
func NewSimCapture(slotCount int, opts ...SimCaptureOption) *SimCapture {
	c := &SimCapture{
		slots:       make([][]byte, slotCount),
		outstanding: make([]bool, slotCount),
		maxWidth:    1920,
		maxHeight:   1080,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure implements Capture.
func (c *SimCapture) Configure(width, height int, pixelFormat uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if width <= 0 || height <= 0 || width > c.maxWidth || height > c.maxHeight {
		return fmt.Errorf("%w: %dx%d", ErrNotSupported, width, height)
	}

	c.width = width
	c.height = height
	c.format = pixelFormat
	c.frameSize = frameSizeFor(width, height, pixelFormat)
	for i := range c.slots {
		c.slots[i] = make([]byte, c.frameSize)
		c.outstanding[i] = false
	}
	return nil
}

// Start implements Capture.
func (c *SimCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frameSize == 0 {
		return fmt.Errorf("%w: not configured", ErrIO)
	}
	c.streaming = true
	c.nextFrame = time.Now()
	return nil
}

// Stop implements Capture.
func (c *SimCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	return nil
}

// DequeueSlot implements Capture. It honors the frame interval, so a
// caller polling faster than the sensor rate sees ErrNoSlot.
func (c *SimCapture) DequeueSlot(timeout time.Duration) (Slot, error) {
	deadline := time.Now().Add(timeout)

	for {
		c.mu.Lock()
		if !c.streaming {
			c.mu.Unlock()
			return Slot{}, ErrNotStreaming
		}
		if c.failNext > 0 {
			c.failNext--
			c.mu.Unlock()
			return Slot{}, ErrIO
		}
		if wait := time.Until(c.nextFrame); wait <= 0 {
			idx := c.freeSlotLocked()
			if idx < 0 {
				// Ring starved: every slot is still held downstream.
				c.mu.Unlock()
				return Slot{}, ErrNoSlot
			}
			c.fillPatternLocked(idx)
			c.outstanding[idx] = true
			c.acquires++
			if c.interval > 0 {
				c.nextFrame = c.nextFrame.Add(c.interval)
			}
			slot := Slot{Index: idx, Data: c.slots[idx], Used: c.frameSize}
			c.mu.Unlock()
			return slot, nil
		}
		c.mu.Unlock()

		if time.Now().After(deadline) {
			return Slot{}, ErrNoSlot
		}
		time.Sleep(time.Millisecond)
	}
}

// RequeueSlot implements Capture.
func (c *SimCapture) RequeueSlot(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.slots) {
		return fmt.Errorf("%w: slot index %d out of range", ErrIO, index)
	}
	if !c.outstanding[index] {
		return fmt.Errorf("%w: slot %d not outstanding", ErrIO, index)
	}
	c.outstanding[index] = false
	c.releases++
	return nil
}

// FailNextDequeues makes the next n DequeueSlot calls fail with ErrIO.
func (c *SimCapture) FailNextDequeues(n int) {
	c.mu.Lock()
	c.failNext = n
	c.mu.Unlock()
}

// Counts returns the number of slots handed out and returned. A healthy
// shutdown ends with both equal.
func (c *SimCapture) Counts() (acquires, releases uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires, c.releases
}

// Outstanding returns the number of slots currently held by the pipeline.
func (c *SimCapture) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, o := range c.outstanding {
		if o {
			n++
		}
	}
	return n
}

func (c *SimCapture) freeSlotLocked() int {
	for i, o := range c.outstanding {
		if !o {
			return i
		}
	}
	return -1
}

// fillPatternLocked writes a frame-varying gradient so consumers can tell
// frames apart.
func (c *SimCapture) fillPatternLocked(idx int) {
	c.counter++
	buf := c.slots[idx]
	phase := byte(c.counter)
	for i := range buf {
		buf[i] = byte(i) + phase
	}
	simLog.Debug("filled slot", "slot", idx, "frame", c.counter)
}

func frameSizeFor(width, height int, pixelFormat uint32) int {
	switch pixelFormat {
	case FmtGrey:
		return width * height
	case FmtYUV420:
		return width * height * 3 / 2
	case FmtRGB565, FmtYUV422P:
		return width * height * 2
	default:
		return width * height * 2
	}
}
