// Package frame defines the pipeline's frame buffers and the budgeted
// arena they are allocated from. Every buffer is consumed by exactly one
// stage; the ownership tag decides whether consumption means freeing heap
// memory or returning a slot to the capture device's ring.
package frame

import "fmt"

// Ownership discriminates who owns a buffer's backing memory.
type Ownership uint8

const (
	// OwnerHeap means the pipeline owns the memory. The last stage that
	// consumes the buffer frees it through the arena.
	OwnerHeap Ownership = iota

	// OwnerDeviceSlot means the memory belongs to one of the capture
	// device's fixed ring slots. It must be returned to the device exactly
	// once and never freed.
	OwnerDeviceSlot
)

func (o Ownership) String() string {
	switch o {
	case OwnerHeap:
		return "heap"
	case OwnerDeviceSlot:
		return "device-slot"
	default:
		return fmt.Sprintf("ownership(%d)", o)
	}
}

// Buffer is a single frame travelling through the pipeline.
type Buffer struct {
	// Data is the backing memory at full capacity; the payload is
	// Data[:Len]. For device-slot buffers this aliases the device's ring
	// memory and must not be written.
	Data []byte

	// Len is the logical payload size in bytes.
	Len int

	// Timestamp is the capture time in monotonic microseconds.
	Timestamp int64

	// Seq is a monotonically increasing sequence number assigned at
	// capture. It is the only cross-queue ordering evidence.
	Seq uint64

	// Format is an opaque FourCC tag set by the producing stage.
	Format uint32

	owner   Ownership
	slot    int
	retired bool
}

// Ownership returns the buffer's ownership kind.
func (b *Buffer) Ownership() Ownership { return b.owner }

// SlotIndex returns the capture-device ring index for device-slot buffers,
// -1 otherwise.
func (b *Buffer) SlotIndex() int {
	if b.owner != OwnerDeviceSlot {
		return -1
	}
	return b.slot
}

// Payload returns the logical payload slice.
func (b *Buffer) Payload() []byte { return b.Data[:b.Len] }

// Capacity returns the allocated capacity in bytes.
func (b *Buffer) Capacity() int { return len(b.Data) }

// Retired reports whether the buffer has already been consumed.
func (b *Buffer) Retired() bool { return b.retired }

// Retire marks the buffer as consumed. A second retirement means the
// ownership tracking is corrupted (double free, or a device slot about to
// be returned twice and starve the ring), so it is fatal.
func (b *Buffer) Retire() {
	if b.retired {
		panic(fmt.Sprintf("frame: double release of %s buffer seq=%d slot=%d",
			b.owner, b.Seq, b.slot))
	}
	b.retired = true
}
