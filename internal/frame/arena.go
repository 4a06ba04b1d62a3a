package frame

import (
	"errors"
	"sync"

	"github.com/maohuynh-embedded/camnode/internal/logging"
)

// ErrOutOfMemory is returned when an allocation would exceed the arena
// budget. It is always recoverable: the caller drops the affected frame
// and counts it.
var ErrOutOfMemory = errors.New("frame: arena budget exhausted")

var log = logging.GetLogger("frame")

// Arena allocates heap-owned frame buffers against a fixed byte budget
// sized for sustained frame-rate throughput. Exceeding the budget fails
// the allocation, never the process.
type Arena struct {
	mu        sync.Mutex
	budget    int
	live      int
	highWater int
}

// NewArena creates an arena with the given byte budget.
func NewArena(budget int) *Arena {
	return &Arena{budget: budget}
}

// Alloc returns a zero-length heap-owned buffer with the given capacity,
// or ErrOutOfMemory if the budget cannot cover it.
func (a *Arena) Alloc(capacity int) (*Buffer, error) {
	a.mu.Lock()
	if a.live+capacity > a.budget {
		a.mu.Unlock()
		log.Debug("allocation rejected", "capacity", capacity, "live", a.live, "budget", a.budget)
		return nil, ErrOutOfMemory
	}
	a.live += capacity
	if a.live > a.highWater {
		a.highWater = a.live
	}
	a.mu.Unlock()

	return &Buffer{
		Data:  make([]byte, capacity),
		owner: OwnerHeap,
		slot:  -1,
	}, nil
}

// Free releases a heap-owned buffer back to the budget. Calling it on a
// device-slot buffer is an ownership mistake: it is logged and ignored,
// the slot still belongs to the device. Freeing twice panics.
func (a *Arena) Free(b *Buffer) {
	if b == nil {
		return
	}
	if b.owner != OwnerHeap {
		log.Error("Free called on device-slot buffer, ignoring", "seq", b.Seq, "slot", b.slot)
		return
	}
	b.Retire()

	a.mu.Lock()
	a.live -= len(b.Data)
	a.mu.Unlock()
	b.Data = nil
}

// Resize grows or shrinks a heap-owned buffer, preserving contents up to
// min(old, new) length.
func (a *Arena) Resize(b *Buffer, newCapacity int) error {
	if b.owner != OwnerHeap {
		return errors.New("frame: cannot resize device-slot buffer")
	}
	delta := newCapacity - len(b.Data)
	if delta == 0 {
		return nil
	}

	a.mu.Lock()
	if a.live+delta > a.budget {
		a.mu.Unlock()
		return ErrOutOfMemory
	}
	a.live += delta
	if a.live > a.highWater {
		a.highWater = a.live
	}
	a.mu.Unlock()

	data := make([]byte, newCapacity)
	copy(data, b.Data)
	b.Data = data
	if b.Len > newCapacity {
		b.Len = newCapacity
	}
	return nil
}

// WrapSlot builds a device-slot buffer referencing capture ring memory.
// The arena does no accounting for it; the device owns the bytes.
func WrapSlot(index int, data []byte, used int) *Buffer {
	return &Buffer{
		Data:  data,
		Len:   used,
		owner: OwnerDeviceSlot,
		slot:  index,
	}
}

// LiveBytes returns the bytes currently allocated.
func (a *Arena) LiveBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// HighWater returns the peak allocation since creation.
func (a *Arena) HighWater() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highWater
}
