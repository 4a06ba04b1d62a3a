package frame

import (
	"errors"
	"testing"
)

func TestAllocWithinBudget(t *testing.T) {
	a := NewArena(1024)

	b, err := a.Alloc(512)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if b.Ownership() != OwnerHeap {
		t.Errorf("ownership = %v, want heap", b.Ownership())
	}
	if b.Capacity() != 512 {
		t.Errorf("capacity = %d, want 512", b.Capacity())
	}
	if a.LiveBytes() != 512 {
		t.Errorf("live = %d, want 512", a.LiveBytes())
	}
}

func TestAllocBudgetExhausted(t *testing.T) {
	a := NewArena(100)

	if _, err := a.Alloc(64); err != nil {
		t.Fatal(err)
	}
	_, err := a.Alloc(64)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Alloc past budget = %v, want ErrOutOfMemory", err)
	}
}

func TestFreeReturnsBudget(t *testing.T) {
	a := NewArena(100)

	b, err := a.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	a.Free(b)

	if a.LiveBytes() != 0 {
		t.Errorf("live = %d after free, want 0", a.LiveBytes())
	}
	if _, err := a.Alloc(100); err != nil {
		t.Errorf("Alloc after free failed: %v", err)
	}
	if a.HighWater() != 100 {
		t.Errorf("high water = %d, want 100", a.HighWater())
	}
}

func TestDoubleFreePanics(t *testing.T) {
	a := NewArena(100)
	b, err := a.Alloc(10)
	if err != nil {
		t.Fatal(err)
	}
	a.Free(b)

	defer func() {
		if recover() == nil {
			t.Error("second Free did not panic")
		}
	}()
	b.Retire()
}

func TestFreeDeviceSlotIsIgnored(t *testing.T) {
	a := NewArena(100)
	slot := WrapSlot(2, make([]byte, 64), 32)

	a.Free(slot)

	if slot.Retired() {
		t.Error("Free retired a device-slot buffer")
	}
	if a.LiveBytes() != 0 {
		t.Errorf("live = %d, want 0", a.LiveBytes())
	}
}

func TestResizePreservesContents(t *testing.T) {
	a := NewArena(1024)
	b, err := a.Alloc(4)
	if err != nil {
		t.Fatal(err)
	}
	copy(b.Data, []byte{1, 2, 3, 4})
	b.Len = 4

	if err := a.Resize(b, 8); err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	for i, want := range []byte{1, 2, 3, 4} {
		if b.Data[i] != want {
			t.Errorf("Data[%d] = %d, want %d", i, b.Data[i], want)
		}
	}
	if a.LiveBytes() != 8 {
		t.Errorf("live = %d, want 8", a.LiveBytes())
	}

	if err := a.Resize(b, 2); err != nil {
		t.Fatalf("shrink failed: %v", err)
	}
	if b.Len != 2 {
		t.Errorf("Len = %d after shrink, want 2", b.Len)
	}
	if a.LiveBytes() != 2 {
		t.Errorf("live = %d, want 2", a.LiveBytes())
	}
}

func TestResizePastBudget(t *testing.T) {
	a := NewArena(16)
	b, err := a.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Resize(b, 32); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Resize past budget = %v, want ErrOutOfMemory", err)
	}
	if b.Capacity() != 8 {
		t.Errorf("failed resize changed capacity to %d", b.Capacity())
	}
}

func TestWrapSlot(t *testing.T) {
	data := make([]byte, 128)
	b := WrapSlot(3, data, 100)

	if b.Ownership() != OwnerDeviceSlot {
		t.Errorf("ownership = %v, want device-slot", b.Ownership())
	}
	if b.SlotIndex() != 3 {
		t.Errorf("slot = %d, want 3", b.SlotIndex())
	}
	if b.Len != 100 {
		t.Errorf("Len = %d, want 100", b.Len)
	}

	heap := &Buffer{Data: data, owner: OwnerHeap, slot: -1}
	if heap.SlotIndex() != -1 {
		t.Errorf("heap SlotIndex = %d, want -1", heap.SlotIndex())
	}
}
