package inspect

import (
	"testing"
)

// minimal JPEG with an SOF0 segment declaring 640x480
func sampleJPEG() []byte {
	return []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00, // APP0, len 4
		0xFF, 0xC0, 0x00, 0x11, // SOF0, len 17
		0x08,       // precision
		0x01, 0xE0, // height 480
		0x02, 0x80, // width 640
		0x03,
		0xFF, 0xD9, // EOI
	}
}

func sampleH264() []byte {
	return []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1F}
}

func TestJPEGDimensions(t *testing.T) {
	w, h, ok := jpegDimensions(sampleJPEG())
	if !ok {
		t.Fatal("expected SOF marker to be found")
	}
	if w != 640 || h != 480 {
		t.Fatalf("got %dx%d, want 640x480", w, h)
	}
}

func TestProcessRecordsFormats(t *testing.T) {
	in := New(Stats | Header)

	in.Process(sampleJPEG(), 1_000_000)
	if got := in.Snapshot().LastDims; got != "640x480" {
		t.Fatalf("LastDims = %q, want 640x480", got)
	}

	in.Process(sampleH264(), 1_033_333)
	if got := in.Snapshot().LastNAL; got != "sps" {
		t.Fatalf("LastNAL = %q, want sps", got)
	}
}

func TestSnapshotStats(t *testing.T) {
	in := New(Stats)
	// two frames 100ms apart: 10 fps average
	in.Process(make([]byte, 100), 0)
	in.Process(make([]byte, 300), 100_000)

	s := in.Snapshot()
	if s.Frames != 2 {
		t.Fatalf("Frames = %d, want 2", s.Frames)
	}
	if s.Bytes != 400 {
		t.Fatalf("Bytes = %d, want 400", s.Bytes)
	}
	if s.MinSize != 100 || s.MaxSize != 300 {
		t.Fatalf("sizes = %d/%d, want 100/300", s.MinSize, s.MaxSize)
	}
	if s.AvgFPS < 9.9 || s.AvgFPS > 10.1 {
		t.Fatalf("AvgFPS = %f, want ~10", s.AvgFPS)
	}
}

func TestResetClearsStatsKeepsLevel(t *testing.T) {
	in := New(Stats)
	in.Process(make([]byte, 10), 0)
	in.Reset()

	if s := in.Snapshot(); s.Frames != 0 || s.Bytes != 0 {
		t.Fatalf("snapshot after reset = %+v, want zeroes", s)
	}

	in.Process(make([]byte, 10), 0)
	if s := in.Snapshot(); s.Frames != 1 {
		t.Fatal("inspector should still accumulate after reset")
	}
}

func TestZeroLevelDoesNothing(t *testing.T) {
	in := New(0)
	in.Process(make([]byte, 10), 0)
	if s := in.Snapshot(); s.Frames != 0 {
		t.Fatal("zero level must not accumulate stats")
	}
}

func TestTruncatedFramesDoNotPanic(t *testing.T) {
	in := New(Stats | Header | HexHeader)
	for _, data := range [][]byte{nil, {0xFF}, {0xFF, 0xD8}, {0x00, 0x00, 0x01}} {
		in.Process(data, 0)
	}
}
