// Package inspect provides optional introspection of compressed frames as
// they leave the encoder. It is a diagnostic aid: parse failures are logged
// and otherwise ignored, and the pipeline never depends on its results.
package inspect

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/maohuynh-embedded/camnode/internal/logging"
)

var log = logging.GetLogger("inspect")

// Level is a bitmask selecting which diagnostics run per frame.
type Level uint32

const (
	// Stats accumulates frame size and rate statistics.
	Stats Level = 1 << iota
	// Header parses and logs the bitstream header (JPEG dimensions,
	// H.264 NAL unit type).
	Header
	// HexHeader logs a hex dump of the first 64 bytes.
	HexHeader
	// HexFull logs a hex dump of the entire frame. Expensive.
	HexFull
	// Timing logs the inter-frame interval.
	Timing
)

// Snapshot is a point-in-time copy of accumulated statistics.
type Snapshot struct {
	Frames   uint64
	Bytes    uint64
	MinSize  int
	MaxSize  int
	AvgFPS   float64
	LastDims string
	LastNAL  string
}

// Inspector examines compressed frames according to its level mask.
type Inspector struct {
	mu      sync.Mutex
	level   Level
	frames  uint64
	bytes   uint64
	minSize int
	maxSize int
	firstTS int64
	lastTS  int64
	dims    string
	nal     string
}

// New returns an Inspector with the given level mask. A zero mask
// disables all work in Process.
func New(level Level) *Inspector {
	return &Inspector{level: level, minSize: -1}
}

// SetLevel replaces the level mask.
func (in *Inspector) SetLevel(level Level) {
	in.mu.Lock()
	in.level = level
	in.mu.Unlock()
}

// Process examines one compressed frame. ts is the capture timestamp in
// microseconds. Safe for concurrent use, though the pipeline calls it from
// a single stage.
func (in *Inspector) Process(data []byte, ts int64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.level == 0 || len(data) == 0 {
		return
	}

	if in.level&Stats != 0 {
		in.frames++
		in.bytes += uint64(len(data))
		if in.minSize < 0 || len(data) < in.minSize {
			in.minSize = len(data)
		}
		if len(data) > in.maxSize {
			in.maxSize = len(data)
		}
		if in.frames == 1 {
			in.firstTS = ts
		}
	}

	if in.level&Timing != 0 && in.lastTS != 0 {
		log.Debug("frame interval", "us", ts-in.lastTS, "size", len(data))
	}
	in.lastTS = ts

	if in.level&Header != 0 {
		in.parseHeader(data)
	}

	if in.level&HexFull != 0 {
		log.Debug("frame dump", "hex", hexDump(data, len(data)))
	} else if in.level&HexHeader != 0 {
		log.Debug("frame header dump", "hex", hexDump(data, 64))
	}
}

// Reset clears accumulated statistics. The level mask is preserved.
func (in *Inspector) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.frames = 0
	in.bytes = 0
	in.minSize = -1
	in.maxSize = 0
	in.firstTS = 0
	in.lastTS = 0
	in.dims = ""
	in.nal = ""
}

// Snapshot returns a copy of the accumulated statistics.
func (in *Inspector) Snapshot() Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	s := Snapshot{
		Frames:   in.frames,
		Bytes:    in.bytes,
		MaxSize:  in.maxSize,
		LastDims: in.dims,
		LastNAL:  in.nal,
	}
	if in.minSize >= 0 {
		s.MinSize = in.minSize
	}
	if in.frames > 1 && in.lastTS > in.firstTS {
		elapsed := float64(in.lastTS-in.firstTS) / 1e6
		s.AvgFPS = float64(in.frames-1) / elapsed
	}
	return s
}

func (in *Inspector) parseHeader(data []byte) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		if w, h, ok := jpegDimensions(data); ok {
			in.dims = fmt.Sprintf("%dx%d", w, h)
			log.Debug("jpeg frame", "width", w, "height", h, "size", len(data))
		} else {
			log.Debug("jpeg frame without SOF marker", "size", len(data))
		}
	case len(data) >= 5 && data[0] == 0 && data[1] == 0 &&
		(data[2] == 1 || (data[2] == 0 && data[3] == 1)):
		off := 3
		if data[2] == 0 {
			off = 4
		}
		nal := data[off] & 0x1F
		in.nal = nalTypeName(nal)
		log.Debug("h264 frame", "nal", in.nal, "size", len(data))
	default:
		log.Debug("unrecognized bitstream", "size", len(data))
	}
}

// jpegDimensions walks the marker segments looking for a start-of-frame.
func jpegDimensions(data []byte) (width, height int, ok bool) {
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		if i+4 > len(data) {
			return 0, 0, false
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:]))
		if marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xC8 && marker != 0xCC {
			if i+9 > len(data) {
				return 0, 0, false
			}
			height = int(binary.BigEndian.Uint16(data[i+5:]))
			width = int(binary.BigEndian.Uint16(data[i+7:]))
			return width, height, true
		}
		i += 2 + segLen
	}
	return 0, 0, false
}

func nalTypeName(t byte) string {
	switch t {
	case 1:
		return "slice"
	case 5:
		return "idr"
	case 6:
		return "sei"
	case 7:
		return "sps"
	case 8:
		return "pps"
	case 9:
		return "aud"
	default:
		return fmt.Sprintf("type-%d", t)
	}
}

func hexDump(data []byte, limit int) string {
	if limit > len(data) {
		limit = len(data)
	}
	var b strings.Builder
	for i := 0; i < limit; i++ {
		if i > 0 {
			if i%16 == 0 {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		fmt.Fprintf(&b, "%02x", data[i])
	}
	return b.String()
}
