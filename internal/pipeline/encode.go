package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/device"
	"github.com/maohuynh-embedded/camnode/internal/frame"
	"github.com/maohuynh-embedded/camnode/internal/handoff"
)

// EncodeStage drains the raw queue, runs each frame through the hardware
// encoder, and forwards the compressed result on the encoded queue. The
// raw buffer goes back to the capture ring as soon as Submit accepts it;
// the compressed copy lives in the arena until the stream stage releases
// it.
type EncodeStage struct {
	state *State
}

func NewEncodeStage(state *State) *EncodeStage {
	return &EncodeStage{state: state}
}

func (e *EncodeStage) Name() string { return "encode" }

func (e *EncodeStage) Init() error {
	e.state.Flags.Set(FlagEncoderReady)
	log.Info("Encode stage ready")
	return nil
}

func (e *EncodeStage) Terminate() {
	s := e.state
	s.Flags.Clear(FlagEncoderReady)
	s.encMu.Lock()
	s.encoder.Stop()
	s.encMu.Unlock()

	// Drain anything the stream stage will no longer collect.
	for {
		b, ok := s.Raw.TryRecv()
		if !ok {
			break
		}
		s.release(b)
	}
	log.Info("Encode stage terminated")
}

func (e *EncodeStage) Run(ctx context.Context) {
	s := e.state
	s.Flags.WaitAll(FlagEncoderReady, s.cfg.RecvTimeout)
	for {
		if ctx.Err() != nil || s.Flags.IsSet(FlagShutdown) {
			return
		}

		raw, err := s.Raw.Recv(s.cfg.RecvTimeout)
		if err != nil {
			if !errors.Is(err, handoff.ErrTimeout) {
				log.Error("Raw queue receive failed", "error", err)
			}
			continue
		}

		seq := raw.Seq
		ts := raw.Timestamp

		s.encMu.Lock()
		submitErr := s.encoder.Submit(raw.Payload())
		if submitErr != nil {
			s.encMu.Unlock()
			s.release(raw)
			s.reportDeviceError("encode", submitErr)
			continue
		}
		out, retErr := s.encoder.Retrieve()
		s.encMu.Unlock()

		// The encoder has consumed the raw bytes; the slot can refill.
		s.release(raw)

		if retErr != nil {
			s.reportDeviceError("encode", retErr)
			continue
		}

		enc, allocErr := s.Arena.Alloc(len(out))
		if allocErr != nil {
			s.stats.dropped.Add(1)
			log.Warn("Arena exhausted, frame dropped", "seq", seq, "size", len(out))
			continue
		}
		enc.Len = copy(enc.Data, out)
		enc.Seq = seq
		enc.Timestamp = ts
		enc.Format = s.outFormat()
		s.stats.encoded.Add(1)

		s.Inspector.Process(enc.Payload(), ts)

		if sendErr := s.Encoded.TrySend(enc); sendErr != nil {
			// Slow or absent host. Prefer the fresh frame: drop the oldest
			// queued one and retry once.
			if stale, ok := s.Encoded.TryRecv(); ok {
				s.drop(stale, "encode", "superseded by newer frame")
			}
			if retryErr := s.Encoded.TrySend(enc); retryErr != nil {
				s.drop(enc, "encode", "encoded queue full")
			}
		}
	}
}

// encodeOne is the synchronous path used by the stream stage's pull-through
// mode: capture, encode and copy out a single frame inside one call. It
// returns nil when no slot is available within the poll bound.
func (s *State) encodeOne() *frame.Buffer {
	s.capMu.Lock()
	slot, err := s.capture.DequeueSlot(s.cfg.RecvTimeout)
	s.capMu.Unlock()
	if err != nil {
		if !errors.Is(err, device.ErrNoSlot) && !errors.Is(err, device.ErrNotStreaming) {
			s.reportDeviceError("capture", err)
		}
		return nil
	}

	raw := frame.WrapSlot(slot.Index, slot.Data, slot.Used)
	raw.Seq = s.nextSeq()
	raw.Timestamp = time.Now().UnixMicro()
	raw.Format = s.rawFormat()
	seq, ts := raw.Seq, raw.Timestamp
	s.stats.captured.Add(1)

	s.encMu.Lock()
	submitErr := s.encoder.Submit(raw.Payload())
	var out []byte
	var retErr error
	if submitErr == nil {
		out, retErr = s.encoder.Retrieve()
	}
	s.encMu.Unlock()

	s.release(raw)

	if submitErr != nil {
		s.reportDeviceError("encode", submitErr)
		return nil
	}
	if retErr != nil {
		s.reportDeviceError("encode", retErr)
		return nil
	}

	enc, allocErr := s.Arena.Alloc(len(out))
	if allocErr != nil {
		s.stats.dropped.Add(1)
		return nil
	}
	enc.Len = copy(enc.Data, out)
	enc.Seq = seq
	enc.Timestamp = ts
	enc.Format = s.outFormat()
	s.stats.encoded.Add(1)
	s.Inspector.Process(enc.Payload(), enc.Timestamp)
	return enc
}
