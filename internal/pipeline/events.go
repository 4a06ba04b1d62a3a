package pipeline

import (
	"context"
	"errors"

	"github.com/maohuynh-embedded/camnode/internal/handoff"
	"github.com/maohuynh-embedded/camnode/internal/uvc"
)

// EventStage consumes the control queue: stop requests, statistics resets,
// runtime format and resolution changes, and device error reports. It owns
// every event it receives.
type EventStage struct {
	state  *State
	stream *StreamStage
}

func NewEventStage(state *State) *EventStage {
	return &EventStage{state: state}
}

func (e *EventStage) Name() string { return "events" }

// AttachStream connects the stream stage so stop and reconfigure events
// can drive the session. Called during registry wiring, after every
// stage's Init.
func (e *EventStage) AttachStream(st *StreamStage) {
	e.stream = st
}

func (e *EventStage) Init() error {
	log.Info("Event stage ready")
	return nil
}

func (e *EventStage) Terminate() {
	// Drain so posted events do not linger across a restart.
	for {
		if _, ok := e.state.Control.TryRecv(); !ok {
			break
		}
	}
	log.Info("Event stage terminated")
}

func (e *EventStage) Run(ctx context.Context) {
	s := e.state
	for {
		if ctx.Err() != nil || s.Flags.IsSet(FlagShutdown) {
			return
		}

		ev, err := s.Control.Recv(s.cfg.RecvTimeout)
		if err != nil {
			if !errors.Is(err, handoff.ErrTimeout) {
				log.Error("Control queue receive failed", "error", err)
			}
			continue
		}
		e.handle(ev)
	}
}

func (e *EventStage) handle(ev ControlEvent) {
	s := e.state
	switch ev.Kind {
	case KindStartStream:
		// The stream stage already opened the gate in OnStart. Re-assert
		// the flag only while the session is still live; a stop may have
		// raced ahead of this event.
		if id, _ := s.Session(); id != "" {
			s.Flags.Set(FlagStreamingActive)
		}
		log.Info("Streaming start confirmed", "stream", ev.Stream.String())

	case KindStopStream:
		if e.stream != nil {
			e.stream.stopSession("control request")
		}

	case KindResetStats:
		s.ResetStats()

	case KindChangeFormat, KindChangeResolution:
		e.reconfigure(ev.Stream)

	case KindDeviceError:
		log.Error("Device error reported", "stage", ev.Stage, "error", ev.Err)

	default:
		log.Warn("Unknown control event", "kind", uint8(ev.Kind))
	}
}

// reconfigure applies new session parameters to a running stream. The
// request is ignored when no session is active; a host renegotiation is
// the only way to start one.
func (e *EventStage) reconfigure(cfg uvc.StreamConfig) {
	s := e.state
	if !s.Flags.IsSet(FlagStreamingActive) {
		log.Warn("Reconfigure ignored, no active session", "request", cfg.String())
		return
	}
	if err := s.validateStream(cfg); err != nil {
		log.Warn("Reconfigure rejected", "request", cfg.String(), "error", err)
		return
	}
	if err := s.applyStream(cfg); err != nil {
		s.reportDeviceError("events", err)
		if e.stream != nil {
			e.stream.stopSession("reconfigure failed")
		}
		return
	}
	log.Info("Session reconfigured", "stream", cfg.String())
}
