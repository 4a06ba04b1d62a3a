package pipeline

import (
	"github.com/maohuynh-embedded/camnode/internal/registry"
)

// Ordinals into the stage table, for registry.Lookup.
const (
	OrdinalCapture = iota
	OrdinalEncode
	OrdinalStream
	OrdinalEvents
	OrdinalMonitor
)

// Pipeline bundles the shared state with its stages and their registry.
type Pipeline struct {
	State    *State
	Capture  *CaptureStage
	Encode   *EncodeStage
	Stream   *StreamStage
	Events   *EventStage
	Monitor  *MonitorStage
	Registry *registry.Registry
}

// New assembles the stage table around state. Table order is bring-up
// order: producers before consumers so no stage ever waits on a peer that
// does not exist yet. The priority and core hints mirror the embedded
// deployment this pipeline is modeled on; the Go scheduler treats them as
// documentation.
func New(state *State) *Pipeline {
	p := &Pipeline{
		State:   state,
		Capture: NewCaptureStage(state),
		Encode:  NewEncodeStage(state),
		Stream:  NewStreamStage(state),
		Events:  NewEventStage(state),
		Monitor: NewMonitorStage(state),
	}

	p.Registry = registry.New([]registry.Descriptor{
		{Stage: p.Capture, Priority: 6, StackHint: 8192, Core: 1},
		{Stage: p.Encode, Priority: 5, StackHint: 8192, Core: 1},
		{Stage: p.Stream, Priority: 5, StackHint: 4096, Core: 0},
		{Stage: p.Events, Priority: 4, StackHint: 4096, Core: 0},
		{Stage: p.Monitor, Priority: 1, StackHint: 4096, Core: 0},
	})

	p.Registry.OnWired(func() error {
		p.Events.AttachStream(p.Stream)
		return nil
	})

	return p
}

// Shutdown sets the shutdown flag so run loops wind down on their own,
// then drives the registry's bounded teardown.
func (p *Pipeline) Shutdown() {
	p.State.Flags.Set(FlagShutdown)
	p.Registry.Shutdown(10 * p.State.cfg.RecvTimeout)
}
