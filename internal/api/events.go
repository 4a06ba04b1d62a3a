package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/maohuynh-embedded/camnode/internal/telemetry"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session state changes, frame drops, statistics resets and device errors",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-state":  telemetry.StreamStateEvent{},
		"frame-dropped": telemetry.FrameDroppedEvent{},
		"stats-reset":   telemetry.StatsResetEvent{},
		"device-error":  telemetry.DeviceErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Per-connection channel; a non-blocking forward keeps a stalled
		// client from ever backing up the bus.
		eventCh := make(chan any, 32)
		forward := func(ev any) {
			select {
			case eventCh <- ev:
			default:
			}
		}

		unsubscribers := []func(){
			s.state.Bus.Subscribe(func(e telemetry.StreamStateEvent) { forward(e) }),
			s.state.Bus.Subscribe(func(e telemetry.FrameDroppedEvent) { forward(e) }),
			s.state.Bus.Subscribe(func(e telemetry.StatsResetEvent) { forward(e) }),
			s.state.Bus.Subscribe(func(e telemetry.DeviceErrorEvent) { forward(e) }),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Initial snapshot so a client knows the session state without
		// waiting for the next transition.
		sessionID, video := s.state.Session()
		snapshot := telemetry.StreamStateEvent{Active: s.state.Streaming()}
		if snapshot.Active {
			snapshot.SessionID = sessionID
			snapshot.Format = video.Format.String()
			snapshot.Width = video.Width
			snapshot.Height = video.Height
			snapshot.FPS = video.FPS
		}
		if err := send.Data(snapshot); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
