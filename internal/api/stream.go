package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/maohuynh-embedded/camnode/internal/pipeline"
	"github.com/maohuynh-embedded/camnode/internal/uvc"
)

// StreamConfigRequest carries a runtime session change. Omitted fields
// keep their current value.
type StreamConfigRequest struct {
	Body struct {
		Format string `json:"format,omitempty" enum:"MJPEG,H264" doc:"Stream payload format"`
		Width  int    `json:"width,omitempty" minimum:"0" doc:"Frame width in pixels"`
		Height int    `json:"height,omitempty" minimum:"0" doc:"Frame height in pixels"`
		FPS    int    `json:"fps,omitempty" minimum:"0" maximum:"120" doc:"Frame rate"`
	}
}

// registerStreamRoutes registers the session control endpoints.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodPost,
		Path:        "/api/stream/stop",
		Summary:     "Stop Stream",
		Description: "End the active host session as if the host had stopped it",
		Tags:        []string{"stream"},
		Errors:      []int{401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		if !s.state.Streaming() {
			return nil, huma.Error409Conflict("No active session")
		}
		s.state.PostControl(pipeline.ControlEvent{Kind: pipeline.KindStopStream})
		return messageResponse("Stream stop requested"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-stream-config",
		Method:      http.MethodPut,
		Path:        "/api/stream/config",
		Summary:     "Update Stream Config",
		Description: "Change format, geometry or frame rate of the running session. Requires an active session.",
		Tags:        []string{"stream"},
		Errors:      []int{400, 401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *StreamConfigRequest) (*MessageResponse, error) {
		if !s.state.Streaming() {
			return nil, huma.Error409Conflict("No active session")
		}

		_, cfg := s.state.Session()
		kind := pipeline.KindChangeResolution

		switch input.Body.Format {
		case "":
		case "MJPEG":
			cfg.Format = uvc.FormatMJPEG
			kind = pipeline.KindChangeFormat
		case "H264":
			cfg.Format = uvc.FormatH264
			kind = pipeline.KindChangeFormat
		default:
			return nil, huma.Error400BadRequest("Unknown format: " + input.Body.Format)
		}
		if input.Body.Width > 0 {
			cfg.Width = input.Body.Width
		}
		if input.Body.Height > 0 {
			cfg.Height = input.Body.Height
		}
		if input.Body.FPS > 0 {
			cfg.FPS = input.Body.FPS
		}

		s.state.PostControl(pipeline.ControlEvent{Kind: kind, Stream: cfg})
		return messageResponse("Reconfigure requested: " + cfg.String()), nil
	})
}
