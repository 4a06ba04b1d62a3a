package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/maohuynh-embedded/camnode/internal/pipeline"
)

// StatusData is the pipeline status snapshot returned by the API.
type StatusData struct {
	Streaming bool   `json:"streaming" doc:"Whether a host session is active"`
	SessionID string `json:"session_id,omitempty" doc:"Active session identifier"`

	Format string `json:"format,omitempty" doc:"Negotiated stream format"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	FPS    int    `json:"fps,omitempty"`

	Stats pipeline.Stats `json:"stats"`

	RawQueueDepth     int `json:"raw_queue_depth"`
	EncodedQueueDepth int `json:"encoded_queue_depth"`
	ControlQueueDepth int `json:"control_queue_depth"`

	ArenaLiveBytes int `json:"arena_live_bytes"`
	ArenaHighWater int `json:"arena_high_water"`
}

// StatusResponse wraps StatusData.
type StatusResponse struct {
	Body StatusData
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

func messageResponse(msg string) *MessageResponse {
	resp := &MessageResponse{}
	resp.Body.Message = msg
	return resp
}

// registerStatusRoutes registers the status and statistics endpoints.
func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Pipeline Status",
		Description: "Get the current session, frame counters, queue depths and memory usage",
		Tags:        []string{"pipeline"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*StatusResponse, error) {
		st := s.state
		sessionID, video := st.Session()
		streaming := st.Streaming()

		data := StatusData{
			Streaming:         streaming,
			Stats:             st.Stats(),
			RawQueueDepth:     st.Raw.Len(),
			EncodedQueueDepth: st.Encoded.Len(),
			ControlQueueDepth: st.Control.Len(),
			ArenaLiveBytes:    st.Arena.LiveBytes(),
			ArenaHighWater:    st.Arena.HighWater(),
		}
		if streaming {
			data.SessionID = sessionID
			data.Format = video.Format.String()
			data.Width = video.Width
			data.Height = video.Height
			data.FPS = video.FPS
		}
		return &StatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-stats",
		Method:      http.MethodPost,
		Path:        "/api/stats/reset",
		Summary:     "Reset Statistics",
		Description: "Zero the frame counters. The streaming session is not affected.",
		Tags:        []string{"pipeline"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		s.state.PostControl(pipeline.ControlEvent{Kind: pipeline.KindResetStats})
		return messageResponse("Statistics reset requested"), nil
	})
}
