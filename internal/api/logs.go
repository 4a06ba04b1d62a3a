package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/maohuynh-embedded/camnode/internal/logging"
)

// LogsResponse returns the recent log entries from the ring buffer.
type LogsResponse struct {
	Body struct {
		Entries []logging.LogEntry `json:"entries"`
	}
}

// registerLogRoutes registers the log retrieval endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Get recent log entries from the in-memory ring buffer, oldest first",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*LogsResponse, error) {
		resp := &LogsResponse{}
		if buffer := logging.GetBuffer(); buffer != nil {
			resp.Body.Entries = buffer.ReadAll()
		}
		if resp.Body.Entries == nil {
			resp.Body.Entries = []logging.LogEntry{}
		}
		return resp, nil
	})
}
