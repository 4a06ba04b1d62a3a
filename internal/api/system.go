package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// GadgetStatusResponse reports the gadget unit's systemd state.
type GadgetStatusResponse struct {
	Body struct {
		Unit   string `json:"unit"`
		Status string `json:"status" example:"active" doc:"systemd ActiveState"`
	}
}

// GadgetActionResponse acknowledges a gadget unit action.
type GadgetActionResponse struct {
	Body struct {
		Unit    string `json:"unit"`
		Action  string `json:"action"`
		Success bool   `json:"success"`
	}
}

// registerSystemRoutes registers control over the USB gadget composition
// unit. Absent a systemd manager (development hosts, tests) the routes
// are not registered.
func (s *Server) registerSystemRoutes() {
	if s.options.SystemdManager == nil {
		return
	}

	unit := s.options.GadgetServiceName
	if unit == "" {
		unit = "camnode-gadget.service"
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-gadget-status",
		Method:      http.MethodGet,
		Path:        "/api/system/gadget/status",
		Summary:     "Gadget Unit Status",
		Description: "Get the USB gadget composition unit status",
		Tags:        []string{"system"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*GadgetStatusResponse, error) {
		status, err := s.options.SystemdManager.ServiceStatus(ctx, unit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get unit status", err)
		}
		resp := &GadgetStatusResponse{}
		resp.Body.Unit = unit
		resp.Body.Status = status
		return resp, nil
	})

	type unitAction struct {
		id, path, summary, action string
		run                       func(context.Context, string) error
	}
	for _, a := range []unitAction{
		{"restart-gadget", "/api/system/gadget/restart", "Restart Gadget Unit", "restart", s.options.SystemdManager.RestartService},
		{"start-gadget", "/api/system/gadget/start", "Start Gadget Unit", "start", s.options.SystemdManager.StartService},
		{"stop-gadget", "/api/system/gadget/stop", "Stop Gadget Unit", "stop", s.options.SystemdManager.StopService},
	} {
		run := a.run
		action := a.action
		huma.Register(s.api, huma.Operation{
			OperationID: a.id,
			Method:      http.MethodPost,
			Path:        a.path,
			Summary:     a.summary,
			Description: a.summary + " via systemd",
			Tags:        []string{"system"},
			Errors:      []int{401, 500},
			Security:    withAuth(),
		}, func(ctx context.Context, _ *struct{}) (*GadgetActionResponse, error) {
			if err := run(ctx, unit); err != nil {
				return nil, huma.Error500InternalServerError("Failed to "+action+" unit", err)
			}
			resp := &GadgetActionResponse{}
			resp.Body.Unit = unit
			resp.Body.Action = action
			resp.Body.Success = true
			return resp, nil
		})
	}
}
