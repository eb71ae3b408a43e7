package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mixstudio/mixdeck/internal/api/models"
	"github.com/mixstudio/mixdeck/internal/metrics"
	"github.com/mixstudio/mixdeck/internal/sidecar"
)

// registerSidecarRoutes registers worker lifecycle and control endpoints.
func (s *Server) registerSidecarRoutes() {
	// Worker status
	huma.Register(s.api, huma.Operation{
		OperationID: "get-sidecar-status",
		Method:      http.MethodGet,
		Path:        "/api/sidecar",
		Summary:     "Worker Status",
		Description: "Get the current state of the supervised worker process",
		Tags:        []string{"sidecar"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SidecarStatusResponse, error) {
		return &models.SidecarStatusResponse{Body: s.sidecarStatus()}, nil
	})

	// Start worker
	huma.Register(s.api, huma.Operation{
		OperationID: "start-sidecar",
		Method:      http.MethodPost,
		Path:        "/api/sidecar/start",
		Summary:     "Start Worker",
		Description: "Spawn the worker process and wait for it to become ready. Idempotent when already running.",
		Tags:        []string{"sidecar"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.SidecarActionResponse, error) {
		if err := s.supervisor.Start(ctx); err != nil {
			metrics.IncControlRequests("start", "error")
			return nil, mapSidecarError(err)
		}
		metrics.IncControlRequests("start", "ok")
		return &models.SidecarActionResponse{
			Body: models.SidecarActionData{
				Message: "Worker started",
				Running: s.supervisor.IsRunning(),
			},
		}, nil
	})

	// Stop worker
	huma.Register(s.api, huma.Operation{
		OperationID: "stop-sidecar",
		Method:      http.MethodPost,
		Path:        "/api/sidecar/stop",
		Summary:     "Stop Worker",
		Description: "Terminate the worker process. Idempotent when not running.",
		Tags:        []string{"sidecar"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SidecarActionResponse, error) {
		if err := s.supervisor.Stop(); err != nil {
			metrics.IncControlRequests("stop", "error")
			return nil, mapSidecarError(err)
		}
		metrics.IncControlRequests("stop", "ok")
		return &models.SidecarActionResponse{
			Body: models.SidecarActionData{
				Message: "Worker stopped",
				Running: s.supervisor.IsRunning(),
			},
		}, nil
	})

	// Proxy the worker's own health endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "sidecar-health",
		Method:      http.MethodGet,
		Path:        "/api/sidecar/health",
		Summary:     "Worker Health",
		Description: "Query the worker's health endpoint through the control client",
		Tags:        []string{"sidecar"},
		Errors:      []int{401, 409, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.SidecarHealthResponse, error) {
		result, err := s.client.HealthCheck(ctx)
		if err != nil {
			metrics.IncControlRequests("health", "error")
			return nil, mapSidecarError(err)
		}
		metrics.IncControlRequests("health", "ok")
		return &models.SidecarHealthResponse{
			Body: models.SidecarHealthData{Result: result},
		}, nil
	})

	// Forward a prompt to the worker
	huma.Register(s.api, huma.Operation{
		OperationID: "send-prompt",
		Method:      http.MethodPost,
		Path:        "/api/prompt",
		Summary:     "Send Prompt",
		Description: "Forward a prompt to the worker and return its raw text response",
		Tags:        []string{"sidecar"},
		Errors:      []int{401, 409, 422, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PromptRequest) (*models.PromptResponse, error) {
		result, err := s.client.SendPrompt(ctx, input.Body.Prompt)
		if err != nil {
			metrics.IncControlRequests("prompt", "error")
			return nil, mapSidecarError(err)
		}
		metrics.IncControlRequests("prompt", "ok")
		return &models.PromptResponse{
			Body: models.PromptData{Response: result},
		}, nil
	})
}

func (s *Server) sidecarStatus() models.SidecarStatusData {
	info := s.supervisor.Status()
	data := models.SidecarStatusData{
		State:      string(info.State),
		Running:    info.State == sidecar.StateRunning,
		PID:        info.PID,
		Generation: info.Generation,
		LastError:  info.LastError,
	}
	if !info.StartedAt.IsZero() {
		startedAt := info.StartedAt.UTC().Truncate(time.Millisecond)
		data.StartedAt = &startedAt
	}
	return data
}

// mapSidecarError converts supervisor and client errors to Huma HTTP errors.
func mapSidecarError(err error) error {
	var workerErr *sidecar.Error
	if errors.As(err, &workerErr) {
		switch workerErr.Code {
		case sidecar.ErrCodeNotRunning:
			return huma.Error409Conflict(workerErr.Message)
		case sidecar.ErrCodeNetwork, sidecar.ErrCodeProtocol:
			return huma.Error502BadGateway(workerErr.Error())
		default:
			return huma.Error500InternalServerError(workerErr.Error())
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
