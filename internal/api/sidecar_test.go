package api

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mixstudio/mixdeck/internal/sidecar"
)

func TestMapSidecarError(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantStatus int
	}{
		{"not running maps to conflict", sidecar.ErrCodeNotRunning, http.StatusConflict},
		{"network maps to bad gateway", sidecar.ErrCodeNetwork, http.StatusBadGateway},
		{"protocol maps to bad gateway", sidecar.ErrCodeProtocol, http.StatusBadGateway},
		{"spawn failure maps to internal error", sidecar.ErrCodeSpawnFailed, http.StatusInternalServerError},
		{"abnormal exit maps to internal error", sidecar.ErrCodeAbnormalExit, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapSidecarError(&sidecar.Error{Code: tt.code, Message: "boom"})

			var statusErr huma.StatusError
			if !asStatusError(err, &statusErr) {
				t.Fatalf("expected a huma status error, got %T", err)
			}
			if statusErr.GetStatus() != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, statusErr.GetStatus())
			}
		})
	}
}

func asStatusError(err error, target *huma.StatusError) bool {
	se, ok := err.(huma.StatusError)
	if ok {
		*target = se
	}
	return ok
}

func TestSidecarStatusConversion(t *testing.T) {
	supervisor := sidecar.NewSupervisor(sidecar.Options{Name: "true"})
	defer supervisor.Close()

	server := &Server{supervisor: supervisor}

	data := server.sidecarStatus()
	if data.State != "idle" {
		t.Errorf("Expected idle state, got '%s'", data.State)
	}
	if data.Running {
		t.Error("Expected running=false for idle supervisor")
	}
	if data.StartedAt != nil {
		t.Error("Expected no started_at for idle supervisor")
	}
	if data.PID != 0 {
		t.Errorf("Expected zero PID for idle supervisor, got %d", data.PID)
	}
}
