// Package models defines request and response shapes for the HTTP API.
package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Build platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Sidecar status models
type SidecarStatusData struct {
	State      string     `json:"state" example:"running" doc:"Worker state: idle, running, error"`
	Running    bool       `json:"running" example:"true" doc:"Whether the worker process is alive"`
	PID        int        `json:"pid,omitempty" example:"41523" doc:"Worker process ID when running"`
	StartedAt  *time.Time `json:"started_at,omitempty" doc:"When the worker was spawned"`
	Generation uint64     `json:"generation,omitempty" example:"3" doc:"Spawn generation counter"`
	LastError  string     `json:"last_error,omitempty" doc:"Sticky error from the most recent failure"`
}

type SidecarStatusResponse struct {
	Body SidecarStatusData
}

// Sidecar lifecycle models
type SidecarActionData struct {
	Message string `json:"message" example:"Worker started" doc:"Status message"`
	Running bool   `json:"running" example:"true" doc:"Whether the worker is running after the action"`
}

type SidecarActionResponse struct {
	Body SidecarActionData
}

// Sidecar health proxy models
type SidecarHealthData struct {
	Result string `json:"result" example:"worker health check: ok" doc:"Health check summary from the worker"`
}

type SidecarHealthResponse struct {
	Body SidecarHealthData
}

// Prompt models
type PromptRequestData struct {
	Prompt string `json:"prompt" minLength:"1" doc:"Prompt text forwarded to the worker"`
}

type PromptRequest struct {
	Body PromptRequestData
}

type PromptData struct {
	Response string `json:"response" doc:"Raw text response from the worker"`
}

type PromptResponse struct {
	Body PromptData
}
