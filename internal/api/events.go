package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/mixstudio/mixdeck/internal/events"
)

// registerEventRoutes registers the native Huma SSE endpoint.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for worker lifecycle, worker output, config reloads, and update progress",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"worker-started":  events.WorkerStartedEvent{},
		"worker-stopped":  events.WorkerStoppedEvent{},
		"worker-crashed":  events.WorkerCrashedEvent{},
		"worker-output":   events.WorkerOutputEvent{},
		"config-reloaded": events.ConfigReloadedEvent{},
		"update-state":    events.UpdateStateEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.WorkerStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.WorkerStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.WorkerCrashedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.WorkerOutputEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.UpdateStateEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial snapshot so clients know the worker state on connect
		info := s.supervisor.Status()
		if err := send.Data(events.WorkerOutputEvent{
			Stream:    "system",
			Line:      "event stream connected, worker state: " + string(info.State),
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
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
