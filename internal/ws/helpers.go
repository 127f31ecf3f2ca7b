package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"dm-service/internal/observability"
)

const routingKeyPrefix = "ws_events."

func newConnID() string {
	return uuid.NewString()
}

func deviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// publishWSEvent reports a stream lifecycle event on the event bus and in
// the websocket metrics.
func publishWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(string(info.Kind), event)

	var duration int64
	if event != "ws_connect" {
		duration = info.age().Milliseconds()
	}
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        info.Kind,
			"resource_id": info.Room,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, routingKeyPrefix+string(info.Kind), event, payload, headers)
}
