package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/telemetry"
)

// StreamStats reports open websocket streams by kind.
type StreamStats interface {
	Stats() map[string]int
}

// RegisterDebugRoutes wires operator endpoints. Nothing is registered unless
// enabled.
func RegisterDebugRoutes(router gin.IRouter, streams StreamStats, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	// GET /debug/streams lists open conversation and list streams. Every call
	// is audited since it exposes service-wide activity.
	router.GET("/debug/streams", func(c *gin.Context) {
		stats := streams.Stats()
		total := 0
		for _, n := range stats {
			total += n
		}
		emitter.Emit(c.Request.Context(), "INFO", fmt.Sprintf("stream stats read: %d open", total), requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"streams": stats, "total": total})
	})
}
