package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sun2004ny/bada-builder-sub003/internal/config"
	"github.com/sun2004ny/bada-builder-sub003/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints, disabled outside dev.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, cfg config.Config) {
	if !cfg.DebugRoutes {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The poll and match defaults the client sync engine falls back to.
	router.GET("/debug/sync-defaults", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"list_poll_interval":      cfg.ListPollInterval.String(),
			"log_poll_interval":       cfg.LogPollInterval.String(),
			"optimistic_match_window": cfg.OptimisticMatchWindow.String(),
		})
	})
}
