package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/gamegate/service"
)

// OpsHandlers contains HTTP handlers for operator endpoints
type OpsHandlers struct {
	stats   *service.Stats
	started time.Time
}

// NewOpsHandlers creates new operator handlers
func NewOpsHandlers(stats *service.Stats) *OpsHandlers {
	return &OpsHandlers{
		stats:   stats,
		started: time.Now(),
	}
}

// Health reports that the process is up
func (h *OpsHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns the server counters
func (h *OpsHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"operator":       c.GetString("operator"),
		"stats":          h.stats.Snapshot(),
	})
}
