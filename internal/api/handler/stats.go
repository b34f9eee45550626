package handler

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
)

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Stats reports live matchmaking numbers.
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	depth, err := h.Store.QueueDepth(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "state store unavailable"})
		return
	}
	pairs, err := h.Store.PairCount(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "state store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queue_depth":        depth,
		"open_pairs":         pairs,
		"registered_clients": h.Relay.ClientCount(),
	})
}

// Metrics serves the Prometheus exposition.
func (h *Handler) Metrics(c *gin.Context) {
	metrics.WritePrometheus(c.Writer, true)
}
