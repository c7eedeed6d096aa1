package controller

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kalyekart-order-service/internal/analytics"
)

type AnalyticsController struct {
	Aggregator *analytics.Aggregator
	Interval   time.Duration
}

func (ctl *AnalyticsController) parseRange(c *gin.Context) (analytics.Range, error) {
	return analytics.ParseRange(c.Query("range"), c.Query("from"), c.Query("to"), ctl.Aggregator.Location())
}

// GET /admin/analytics?range=daily|weekly|yearly|overall or ?from=&to=
func (ctl *AnalyticsController) Snapshot(c *gin.Context) {
	r, err := ctl.parseRange(c)
	if err != nil {
		writeError(c, err)
		return
	}

	snap, err := ctl.Aggregator.Snapshot(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GET /admin/analytics/stream pushes a "snapshot" event whenever the numbers change.
func (ctl *AnalyticsController) Stream(c *gin.Context) {
	r, err := ctl.parseRange(c)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	err = ctl.Aggregator.Stream(ctx, r, ctl.Interval, func(payload []byte) error {
		c.SSEvent("snapshot", string(payload))
		c.Writer.Flush()
		return ctx.Err()
	})
	if err != nil {
		slog.DebugContext(ctx, "analytics stream ended", "range", r.Preset, "error", err)
	}
}
