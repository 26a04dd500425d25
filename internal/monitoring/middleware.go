package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection. Paths are
// recorded by route template so webview ids do not explode label
// cardinality.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures an operation and hands the duration to record.
type Timer struct {
	start  time.Time
	record func(time.Duration)
}

// NewTimer starts a timer.
func NewTimer(record func(time.Duration)) *Timer {
	return &Timer{start: time.Now(), record: record}
}

// Stop records the elapsed time.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if t.record != nil {
		t.record(d)
	}
	return d
}
