// Package middleware holds gin middleware shared by the routes.
package middleware

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/repository"
)

const idempotencyHeader = "Idempotency-Key"

type storedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the recorded response for a repeated command token.
// Clients retrying a command over a flaky connection get the original
// outcome instead of a duplicate execution.
func Idempotency(cache *repository.SessionCache, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" || cache == nil {
			c.Next()
			return
		}

		if stored, err := cache.GetIdempotency(c.Request.Context(), key); err == nil && stored != "" {
			var resp storedResponse
			if err := json.Unmarshal([]byte(stored), &resp); err == nil {
				c.Header("X-Idempotent-Replay", "true")
				c.Data(resp.Status, "application/json", []byte(resp.Body))
				c.Abort()
				return
			}
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		// Only successful outcomes are replayable; a failed command may
		// legitimately be retried for real.
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		data, err := json.Marshal(storedResponse{Status: status, Body: recorder.buf.String()})
		if err != nil {
			return
		}
		if err := cache.SetIdempotency(c.Request.Context(), key, string(data), ttl); err != nil {
			logger.Warn("Failed to store idempotency record", zap.Error(err))
		}
	}
}
