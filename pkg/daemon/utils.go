package daemon

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ginLogger logs each request through logger. Event streams are logged when
// they close, with their total duration.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handlers may rewrite the URL, keep the one we were called with.
		path := c.Request.URL.Path
		start := time.Now()

		c.Next()

		took := time.Since(start)
		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"route":   c.FullPath(),
			"status":  status,
			"latency": took.Round(time.Millisecond).String(),
			"bytes":   max(c.Writer.Size(), 0),
		})

		switch {
		case len(c.Errors) > 0:
			msg := c.Errors.ByType(gin.ErrorTypePrivate).String()
			if status >= http.StatusInternalServerError {
				entry.Error(msg)
			} else {
				entry.Warn(msg)
			}
		case c.Writer.Header().Get("Content-Type") == "text/event-stream":
			entry.Debugf("event stream closed after %s", took.Round(time.Second))
		case status >= http.StatusBadRequest:
			entry.Warn("request failed")
		default:
			entry.Debug("request served")
		}
	}
}
