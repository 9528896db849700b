package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/pkg/middleware/requestid"
)

// InitSentry configures the global Sentry client. An empty DSN disables
// reporting and returns a no-op flush.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr forwards err to Sentry when reporting is enabled.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// GinMiddleware reports errors attached to requests that ended in a 5xx.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
			return
		}
		hub := sentry.CurrentHub().Clone()
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("method", c.Request.Method)
			scope.SetTag("route", c.FullPath())
			if id := requestid.Value(c); id != "" {
				scope.SetTag("request_id", id)
			}
			for _, ginErr := range c.Errors {
				hub.CaptureException(ginErr.Err)
			}
		})
	}
}
