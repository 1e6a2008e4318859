package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics records latency and status per route template. Scrapes of skipPaths
// are not counted, and requests that match no route share one label so
// arbitrary URLs cannot blow up series cardinality.
func Metrics(observer requestObserver, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skip[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		start := time.Now()
		c.Next()
		observer.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
