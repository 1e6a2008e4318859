package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type observation struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, observation{method: method, path: path, status: status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs, "/metrics"))
	r.GET("/runs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	assert.Equal(t, []observation{
		{method: http.MethodGet, path: "/runs/:id", status: http.StatusNotFound},
		{method: http.MethodGet, path: unmatchedRoute, status: http.StatusNotFound},
	}, obs.seen)
}
