package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(cfg Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(cfg))
	r.GET("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAllowedOriginIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Origin", "https://planner.example.com")
	w := httptest.NewRecorder()
	newRouter(Config{AllowedOrigins: []string{"https://planner.example.com/"}}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://planner.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestUnknownOriginPreflightRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/runs", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	newRouter(Config{AllowedOrigins: []string{"https://planner.example.com"}}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenConfigPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/runs", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	newRouter(Config{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}
