package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, Value(c))
	})
	return r
}

func TestMiddlewareGeneratesID(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(HeaderKey)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderKey, "abc-123")
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(HeaderKey))
}

func TestMiddlewareReplacesOversizedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderKey, strings.Repeat("x", maxLength+1))
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)

	_, err := uuid.Parse(w.Header().Get(HeaderKey))
	assert.NoError(t, err)
}
