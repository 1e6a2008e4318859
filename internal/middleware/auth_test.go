package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/service"
)

func newAuthRouter(t *testing.T, roles ...models.UserRole) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(validator.New(), nil, service.AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "jobshop-api",
	})
	router := gin.New()
	router.GET("/runs", JWT(auth), RBAC(roles...), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		c.String(http.StatusOK, claims.(*models.JWTClaims).UserID)
	})
	return router, auth
}

func issue(t *testing.T, auth *service.AuthService, role models.UserRole) string {
	t.Helper()
	token, err := auth.IssueToken(models.IssueTokenRequest{UserID: "planner-1", Role: role})
	require.NoError(t, err)
	return token.AccessToken
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	router, _ := newAuthRouter(t, models.RoleAdmin)

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/runs", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRBACAllowsListedRoles(t *testing.T) {
	router, auth := newAuthRouter(t, models.RoleAdmin, models.RolePlanner)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, auth, models.RolePlanner))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "planner-1", rec.Body.String())
}

func TestRBACForbidsOtherRoles(t *testing.T) {
	router, auth := newAuthRouter(t, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, auth, models.RoleViewer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/runs", nil)

	RBAC(models.RoleAdmin)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWTPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, auth := newAuthRouter(t)
	router := gin.New()
	router.GET("/", OptionalJWT(auth), func(c *gin.Context) {
		_, exists := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"authenticated": exists})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, auth, models.RoleViewer))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
