package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	defaultMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	// Browsers need these exposed to read export filenames and correlate logs.
	defaultExposed = []string{"Content-Disposition", "Location", "X-Request-ID"}
)

// Config controls which browser origins may call the API. An empty origin list allows any origin.
type Config struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = defaultMethods
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = defaultHeaders
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = defaultExposed
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 10 * time.Minute
	}
	return c
}

// New builds the CORS middleware. Preflight requests are answered with 204.
func New(cfg Config) gin.HandlerFunc {
	cfg = cfg.withDefaults()
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case len(origins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case allowed(origins, origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}
		h.Set("Access-Control-Expose-Headers", exposed)

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func allowed(origins map[string]struct{}, origin string) bool {
	_, ok := origins[strings.TrimRight(origin, "/")]
	return ok
}
