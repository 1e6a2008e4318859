package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey   = "response_meta"
	requestStartKey   = "request_started_at"
	cacheHitKey       = "cache_hit"
	processingTimeKey = "processing_time_ms"
)

// WithResponseMeta stamps the request start so handlers can report solve latency
// and cache provenance in the envelope meta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit marks whether the result came from the result cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := ensureMeta(c)
	if meta == nil {
		return
	}
	meta[cacheHitKey] = hit
}

// ExtractMeta returns the collected metadata with the elapsed time filled in.
// Nil means nothing was recorded for this request.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	if started, ok := c.Get(requestStartKey); ok {
		if at, ok := started.(time.Time); ok {
			meta[processingTimeKey] = time.Since(at).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
