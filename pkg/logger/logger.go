package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/jobshop-api/pkg/config"
	"github.com/noah-isme/jobshop-api/pkg/middleware/requestid"
)

// New builds the service logger from configuration.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Log.Level, zapcore.InfoLevel))
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build(zap.Fields(zap.String("service", "jobshop-api")))
}

// NewCLI returns a console logger writing to stderr. Verbose lowers the level to debug.
func NewCLI(verbose bool) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Encoding = "console"
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.DisableStacktrace = true
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return zapCfg.Build()
}

func parseLevel(raw string, fallback zapcore.Level) zapcore.Level {
	if raw == "" {
		return fallback
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return level
}

// GinMiddleware logs one line per request. Server errors are logged at error level.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
