package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	JobShop  JobShopConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// JobShopConfig tunes the scheduling pipeline and its surrounding services.
type JobShopConfig struct {
	TardinessWeight   int64
	MaxSolveTime      time.Duration
	NodeLimit         int64
	MaxTasks          int
	CacheEnabled      bool
	CacheTTL          time.Duration
	PersistRuns       bool
	WorkerConcurrency int
	WorkerRetries     int
	AuthEnabled       bool
	SampleDataPath    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	weight := v.GetInt64("JOBSHOP_TARDINESS_WEIGHT")
	if weight < 0 {
		weight = 1
	}
	maxTasks := v.GetInt("JOBSHOP_MAX_TASKS")
	if maxTasks <= 0 {
		maxTasks = 200
	}
	cfg.JobShop = JobShopConfig{
		TardinessWeight:   weight,
		MaxSolveTime:      parseDuration(v.GetString("JOBSHOP_MAX_SOLVE_TIME"), 30*time.Second),
		NodeLimit:         v.GetInt64("JOBSHOP_NODE_LIMIT"),
		MaxTasks:          maxTasks,
		CacheEnabled:      v.GetBool("JOBSHOP_CACHE_ENABLED"),
		CacheTTL:          parseDuration(v.GetString("JOBSHOP_CACHE_TTL"), time.Hour),
		PersistRuns:       v.GetBool("JOBSHOP_PERSIST_RUNS"),
		WorkerConcurrency: v.GetInt("JOBSHOP_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("JOBSHOP_WORKER_RETRIES"),
		AuthEnabled:       v.GetBool("JOBSHOP_AUTH_ENABLED"),
		SampleDataPath:    v.GetString("JOBSHOP_SAMPLE_DATA"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "jobshop")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "jobshop-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("JOBSHOP_TARDINESS_WEIGHT", 1)
	v.SetDefault("JOBSHOP_MAX_SOLVE_TIME", "30s")
	v.SetDefault("JOBSHOP_NODE_LIMIT", 0)
	v.SetDefault("JOBSHOP_MAX_TASKS", 200)
	v.SetDefault("JOBSHOP_CACHE_ENABLED", false)
	v.SetDefault("JOBSHOP_CACHE_TTL", "1h")
	v.SetDefault("JOBSHOP_PERSIST_RUNS", false)
	v.SetDefault("JOBSHOP_WORKER_CONCURRENCY", 2)
	v.SetDefault("JOBSHOP_WORKER_RETRIES", 3)
	v.SetDefault("JOBSHOP_AUTH_ENABLED", false)
	v.SetDefault("JOBSHOP_SAMPLE_DATA", "data/sample_jobs.csv")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
