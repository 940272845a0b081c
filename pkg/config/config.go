package config

import (
	"errors"
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
	Engine   EngineConfig
	Exports  ExportsConfig
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
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig tunes the metrics aggregation engine.
type EngineConfig struct {
	AtRiskThreshold   float64
	QueryTimeout      time.Duration
	DefaultCacheTTL   time.Duration
	CacheTTLOverrides map[string]time.Duration
	WeekStartDay      time.Weekday
	CacheEnabled      bool
	ErrorLogLimit     int
}

// ExportsConfig gates CSV/PDF export endpoints.
type ExportsConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	threshold := v.GetFloat64("ENGINE_AT_RISK_THRESHOLD")
	if threshold <= 0 || threshold > 100 {
		threshold = 70
	}
	cfg.Engine = EngineConfig{
		AtRiskThreshold:   threshold,
		QueryTimeout:      parseDuration(v.GetString("ENGINE_QUERY_TIMEOUT"), 10*time.Second),
		DefaultCacheTTL:   parseDuration(v.GetString("ENGINE_DEFAULT_CACHE_TTL"), time.Hour),
		CacheTTLOverrides: parseTTLOverrides(v.GetString("ENGINE_CACHE_TTL_OVERRIDES")),
		WeekStartDay:      parseWeekday(v.GetString("TIME_BUCKET_WEEK_START_DAY"), time.Monday),
		CacheEnabled:      v.GetBool("ENGINE_CACHE_ENABLED"),
		ErrorLogLimit:     v.GetInt("ENGINE_ERROR_LOG_LIMIT"),
	}

	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mind_analytics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_AT_RISK_THRESHOLD", 70.0)
	v.SetDefault("ENGINE_QUERY_TIMEOUT", "10s")
	v.SetDefault("ENGINE_DEFAULT_CACHE_TTL", "1h")
	v.SetDefault("ENGINE_CACHE_TTL_OVERRIDES", "")
	v.SetDefault("TIME_BUCKET_WEEK_START_DAY", "MONDAY")
	v.SetDefault("ENGINE_CACHE_ENABLED", true)
	v.SetDefault("ENGINE_ERROR_LOG_LIMIT", 50)

	v.SetDefault("ENABLE_EXPORTS", true)
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

// parseTTLOverrides reads a "metric_id=duration" comma separated map,
// e.g. "telemetry.error_log=30s,grades.overall_mean=15m".
func parseTTLOverrides(raw string) map[string]time.Duration {
	overrides := make(map[string]time.Duration)
	for _, pair := range splitAndTrim(raw) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || d <= 0 {
			continue
		}
		overrides[strings.TrimSpace(key)] = d
	}
	return overrides
}

func parseWeekday(raw string, fallback time.Weekday) time.Weekday {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUNDAY":
		return time.Sunday
	case "MONDAY":
		return time.Monday
	case "TUESDAY":
		return time.Tuesday
	case "WEDNESDAY":
		return time.Wednesday
	case "THURSDAY":
		return time.Thursday
	case "FRIDAY":
		return time.Friday
	case "SATURDAY":
		return time.Saturday
	default:
		return fallback
	}
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
