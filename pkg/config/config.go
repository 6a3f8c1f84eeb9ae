package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ExpansionMode controls how template expansion reacts to conflicts.
type ExpansionMode string

const (
	ExpansionStrict ExpansionMode = "STRICT"
	ExpansionSkip   ExpansionMode = "SKIP"
	ExpansionForce  ExpansionMode = "FORCE"
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
	Catalog  CatalogConfig
	Events   EventsConfig
	Sweep    SweepConfig
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

// EngineConfig carries the scheduling invariants every session must satisfy.
type EngineConfig struct {
	TimeZone             string
	Location             *time.Location
	MinuteGranularity    int
	SessionMinMinutes    int
	SessionMaxMinutes    int
	MakeupWindowDays     int
	SingleOpTimeout      time.Duration
	BulkOpTimeout        time.Duration
	ExpansionDefaultMode ExpansionMode
}

// CatalogConfig tunes the read-through cache over academic reference data.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// EventsConfig controls the outbound lifecycle event sinks.
type EventsConfig struct {
	RedisStreamEnabled bool
	RedisStream        string
	RedisStreamMaxLen  int64
}

// SweepConfig governs the completion sweeper promoting past sessions.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
	Workers  int
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

	engine, err := loadEngine(v)
	if err != nil {
		return nil, err
	}
	cfg.Engine = engine

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		RedisStreamEnabled: v.GetBool("EVENTS_REDIS_STREAM_ENABLED"),
		RedisStream:        v.GetString("EVENTS_REDIS_STREAM"),
		RedisStreamMaxLen:  v.GetInt64("EVENTS_REDIS_STREAM_MAXLEN"),
	}

	cfg.Sweep = SweepConfig{
		Enabled:  v.GetBool("SWEEP_ENABLED"),
		Interval: parseDuration(v.GetString("SWEEP_INTERVAL"), 5*time.Minute),
		Workers:  v.GetInt("SWEEP_WORKERS"),
	}

	return cfg, nil
}

func loadEngine(v *viper.Viper) (EngineConfig, error) {
	engine := EngineConfig{
		TimeZone:          v.GetString("TIME_ZONE"),
		MinuteGranularity: v.GetInt("MINUTE_GRANULARITY"),
		SessionMinMinutes: v.GetInt("SESSION_MIN_MINUTES"),
		SessionMaxMinutes: v.GetInt("SESSION_MAX_MINUTES"),
		MakeupWindowDays:  v.GetInt("MAKEUP_WINDOW_DAYS"),
		SingleOpTimeout:   parseDuration(v.GetString("SINGLE_OP_TIMEOUT"), 5*time.Second),
		BulkOpTimeout:     parseDuration(v.GetString("BULK_OP_TIMEOUT"), 60*time.Second),
	}

	switch engine.MinuteGranularity {
	case 5, 10, 15, 30:
	default:
		return engine, fmt.Errorf("MINUTE_GRANULARITY must be one of 5, 10, 15, 30 (got %d)", engine.MinuteGranularity)
	}
	if engine.SessionMinMinutes <= 0 || engine.SessionMaxMinutes < engine.SessionMinMinutes {
		return engine, fmt.Errorf("session duration bounds invalid: min=%d max=%d", engine.SessionMinMinutes, engine.SessionMaxMinutes)
	}
	if engine.MakeupWindowDays < 0 {
		return engine, fmt.Errorf("MAKEUP_WINDOW_DAYS must be >= 0 (got %d)", engine.MakeupWindowDays)
	}

	loc, err := time.LoadLocation(engine.TimeZone)
	if err != nil {
		return engine, fmt.Errorf("TIME_ZONE %q: %w", engine.TimeZone, err)
	}
	engine.Location = loc

	mode := ExpansionMode(strings.ToUpper(v.GetString("EXPANSION_DEFAULT_MODE")))
	switch mode {
	case ExpansionStrict, ExpansionSkip:
		engine.ExpansionDefaultMode = mode
	default:
		// FORCE is never accepted as a default.
		return engine, fmt.Errorf("EXPANSION_DEFAULT_MODE must be STRICT or SKIP (got %q)", mode)
	}

	return engine, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
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

	v.SetDefault("TIME_ZONE", "Europe/Paris")
	v.SetDefault("MINUTE_GRANULARITY", 15)
	v.SetDefault("SESSION_MIN_MINUTES", 30)
	v.SetDefault("SESSION_MAX_MINUTES", 240)
	v.SetDefault("MAKEUP_WINDOW_DAYS", 30)
	v.SetDefault("SINGLE_OP_TIMEOUT", "5s")
	v.SetDefault("BULK_OP_TIMEOUT", "60s")
	v.SetDefault("EXPANSION_DEFAULT_MODE", "STRICT")

	v.SetDefault("CATALOG_CACHE_TTL", "5m")

	v.SetDefault("EVENTS_REDIS_STREAM_ENABLED", false)
	v.SetDefault("EVENTS_REDIS_STREAM", "timetable.events")
	v.SetDefault("EVENTS_REDIS_STREAM_MAXLEN", 10000)

	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_WORKERS", 1)
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
