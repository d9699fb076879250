package app

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yungbote/neurobridge-learnview/internal/observability"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	LogMode string `mapstructure:"LOG_MODE"`

	CourseAPIBaseURL        string `mapstructure:"COURSE_API_BASE_URL"`
	CourseAPITimeoutSeconds int    `mapstructure:"COURSE_API_TIMEOUT_SECONDS"`
	CourseAPIMaxRetries     int    `mapstructure:"COURSE_API_MAX_RETRIES"`

	JWTSecretKey   string `mapstructure:"JWT_SECRET_KEY"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	LocalStoreDriver     string `mapstructure:"LOCALSTORE_DRIVER"`
	LocalStoreSQLitePath string `mapstructure:"LOCALSTORE_SQLITE_PATH"`
	PostgresDSN          string `mapstructure:"POSTGRES_DSN"`
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisChannel         string `mapstructure:"REDIS_CHANNEL"`
	BusDriver            string `mapstructure:"BUS_DRIVER"`

	ReconcileTimeoutSeconds  int  `mapstructure:"RECONCILE_TIMEOUT_SECONDS"`
	PrefetchSelectedLesson   bool `mapstructure:"PREFETCH_SELECTED_LESSON"`
	LessonCacheLimit         int  `mapstructure:"LESSON_CACHE_LIMIT"`
	HousekeepIntervalMinutes int  `mapstructure:"HOUSEKEEP_INTERVAL_MINUTES"`
	SessionMaxIdleMinutes    int  `mapstructure:"SESSION_MAX_IDLE_MINUTES"`

	DiagramCatalogPath string `mapstructure:"DIAGRAM_CATALOG_PATH"`
	WikipediaEnabled   bool   `mapstructure:"WIKIPEDIA_ENABLED"`
	WikipediaBaseURL   string `mapstructure:"WIKIPEDIA_BASE_URL"`

	OtelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OtelServiceName string  `mapstructure:"OTEL_SERVICE_NAME"`
	OtelEnvironment string  `mapstructure:"OTEL_ENVIRONMENT"`
	OtelEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `mapstructure:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OtelSampleRatio float64 `mapstructure:"OTEL_SAMPLER_RATIO"`
}

var defaults = map[string]any{
	"PORT":     "8080",
	"LOG_MODE": "development",

	"COURSE_API_TIMEOUT_SECONDS": 120,
	"COURSE_API_MAX_RETRIES":     2,

	"LOCALSTORE_DRIVER":      "sqlite",
	"LOCALSTORE_SQLITE_PATH": "data/learnview.db",
	"REDIS_CHANNEL":          "learnview-sse",
	"BUS_DRIVER":             "memory",

	"RECONCILE_TIMEOUT_SECONDS":  30,
	"PREFETCH_SELECTED_LESSON":   true,
	"LESSON_CACHE_LIMIT":         50,
	"HOUSEKEEP_INTERVAL_MINUTES": 10,
	"SESSION_MAX_IDLE_MINUTES":   120,

	"WIKIPEDIA_ENABLED":  true,
	"WIKIPEDIA_BASE_URL": "https://en.wikipedia.org/api/rest_v1",

	"OTEL_ENABLED":       false,
	"OTEL_SERVICE_NAME":  "learnview",
	"OTEL_ENVIRONMENT":   "development",
	"OTEL_SAMPLER_RATIO": 0.1,
}

// LoadConfig reads .env (when present) into the environment, then resolves
// every key through viper: environment first, then an optional app.env in
// configDir, then defaults.
func LoadConfig(log *logger.Logger, configDir string) (Config, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env")
	}

	v := viper.New()
	if strings.TrimSpace(configDir) == "" {
		configDir = "."
	}
	v.AddConfigPath(configDir)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for _, key := range configKeys() {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configKeys lists keys without defaults so AutomaticEnv picks them up on Unmarshal.
func configKeys() []string {
	return []string{
		"COURSE_API_BASE_URL", "JWT_SECRET_KEY", "ALLOWED_ORIGINS", "POSTGRES_DSN", "REDIS_ADDR",
		"DIAGRAM_CATALOG_PATH", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
		"OTEL_EXPORTER_OTLP_INSECURE",
	}
}

func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) CourseAPITimeout() time.Duration { return seconds(c.CourseAPITimeoutSeconds) }
func (c Config) ReconcileTimeout() time.Duration { return seconds(c.ReconcileTimeoutSeconds) }
func (c Config) HousekeepInterval() time.Duration {
	return time.Duration(c.HousekeepIntervalMinutes) * time.Minute
}
func (c Config) SessionMaxIdle() time.Duration {
	return time.Duration(c.SessionMaxIdleMinutes) * time.Minute
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.OtelEnvironment,
		Endpoint:    c.OtelEndpoint,
		Headers:     c.OtelHeaders,
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}
