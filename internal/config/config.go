package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env            string
	Port           string
	DatabaseURL    string // postgres DSN; empty means the embedded sqlite file
	SQLitePath     string
	RedisURL       string
	GeoBackend     string // memory | redis
	StoreTimeout   time.Duration
	WriteRetries   int
	AMQPURL        string // empty disables event publishing
	AMQPQueue      string
	CORSOrigins    []string
	LogLevel       string
	HealthAdminKey string
}

const (
	GeoBackendMemory = "memory"
	GeoBackendRedis  = "redis"
)

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SQLITE_PATH", "habinest.db")
	v.SetDefault("GEO_BACKEND", GeoBackendMemory)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("WRITE_RETRIES", 5)
	v.SetDefault("AMQP_QUEUE", "listing.events")
	v.SetDefault("LOG_LEVEL", "info")

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	timeout := v.GetDuration("STORE_TIMEOUT")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := v.GetInt("WRITE_RETRIES")
	if retries < 1 {
		retries = 1
	}
	backend := strings.ToLower(strings.TrimSpace(v.GetString("GEO_BACKEND")))
	if backend != GeoBackendRedis {
		backend = GeoBackendMemory
	}

	return &Config{
		Env:            v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		SQLitePath:     v.GetString("SQLITE_PATH"),
		RedisURL:       v.GetString("REDIS_URL"),
		GeoBackend:     backend,
		StoreTimeout:   timeout,
		WriteRetries:   retries,
		AMQPURL:        v.GetString("AMQP_URL"),
		AMQPQueue:      v.GetString("AMQP_QUEUE"),
		CORSOrigins:    splitOrigins(v.GetString("CORS_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		HealthAdminKey: v.GetString("HEALTH_ADMIN_KEY"),
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
