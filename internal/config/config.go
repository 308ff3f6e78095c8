package config

import (
	"log"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	Schema          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// RateLimitConfig holds the per-tier fixed-window budgets.
type RateLimitConfig struct {
	UserRequests  int
	UserWindow    time.Duration
	IPRequests    int
	IPWindow      time.Duration
	StockRequests int
	StockWindow   time.Duration
}

type EventsConfig struct {
	Channel string
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// IsProduction reports whether the server runs with production settings.
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	viper.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_USER_REQUESTS", 10)
	viper.SetDefault("RATE_LIMIT_USER_WINDOW_SECONDS", 60)
	viper.SetDefault("RATE_LIMIT_IP_REQUESTS", 5)
	viper.SetDefault("RATE_LIMIT_IP_WINDOW_SECONDS", 60)
	viper.SetDefault("RATE_LIMIT_STOCK_REQUESTS", 120)
	viper.SetDefault("RATE_LIMIT_STOCK_WINDOW_SECONDS", 60)
	viper.SetDefault("EVENTS_CHANNEL", "flash-sale:purchases")
	viper.SetDefault("OTEL_SERVICE_NAME", "flash-sale")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetString("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_DATABASE"),
			Schema:          viper.GetString("DB_SCHEMA"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(viper.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute,
			MigrationsDir:   viper.GetString("DB_MIGRATIONS_DIR"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			UserRequests:  viper.GetInt("RATE_LIMIT_USER_REQUESTS"),
			UserWindow:    seconds(viper.GetInt("RATE_LIMIT_USER_WINDOW_SECONDS")),
			IPRequests:    viper.GetInt("RATE_LIMIT_IP_REQUESTS"),
			IPWindow:      seconds(viper.GetInt("RATE_LIMIT_IP_WINDOW_SECONDS")),
			StockRequests: viper.GetInt("RATE_LIMIT_STOCK_REQUESTS"),
			StockWindow:   seconds(viper.GetInt("RATE_LIMIT_STOCK_WINDOW_SECONDS")),
		},
		Events: EventsConfig{
			Channel: viper.GetString("EVENTS_CHANNEL"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  viper.GetString("OTEL_SERVICE_NAME"),
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
