package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration, populated from the environment
// (optionally seeded from configs/.env in development).
type Config struct {
	Port       string   `envconfig:"PORT" default:"8080"`
	GinMode    string   `envconfig:"GIN_MODE" default:"debug"`
	CORSOrigin []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"postgres"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	ExchangeRateAPI string `envconfig:"EXCHANGE_RATE_API" default:"https://api.exchangerate-api.com/v4"`
	CountriesAPI    string `envconfig:"COUNTRIES_API" default:"https://restcountries.com"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configs/.env if present, then resolves the Config struct from
// the environment.
func Load() (*Config, error) {
	// Missing .env is fine; production supplies real environment variables.
	_ = godotenv.Load("configs/.env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.JWTSecret == "" && cfg.GinMode == "release" {
		return nil, fmt.Errorf("JWT_SECRET is required in release mode")
	}

	return &cfg, nil
}

// DSN assembles the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort +
		"/" + c.DBName + "?sslmode=" + c.DBSSLMode
}
