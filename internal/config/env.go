package config

import (
	"fmt"
	"os"
)

// Environment holds environment-specific configuration
type Environment struct {
	Environment string
	ConfigPath  string
	JWTSecret   string
}

// LoadEnv reads environment variables and returns an Environment struct
func LoadEnv() (*Environment, error) {
	env := &Environment{
		Environment: getEnv("APP_ENV", "development"),
		ConfigPath:  getEnv("CONFIG_PATH", "config.yaml"),
		JWTSecret:   getEnv("JWT_SECRET_KEY", ""),
	}

	if env.Environment != "development" && env.Environment != "production" && env.Environment != "test" {
		return nil, fmt.Errorf("invalid APP_ENV: %s", env.Environment)
	}

	return env, nil
}

// IsProduction returns true when running in production mode
func (e *Environment) IsProduction() bool {
	return e.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
