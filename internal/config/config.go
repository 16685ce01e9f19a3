package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration values.
type Config struct {
	Secret      string
	DatabaseDSN string
	HTTPPort    string
	Env         string
	CatalogCSV  string
	SeedDemo    bool
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:pharmadesk.db?_pragma=foreign_keys(1)"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	seedDemo, _ := strconv.ParseBool(os.Getenv("SEED_DEMO"))

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	return Config{
		Secret:      secret,
		DatabaseDSN: dsn,
		HTTPPort:    port,
		Env:         env,
		CatalogCSV:  os.Getenv("CATALOG_CSV"),
		SeedDemo:    seedDemo,
	}
}
