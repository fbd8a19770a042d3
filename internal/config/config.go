package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName       string
	Env               string
	HTTPAddr          string
	DataDir           string
	LogLevel          string
	MetricsNamespace  string
	LowStockThreshold int
	ShutdownTimeout   time.Duration
}

// Paths of the flat data files under DataDir.
func (c Config) BooksFile() string    { return filepath.Join(c.DataDir, "books.csv") }
func (c Config) OrdersFile() string   { return filepath.Join(c.DataDir, "orders.csv") }
func (c Config) PaymentsFile() string { return filepath.Join(c.DataDir, "payments.csv") }
func (c Config) UsersFile() string    { return filepath.Join(c.DataDir, "users.csv") }

// Load reads the configuration from the environment. Values from envFiles
// (default ".env") fill in variables that are not already set; a missing
// file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	threshold, err := strconv.Atoi(getenv("LOW_STOCK_THRESHOLD", "3"))
	if err != nil || threshold < 0 {
		return Config{}, fmt.Errorf("config: LOW_STOCK_THRESHOLD must be a non-negative integer")
	}
	shutdown, err := time.ParseDuration(getenv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("config: SHUTDOWN_TIMEOUT: %w", err)
	}

	return Config{
		ServiceName:       getenv("SERVICE_NAME", "bookstore"),
		Env:               getenv("ENV", "dev"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		DataDir:           getenv("DATA_DIR", "data"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		MetricsNamespace:  getenv("METRICS_NAMESPACE", "bookstore"),
		LowStockThreshold: threshold,
		ShutdownTimeout:   shutdown,
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
