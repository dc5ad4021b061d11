// Package config reads the desk's settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreText   = "text"
	StoreSQLite = "sqlite"
)

type Config struct {
	Store                string
	DataDir              string
	DBPath               string
	SortBooksOnSave      bool
	LogLevel             slog.Level
	LogFormat            string
	OperatorUser         string
	OperatorPasswordHash string
}

// Load applies the given .env files (default ".env"; missing files are ignored) and
// then reads LIBRARY_* variables. Variables already set in the environment win over
// the files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	dataDir := getEnv("LIBRARY_DATA_DIR", "data")
	cfg := Config{
		Store:                strings.ToLower(getEnv("LIBRARY_STORE", StoreText)),
		DataDir:              dataDir,
		DBPath:               getEnv("LIBRARY_DB_PATH", filepath.Join(dataDir, "library.db")),
		LogFormat:            strings.ToLower(getEnv("LIBRARY_LOG_FORMAT", "text")),
		OperatorUser:         getEnv("LIBRARY_OPERATOR_USER", ""),
		OperatorPasswordHash: getEnv("LIBRARY_OPERATOR_PASSWORD_HASH", ""),
	}

	sortBooks, err := strconv.ParseBool(getEnv("LIBRARY_SORT_BOOKS_ON_SAVE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("LIBRARY_SORT_BOOKS_ON_SAVE: %w", err)
	}
	cfg.SortBooksOnSave = sortBooks

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LIBRARY_LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LIBRARY_LOG_LEVEL: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Store {
	case StoreText, StoreSQLite:
	default:
		return fmt.Errorf("LIBRARY_STORE: unknown store %q (want %s or %s)", c.Store, StoreText, StoreSQLite)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LIBRARY_LOG_FORMAT: unknown format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
