package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"LIBRARY_STORE", "LIBRARY_DATA_DIR", "LIBRARY_DB_PATH", "LIBRARY_SORT_BOOKS_ON_SAVE",
	"LIBRARY_LOG_LEVEL", "LIBRARY_LOG_FORMAT", "LIBRARY_OPERATOR_USER", "LIBRARY_OPERATOR_PASSWORD_HASH",
}

// clearEnv unsets every LIBRARY_* key for the duration of the test.
func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StoreText, cfg.Store)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "library.db"), cfg.DBPath)
	assert.False(t, cfg.SortBooksOnSave)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.OperatorUser)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRARY_STORE", "SQLite")
	t.Setenv("LIBRARY_DATA_DIR", "/srv/lib")
	t.Setenv("LIBRARY_SORT_BOOKS_ON_SAVE", "true")
	t.Setenv("LIBRARY_LOG_LEVEL", "debug")
	t.Setenv("LIBRARY_LOG_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, filepath.Join("/srv/lib", "library.db"), cfg.DBPath)
	assert.True(t, cfg.SortBooksOnSave)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	var buf bytes.Buffer
	cfg.NewLogger(&buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	env := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(env, []byte("LIBRARY_OPERATOR_USER=desk\nLIBRARY_LOG_FORMAT=json\n"), 0o644))
	// an explicitly set variable wins over the file
	t.Setenv("LIBRARY_LOG_FORMAT", "text")

	cfg, err := Load(env)
	require.NoError(t, err)
	assert.Equal(t, "desk", cfg.OperatorUser)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct{ key, value string }{
		{"LIBRARY_STORE", "mongo"},
		{"LIBRARY_LOG_FORMAT", "xml"},
		{"LIBRARY_LOG_LEVEL", "loud"},
		{"LIBRARY_SORT_BOOKS_ON_SAVE", "maybe"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
