package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/config"
	"library-lending/storage/sqlite"
	"library-lending/storage/textfile"
)

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	text, err := Open(config.Config{Store: config.StoreText, DataDir: filepath.Join(dir, "data")}, logger)
	require.NoError(t, err)
	defer text.Close()
	assert.IsType(t, &textfile.Store{}, text)

	db, err := Open(config.Config{Store: config.StoreSQLite, DBPath: filepath.Join(dir, "lib.db")}, logger)
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &sqlite.Database{}, db)
}
