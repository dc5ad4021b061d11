// Package storage selects the persistence backend named in the configuration.
package storage

import (
	"library-lending/config"
	"library-lending/library"
	"library-lending/storage/sqlite"
	"library-lending/storage/textfile"
)

// Open returns the store configured by cfg.Store.
func Open(cfg config.Config, logger library.Logger) (library.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlite.NewDatabase(cfg.DBPath, sqlite.WithLogger(logger))
	default:
		return textfile.New(cfg.DataDir,
			textfile.WithAlphabeticalBooks(cfg.SortBooksOnSave),
			textfile.WithLogger(logger))
	}
}
