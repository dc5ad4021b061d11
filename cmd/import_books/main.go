// Command import_books loads a catalog file into the configured library store.
//
// Each line of the file is "id,title,author,category". Books whose id is already
// present are reported and skipped. The store is written once, after the whole file.
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"library-lending/config"
	"library-lending/library"
	"library-lending/storage"
)

const defaultCatalogFile = "catalog.csv"

func main() {
	path := defaultCatalogFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if err := run(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.NewLogger(os.Stderr)

	store, err := storage.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	manager, err := library.NewLibraryManager(store, library.WithLogger(logger))
	if err != nil {
		store.Close()
		return fmt.Errorf("opening library: %w", err)
	}
	defer manager.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading catalog file: %w", err)
	}
	defer f.Close()

	fmt.Printf("Importing books from %s into the %s store...\n", path, cfg.Store)
	imported, skipped, failed := importBooks(f, manager, os.Stdout)

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", imported)
	fmt.Printf("Already present: %d\n", skipped)
	fmt.Printf("Errors: %d\n", failed)

	if err := manager.LastSaveError(); err != nil {
		return fmt.Errorf("saving library: %w", err)
	}

	if imported > 0 {
		fmt.Println("\nCatalog:")
		fmt.Printf("%-8s %-50s %-30s\n", "ID", "Title", "Author")
		fmt.Println(strings.Repeat("-", 90))
		for _, book := range manager.ListBooks(library.OrderTitle, true) {
			fmt.Printf("%-8s %-50s %-30s\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30))
		}
	}
	return nil
}

// importBooks parses every line of r, adds the well-formed ones to the manager in one
// batch and reports progress to out.
func importBooks(r io.Reader, manager *library.LibraryManager, out io.Writer) (imported, skipped, failed int) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var books []library.BookState
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}
		if len(fields) != 4 {
			fmt.Fprintf(out, "ERROR - expected id,title,author,category, got %q\n", strings.Join(fields, ","))
			failed++
			continue
		}
		books = append(books, library.BookState{ID: fields[0], Title: fields[1], Author: fields[2], Category: fields[3]})
	}

	for i, err := range manager.AddBooks(books) {
		book := books[i]
		fmt.Fprintf(out, "Importing: %s by %s... ", book.Title, book.Author)
		switch {
		case errors.Is(err, library.ErrDuplicate):
			fmt.Fprintln(out, "SKIPPED - already in catalog")
			skipped++
		case err != nil:
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
		default:
			fmt.Fprintf(out, "SUCCESS (ID: %s)\n", strings.TrimSpace(book.ID))
			imported++
		}
	}
	return imported, skipped, failed
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
