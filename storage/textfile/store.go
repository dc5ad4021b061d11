// Package textfile persists the library as three comma-separated text files, one
// entity per line.
package textfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"library-lending/library"
)

const (
	BooksFile   = "books.txt"
	MembersFile = "members.txt"
	RecordsFile = "borrow_records.txt"
)

var _ library.Store = (*Store)(nil)

// Store implements library.Store on top of the files in one directory.
type Store struct {
	dir       string
	sortBooks bool
	logger    library.Logger
}

type Option func(*Store)

// WithAlphabeticalBooks makes Save write books sorted by title.
func WithAlphabeticalBooks(on bool) Option {
	return func(s *Store) { s.sortBooks = on }
}

func WithLogger(l library.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a store rooted at dir, creating the directory on first use.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", library.ErrIOFailure, err)
	}
	s := &Store{dir: dir, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Close() error { return nil }

// Load reads all three files. A missing file counts as empty; a malformed line is
// logged and skipped.
func (s *Store) Load() (library.Snapshot, error) {
	var snap library.Snapshot
	var err error
	if snap.Books, err = readLines(s, BooksFile, decodeBook); err != nil {
		return library.Snapshot{}, err
	}
	if snap.Members, err = readLines(s, MembersFile, decodeMember); err != nil {
		return library.Snapshot{}, err
	}
	if snap.Records, err = readLines(s, RecordsFile, decodeRecord); err != nil {
		return library.Snapshot{}, err
	}
	return snap, nil
}

// Save overwrites every file with the snapshot.
func (s *Store) Save(snap library.Snapshot) error {
	books := snap.Books
	if s.sortBooks {
		books = sortedByTitle(books)
	}
	if err := writeLines(s, BooksFile, books, encodeBook); err != nil {
		return err
	}
	if err := writeLines(s, MembersFile, snap.Members, encodeMember); err != nil {
		return err
	}
	return writeLines(s, RecordsFile, snap.Records, encodeRecord)
}

// SaveBooksAlphabetically overwrites the books file sorted by title, regardless of
// the store's configured order.
func (s *Store) SaveBooksAlphabetically(books []library.BookState) error {
	return writeLines(s, BooksFile, sortedByTitle(books), encodeBook)
}

func (s *Store) AppendBook(b library.BookState) error {
	return appendLine(s, BooksFile, encodeBook(b))
}

func (s *Store) AppendMember(m library.MemberState) error {
	return appendLine(s, MembersFile, encodeMember(m))
}

func (s *Store) AppendRecord(r library.BorrowRecord) error {
	return appendLine(s, RecordsFile, encodeRecord(r))
}

func sortedByTitle(books []library.BookState) []library.BookState {
	out := slices.Clone(books)
	slices.SortStableFunc(out, func(a, b library.BookState) int {
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	return out
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func readLines[T any](s *Store, name string, decode func([]string) (T, error)) ([]T, error) {
	out := make([]T, 0)
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", library.ErrIOFailure, name, err)
	}
	defer f.Close()

	cr := newReader(f)
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.logger.Warn("skipping unreadable line", "file", name, "line", perr.Line, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", library.ErrIOFailure, name, err)
		}
		v, err := decode(fields)
		if err != nil {
			line, _ := cr.FieldPos(0)
			s.logger.Warn("skipping malformed line", "file", name, "line", line, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// writeLines replaces the file atomically: the rows go to a temp file that is renamed
// over the target.
func writeLines[T any](s *Store, name string, items []T, encode func(T) []string) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", library.ErrIOFailure, name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	for _, it := range items {
		if err := w.Write(encode(it)); err != nil {
			tmp.Close()
			return fmt.Errorf("%w: write %s: %w", library.ErrIOFailure, name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", library.ErrIOFailure, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", library.ErrIOFailure, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("%w: replace %s: %w", library.ErrIOFailure, name, err)
	}
	return nil
}

func appendLine(s *Store, name string, fields []string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", library.ErrIOFailure, name, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %w", library.ErrIOFailure, name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %w", library.ErrIOFailure, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", library.ErrIOFailure, name, err)
	}
	return nil
}
