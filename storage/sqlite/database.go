// Package sqlite persists the library snapshot in an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"library-lending/library"
)

const (
	dialectSQLite = "sqlite3"

	tableBooks        = "books"
	tableReservations = "reservations"
	tableMembers      = "members"
	tableMemberBooks  = "member_books"
	tableRecords      = "borrow_records"

	kindBorrowed = "borrowed"
	kindWaiting  = "waiting"

	// rows per INSERT, well below SQLite's bound-variable limit
	insertBatch = 500
)

var _ library.Store = (*Database)(nil)

// Database stores library snapshots in SQLite. It implements library.Store.
type Database struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	logger  library.Logger
}

type Option func(*Database)

func WithLogger(l library.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies schema
// migrations.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %w", library.ErrIOFailure, err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", library.ErrIOFailure, err)
	}

	if err := applyMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", library.ErrIOFailure, err)
	}

	d := &Database{
		db:      db,
		dialect: goqu.Dialect(dialectSQLite),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            seq INTEGER NOT NULL,
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            category TEXT NOT NULL,
            borrower_id TEXT,
            borrower_name TEXT,
            borrow_count INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS reservations (
            book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
            position INTEGER NOT NULL,
            member_id TEXT NOT NULL,
            member_name TEXT NOT NULL,
            PRIMARY KEY(book_id, position),
            UNIQUE(book_id, member_id)
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            seq INTEGER NOT NULL,
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS member_books (
            member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            kind TEXT NOT NULL CHECK(kind IN ('borrowed','waiting')),
            position INTEGER NOT NULL,
            book_id TEXT NOT NULL,
            PRIMARY KEY(member_id, kind, position)
        );`,
		// history outlives retired books and members, so no foreign keys here
		`CREATE TABLE IF NOT EXISTS borrow_records (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id TEXT NOT NULL,
            member_id TEXT NOT NULL,
            member_name TEXT NOT NULL,
            borrow_date TEXT NOT NULL,
            return_date TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_records_book_member ON borrow_records(book_id, member_id);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save replaces the stored snapshot in one transaction.
func (d *Database) Save(snap library.Snapshot) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return fmt.Errorf("%w: begin: %w", library.ErrIOFailure, err)
	}
	defer tx.Rollback()

	for _, table := range []string{tableReservations, tableBooks, tableMemberBooks, tableMembers, tableRecords} {
		query, args, err := d.dialect.Delete(table).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("%w: build delete: %w", library.ErrIOFailure, err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("%w: clear %s: %w", library.ErrIOFailure, table, err)
		}
	}

	var books, reservations, members, memberBooks, records []any
	for i, b := range snap.Books {
		row := goqu.Record{
			"seq": i, "id": b.ID, "title": b.Title, "author": b.Author, "category": b.Category,
			"borrower_id": nil, "borrower_name": nil, "borrow_count": b.BorrowCount,
		}
		if b.Borrower != nil {
			row["borrower_id"], row["borrower_name"] = b.Borrower.MemberID, b.Borrower.MemberName
		}
		books = append(books, row)
		for pos, r := range b.Reservations {
			reservations = append(reservations, goqu.Record{
				"book_id": b.ID, "position": pos, "member_id": r.MemberID, "member_name": r.MemberName,
			})
		}
	}
	for i, m := range snap.Members {
		members = append(members, goqu.Record{"seq": i, "id": m.ID, "name": m.Name})
		for pos, id := range m.Borrowed {
			memberBooks = append(memberBooks, goqu.Record{"member_id": m.ID, "kind": kindBorrowed, "position": pos, "book_id": id})
		}
		for pos, id := range m.Waiting {
			memberBooks = append(memberBooks, goqu.Record{"member_id": m.ID, "kind": kindWaiting, "position": pos, "book_id": id})
		}
	}
	for _, r := range snap.Records {
		var ret any
		if r.ReturnDate != nil {
			ret = r.ReturnDate.Format(library.DateLayout)
		}
		records = append(records, goqu.Record{
			"book_id": r.BookID, "member_id": r.MemberID, "member_name": r.MemberName,
			"borrow_date": r.BorrowDate.Format(library.DateLayout), "return_date": ret,
		})
	}

	for _, batch := range []struct {
		table string
		rows  []any
	}{
		{tableBooks, books},
		{tableReservations, reservations},
		{tableMembers, members},
		{tableMemberBooks, memberBooks},
		{tableRecords, records},
	} {
		if err := d.insertRows(tx, batch.table, batch.rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", library.ErrIOFailure, err)
	}
	d.logger.Debug("snapshot saved", "books", len(books), "members", len(members), "records", len(records))
	return nil
}

func (d *Database) insertRows(tx *sqlx.Tx, table string, rows []any) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		query, args, err := d.dialect.Insert(table).Prepared(true).Rows(rows[start:end]...).ToSQL()
		if err != nil {
			return fmt.Errorf("%w: build insert into %s: %w", library.ErrIOFailure, table, err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("%w: insert into %s: %w", library.ErrIOFailure, table, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

type bookRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Author       string         `db:"author"`
	Category     string         `db:"category"`
	BorrowerID   sql.NullString `db:"borrower_id"`
	BorrowerName sql.NullString `db:"borrower_name"`
	BorrowCount  int            `db:"borrow_count"`
}

type reservationRow struct {
	BookID     string `db:"book_id"`
	MemberID   string `db:"member_id"`
	MemberName string `db:"member_name"`
}

type memberRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type memberBookRow struct {
	MemberID string `db:"member_id"`
	Kind     string `db:"kind"`
	BookID   string `db:"book_id"`
}

type recordRow struct {
	BookID     string         `db:"book_id"`
	MemberID   string         `db:"member_id"`
	MemberName string         `db:"member_name"`
	BorrowDate string         `db:"borrow_date"`
	ReturnDate sql.NullString `db:"return_date"`
}

func (d *Database) selectAll(dest any, table string, cols []any, order ...string) error {
	ds := d.dialect.From(table).Select(cols...)
	for _, col := range order {
		ds = ds.OrderAppend(goqu.I(col).Asc())
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return fmt.Errorf("%w: build select from %s: %w", library.ErrIOFailure, table, err)
	}
	if err := d.db.Select(dest, query, args...); err != nil {
		return fmt.Errorf("%w: select from %s: %w", library.ErrIOFailure, table, err)
	}
	return nil
}

// Load reads the stored snapshot. Records with unreadable dates are logged and skipped.
func (d *Database) Load() (library.Snapshot, error) {
	var (
		books        []bookRow
		reservations []reservationRow
		members      []memberRow
		memberBooks  []memberBookRow
		records      []recordRow
	)
	if err := d.selectAll(&books, tableBooks,
		[]any{"id", "title", "author", "category", "borrower_id", "borrower_name", "borrow_count"}, "seq"); err != nil {
		return library.Snapshot{}, err
	}
	if err := d.selectAll(&reservations, tableReservations,
		[]any{"book_id", "member_id", "member_name"}, "book_id", "position"); err != nil {
		return library.Snapshot{}, err
	}
	if err := d.selectAll(&members, tableMembers, []any{"id", "name"}, "seq"); err != nil {
		return library.Snapshot{}, err
	}
	if err := d.selectAll(&memberBooks, tableMemberBooks,
		[]any{"member_id", "kind", "book_id"}, "member_id", "kind", "position"); err != nil {
		return library.Snapshot{}, err
	}
	if err := d.selectAll(&records, tableRecords,
		[]any{"book_id", "member_id", "member_name", "borrow_date", "return_date"}, "seq"); err != nil {
		return library.Snapshot{}, err
	}

	queues := make(map[string][]library.Reservation)
	for _, r := range reservations {
		queues[r.BookID] = append(queues[r.BookID], library.Reservation{MemberID: r.MemberID, MemberName: r.MemberName})
	}
	borrowed := make(map[string][]string)
	waiting := make(map[string][]string)
	for _, mb := range memberBooks {
		if mb.Kind == kindWaiting {
			waiting[mb.MemberID] = append(waiting[mb.MemberID], mb.BookID)
		} else {
			borrowed[mb.MemberID] = append(borrowed[mb.MemberID], mb.BookID)
		}
	}

	snap := library.Snapshot{
		Books:   make([]library.BookState, 0, len(books)),
		Members: make([]library.MemberState, 0, len(members)),
		Records: make([]library.BorrowRecord, 0, len(records)),
	}
	for _, b := range books {
		s := library.BookState{
			ID: b.ID, Title: b.Title, Author: b.Author, Category: b.Category,
			BorrowCount:  b.BorrowCount,
			Reservations: append([]library.Reservation{}, queues[b.ID]...),
		}
		if b.BorrowerID.Valid {
			s.Borrower = &library.Borrower{MemberID: b.BorrowerID.String, MemberName: b.BorrowerName.String}
		}
		snap.Books = append(snap.Books, s)
	}
	for _, m := range members {
		snap.Members = append(snap.Members, library.MemberState{
			ID:       m.ID,
			Name:     m.Name,
			Borrowed: append([]string{}, borrowed[m.ID]...),
			Waiting:  append([]string{}, waiting[m.ID]...),
		})
	}
	for _, r := range records {
		rec, err := r.record()
		if err != nil {
			d.logger.Warn("skipping stored borrow record", "book_id", r.BookID, "member_id", r.MemberID, "error", err)
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func (r recordRow) record() (library.BorrowRecord, error) {
	rec := library.BorrowRecord{BookID: r.BookID, MemberID: r.MemberID, MemberName: r.MemberName}
	borrowed, err := time.Parse(library.DateLayout, r.BorrowDate)
	if err != nil {
		return rec, fmt.Errorf("%w: borrow date %q", library.ErrParseFailure, r.BorrowDate)
	}
	rec.BorrowDate = borrowed
	if r.ReturnDate.Valid {
		returned, err := time.Parse(library.DateLayout, r.ReturnDate.String)
		if err != nil {
			return rec, fmt.Errorf("%w: return date %q", library.ErrParseFailure, r.ReturnDate.String)
		}
		rec.ReturnDate = &returned
	}
	return rec, nil
}
