package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LibraryManager is a thin façade over the catalog, the directory and the lending
// engine, keeping CLI code simple. It loads the store once when opened and writes the
// full state back after every change; memory is the source of truth in between.
type LibraryManager struct {
	mu sync.Mutex

	store     Store
	catalog   *Catalog
	directory *Directory
	engine    *Engine
	logger    Logger
	observer  Observer
	now       func() time.Time

	lastSaveErr error
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

func WithLogger(l Logger) Option {
	return func(lm *LibraryManager) {
		if l != nil {
			lm.logger = l
		}
	}
}

// WithClock overrides the clock used for borrow and return dates.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) {
		if now != nil {
			lm.now = now
		}
	}
}

// WithEventObserver adds an observer next to the built-in log observer.
func WithEventObserver(o Observer) Option {
	return func(lm *LibraryManager) { lm.observer = o }
}

// NewLibraryManager builds the in-memory state from store. A store that cannot be read
// leaves the library empty; the failure is logged, not returned.
func NewLibraryManager(store Store, opts ...Option) (*LibraryManager, error) {
	if store == nil {
		return nil, errors.New("library: store must not be nil")
	}
	lm := &LibraryManager{
		store:     store,
		catalog:   NewCatalog(),
		directory: NewDirectory(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(lm)
	}

	observers := MultiObserver{NewLogObserver(lm.logger)}
	if lm.observer != nil {
		observers = append(observers, lm.observer)
	}
	lm.engine = NewEngine(lm.catalog, lm.directory, WithObserver(observers), WithEngineLogger(lm.logger))

	snap, err := store.Load()
	if err != nil {
		lm.logger.Error("loading library state failed, starting empty", "error", err)
		return lm, nil
	}
	lm.restore(snap)
	return lm, nil
}

// Close flushes nothing; every change is already saved. It closes the store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

func (lm *LibraryManager) restore(snap Snapshot) {
	for _, s := range snap.Books {
		if err := lm.catalog.Add(RestoreBook(s)); err != nil {
			lm.logger.Warn("skipping persisted book", "book_id", s.ID, "error", err)
		}
	}
	for _, s := range snap.Members {
		if strings.TrimSpace(s.ID) == "" {
			lm.logger.Warn("skipping persisted member without id", "name", s.Name)
			continue
		}
		if err := lm.directory.insert(RestoreMember(s)); err != nil {
			lm.logger.Warn("skipping persisted member", "member_id", s.ID, "error", err)
		}
	}
	for _, r := range snap.Records {
		if err := lm.engine.restoreRecord(r); err != nil {
			lm.logger.Warn("skipping persisted borrow record", "book_id", r.BookID, "member_id", r.MemberID, "error", err)
		}
	}
	lm.reconcile()

	lm.logger.Info("library state loaded",
		"books", lm.catalog.Len(), "members", lm.directory.Len(), "records", len(snap.Records))
}

// reconcile repairs member-side sets from the book side, which wins on conflict.
func (lm *LibraryManager) reconcile() {
	for _, m := range lm.directory.All() {
		for _, bookID := range m.Borrowed() {
			b, err := lm.catalog.Get(bookID)
			if err != nil || b.borrower == nil || !sameID(b.borrower.MemberID, m.ID) {
				lm.logger.Warn("dropping borrowed book not held by member", "member_id", m.ID, "book_id", bookID)
				lm.directory.recordReturn(m, bookID)
			}
		}
		for _, bookID := range m.Waiting() {
			b, err := lm.catalog.Get(bookID)
			if err != nil || b.QueuePosition(m.ID) == 0 {
				lm.logger.Warn("dropping reservation missing from book queue", "member_id", m.ID, "book_id", bookID)
				_ = lm.directory.RemoveReservation(m.ID, bookID)
			}
		}
	}
	for _, b := range lm.catalog.All() {
		if b.borrower != nil {
			if m, err := lm.directory.Get(b.borrower.MemberID); err == nil {
				lm.directory.recordBorrow(m, b.ID)
			}
		}
		for _, r := range b.Reservations() {
			if m, err := lm.directory.Get(r.MemberID); err == nil && !m.IsWaitingFor(b.ID) {
				_ = lm.directory.AddReservation(m.ID, b.ID)
			}
		}
	}
}

// Snapshot captures the complete current state.
func (lm *LibraryManager) Snapshot() Snapshot {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.snapshot()
}

func (lm *LibraryManager) snapshot() Snapshot {
	snap := Snapshot{
		Books:   make([]BookState, 0, lm.catalog.Len()),
		Members: make([]MemberState, 0, lm.directory.Len()),
		Records: lm.engine.Records(),
	}
	for _, b := range lm.catalog.All() {
		snap.Books = append(snap.Books, b.State())
	}
	for _, m := range lm.directory.All() {
		snap.Members = append(snap.Members, m.State())
	}
	return snap
}

// persist writes the whole state. Failures are logged and kept for Flush;
// the in-memory change stands.
func (lm *LibraryManager) persist() {
	if err := lm.store.Save(lm.snapshot()); err != nil {
		lm.lastSaveErr = fmt.Errorf("%w: %w", ErrIOFailure, err)
		lm.logger.Error("saving library state failed", "error", err)
		return
	}
	lm.lastSaveErr = nil
}

// Flush saves the current state and reports the outcome.
func (lm *LibraryManager) Flush() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.persist()
	return lm.lastSaveErr
}

// alphabeticalStore is implemented by stores that can write the books sorted by title.
type alphabeticalStore interface {
	SaveBooksAlphabetically([]BookState) error
}

// SaveBooksAlphabetically rewrites the stored book list sorted by title, if the store
// supports it.
func (lm *LibraryManager) SaveBooksAlphabetically() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	s, ok := lm.store.(alphabeticalStore)
	if !ok {
		return fmt.Errorf("%w: store cannot write books alphabetically", ErrInvalidState)
	}
	if err := s.SaveBooksAlphabetically(bookStates(lm.catalog.All())); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// LastSaveError returns the error of the most recent automatic save, if it failed.
func (lm *LibraryManager) LastSaveError() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.lastSaveErr
}

// mutate runs fn under the lock and persists when fn succeeds.
func (lm *LibraryManager) mutate(fn func() error) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	lm.persist()
	return nil
}

// ------------------ Book helpers ------------------

// BookField selects the attribute a book search matches against.
type BookField string

const (
	FieldID       BookField = "id"
	FieldTitle    BookField = "title"
	FieldAuthor   BookField = "author"
	FieldCategory BookField = "category"
)

// BookOrder selects a listing order.
type BookOrder string

const (
	OrderCatalog    BookOrder = "catalog"
	OrderTitle      BookOrder = "title"
	OrderAuthor     BookOrder = "author"
	OrderCategory   BookOrder = "category"
	OrderPopularity BookOrder = "popularity"
)

func (lm *LibraryManager) AddBook(id, title, author, category string) (BookState, error) {
	b := NewBook(strings.TrimSpace(id), strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(category))
	err := lm.mutate(func() error { return lm.catalog.Add(b) })
	if err != nil {
		return BookState{}, err
	}
	return b.State(), nil
}

// AddBooks adds several books and saves once at the end. errs[i] is the outcome for
// books[i]; only the metadata fields of each BookState are used.
func (lm *LibraryManager) AddBooks(books []BookState) (errs []error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	errs = make([]error, len(books))
	added := 0
	for i, s := range books {
		b := NewBook(strings.TrimSpace(s.ID), strings.TrimSpace(s.Title), strings.TrimSpace(s.Author), strings.TrimSpace(s.Category))
		if errs[i] = lm.catalog.Add(b); errs[i] == nil {
			added++
		}
	}
	if added > 0 {
		lm.persist()
	}
	return errs
}

func (lm *LibraryManager) UpdateBook(id, title, author, category string) error {
	return lm.mutate(func() error {
		return lm.catalog.Update(id, strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(category))
	})
}

// RemoveBook retires the book; its reservations are withdrawn first.
func (lm *LibraryManager) RemoveBook(id string) error {
	return lm.mutate(func() error { return lm.engine.RetireBook(id, lm.now()) })
}

func (lm *LibraryManager) GetBook(id string) (BookState, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	b, err := lm.catalog.Get(id)
	if err != nil {
		return BookState{}, err
	}
	return b.State(), nil
}

func (lm *LibraryManager) GetAllBooks() []BookState {
	return lm.ListBooks(OrderCatalog, true)
}

// ListBooks returns every book in the requested order. ascending is ignored for
// popularity, which always lists the least borrowed first.
func (lm *LibraryManager) ListBooks(order BookOrder, ascending bool) []BookState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	var books []*Book
	switch order {
	case OrderTitle:
		books = lm.catalog.SortByTitle(ascending)
	case OrderAuthor:
		books = lm.catalog.SortByAuthor(ascending)
	case OrderCategory:
		books = lm.catalog.SortByCategory(ascending)
	case OrderPopularity:
		books = lm.catalog.SortByPopularity()
	default:
		books = lm.catalog.All()
	}
	return bookStates(books)
}

// SearchBooks matches q as a case-insensitive substring of the chosen field;
// FieldID is an exact id lookup.
func (lm *LibraryManager) SearchBooks(field BookField, q string) []BookState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	q = strings.TrimSpace(q)
	switch field {
	case FieldID:
		return bookStates(lm.catalog.SearchByID(q))
	case FieldAuthor:
		return bookStates(lm.catalog.SearchByAuthor(q))
	case FieldCategory:
		return bookStates(lm.catalog.SearchByCategory(q))
	default:
		return bookStates(lm.catalog.SearchByTitle(q))
	}
}

// MostBorrowedBooks returns the n most borrowed books, most borrowed first.
func (lm *LibraryManager) MostBorrowedBooks(n int) []BookState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return bookStates(lm.catalog.MostBorrowed(n))
}

func bookStates(books []*Book) []BookState {
	out := make([]BookState, 0, len(books))
	for _, b := range books {
		out = append(out, b.State())
	}
	return out
}

// ------------------ Member helpers ------------------

// AddMember registers a member; an empty id gets the next generated M### id.
func (lm *LibraryManager) AddMember(id, name string) (MemberState, error) {
	var m *Member
	err := lm.mutate(func() error {
		var err error
		m, err = lm.directory.Add(id, name)
		return err
	})
	if err != nil {
		return MemberState{}, err
	}
	return m.State(), nil
}

func (lm *LibraryManager) RenameMember(id, name string) error {
	return lm.mutate(func() error { return lm.directory.Rename(id, name) })
}

// RemoveMember retires the member; their reservations are withdrawn first.
func (lm *LibraryManager) RemoveMember(id string) error {
	return lm.mutate(func() error { return lm.engine.RetireMember(id, lm.now()) })
}

func (lm *LibraryManager) GetMember(id string) (MemberState, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, err := lm.directory.Get(id)
	if err != nil {
		return MemberState{}, err
	}
	return m.State(), nil
}

func (lm *LibraryManager) GetAllMembers() []MemberState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return memberStates(lm.directory.All())
}

func (lm *LibraryManager) SearchMembers(name string) []MemberState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return memberStates(lm.directory.SearchByName(name))
}

// FindOrAddMember resolves a member by name, registering a new one if nobody matches.
func (lm *LibraryManager) FindOrAddMember(name string) (MemberState, bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, created, err := lm.directory.FindOrAdd(name)
	if err != nil {
		return MemberState{}, false, err
	}
	if created {
		lm.persist()
	}
	return m.State(), created, nil
}

func memberStates(members []*Member) []MemberState {
	out := make([]MemberState, 0, len(members))
	for _, m := range members {
		out = append(out, m.State())
	}
	return out
}

// ------------------ Circulation ------------------

// Borrow lends the book or, if it is out, queues the member for it.
func (lm *LibraryManager) Borrow(memberID, bookID string) (BorrowResult, error) {
	var res BorrowResult
	err := lm.mutate(func() error {
		var err error
		res, err = lm.engine.Borrow(memberID, bookID, lm.now())
		return err
	})
	return res, err
}

// Return closes the member's borrow and hands the book to the next in line, if any.
func (lm *LibraryManager) Return(memberID, bookID string) (ReturnResult, error) {
	var res ReturnResult
	err := lm.mutate(func() error {
		var err error
		res, err = lm.engine.Return(memberID, bookID, lm.now())
		return err
	})
	return res, err
}

// ------------------ Reservation helpers ------------------

func (lm *LibraryManager) Reserve(memberID, bookID string) (int, error) {
	var pos int
	err := lm.mutate(func() error {
		var err error
		pos, err = lm.engine.Reserve(memberID, bookID, lm.now())
		return err
	})
	return pos, err
}

func (lm *LibraryManager) CancelReservation(memberID, bookID string) error {
	return lm.mutate(func() error { return lm.engine.CancelReservation(memberID, bookID, lm.now()) })
}

// Reservations lists every waiting member of every book.
func (lm *LibraryManager) Reservations() []ReservationEntry {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.catalog.Reservations()
}

// ------------------ Borrow records ------------------

func (lm *LibraryManager) BorrowRecords() []BorrowRecord {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.engine.Records()
}

func (lm *LibraryManager) RecordsByMember(memberID string) []BorrowRecord {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.engine.RecordsByMember(memberID)
}

func (lm *LibraryManager) RecordsByBook(bookID string) []BorrowRecord {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.engine.RecordsByBook(bookID)
}

func (lm *LibraryManager) OpenRecords() []BorrowRecord {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.engine.OpenRecords()
}

func (lm *LibraryManager) IsBorrowedBy(bookID, memberID string) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.engine.IsBorrowedBy(bookID, memberID)
}

func (lm *LibraryManager) BorrowedBookIDs(memberID string) []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.engine.BorrowedBookIDs(memberID)
}

// DeleteRecords removes the closed history of a (book, member) pair.
func (lm *LibraryManager) DeleteRecords(bookID, memberID string) (int, error) {
	var n int
	err := lm.mutate(func() error {
		var err error
		n, err = lm.engine.DeleteRecords(bookID, memberID, lm.now())
		return err
	})
	return n, err
}
