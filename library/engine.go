package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"library-lending/collections"
)

// Outcome distinguishes a completed borrow from a request that was queued instead.
type Outcome int

const (
	OutcomeBorrowed Outcome = iota + 1
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBorrowed:
		return "borrowed"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// BorrowResult reports what a Borrow call did. Record is set for OutcomeBorrowed,
// Position (1-based) for OutcomeQueued.
type BorrowResult struct {
	Outcome  Outcome
	Record   BorrowRecord
	Position int
}

// ReturnResult reports the closed record and, when the waiting line was not empty,
// the record opened for the promoted member.
type ReturnResult struct {
	Closed   BorrowRecord
	Promoted *BorrowRecord
}

// Engine decides borrow, return and reservation outcomes. It is the only component
// that changes a book's borrower and borrow count or a member's borrowed set, and it
// owns the append-only borrow record ledger.
//
// Every operation validates first and mutates afterwards, so a failed call leaves the
// catalog, the directory and the ledger untouched.
type Engine struct {
	catalog   *Catalog
	directory *Directory
	records   *collections.Ledger[*BorrowRecord]
	observer  Observer
	logger    Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver sets the hook that receives every transition.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithEngineLogger sets the logger for diagnostics such as skipped reservations.
func WithEngineLogger(l Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(catalog *Catalog, directory *Directory, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:   catalog,
		directory: directory,
		records:   collections.NewLedger[*BorrowRecord](),
		observer:  nopObserver{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lookup(bookID, memberID string) (*Book, *Member, error) {
	book, err := e.catalog.Get(bookID)
	if err != nil {
		return nil, nil, err
	}
	member, err := e.directory.Get(memberID)
	if err != nil {
		return nil, nil, err
	}
	return book, member, nil
}

// Borrow lends the book to the member when it is available. When somebody else holds
// it, the member joins the book's waiting line instead and the result says so.
func (e *Engine) Borrow(memberID, bookID string, on time.Time) (BorrowResult, error) {
	book, member, err := e.lookup(bookID, memberID)
	if err != nil {
		return BorrowResult{}, err
	}

	if !book.Available() {
		if sameID(book.borrower.MemberID, member.ID) {
			return BorrowResult{}, fmt.Errorf("%w: member %q already holds book %q", ErrInvalidState, member.ID, book.ID)
		}
		pos, err := e.enqueue(book, member)
		if err != nil {
			return BorrowResult{}, err
		}
		e.observer.Notify(newEvent(EventQueued, book.ID, member.ID, member.Name, Day(on)))
		return BorrowResult{Outcome: OutcomeQueued, Position: pos}, nil
	}

	rec := e.lend(book, member, on)
	// a member who was waiting and now borrows directly leaves the line
	if book.QueuePosition(member.ID) > 0 {
		_ = e.catalog.CancelReservation(book.ID, member.ID)
	}
	if member.IsWaitingFor(book.ID) {
		_ = e.directory.RemoveReservation(member.ID, book.ID)
	}
	e.observer.Notify(newEvent(EventBorrowed, book.ID, member.ID, member.Name, rec.BorrowDate))
	return BorrowResult{Outcome: OutcomeBorrowed, Record: *rec}, nil
}

// Return closes the member's open record for the book. If anyone is waiting, the head
// of the line is promoted to borrower in the same step; otherwise the book becomes
// available.
func (e *Engine) Return(memberID, bookID string, on time.Time) (ReturnResult, error) {
	book, member, err := e.lookup(bookID, memberID)
	if err != nil {
		return ReturnResult{}, err
	}
	rec := e.openRecord(book.ID, member.ID)
	if rec == nil {
		return ReturnResult{}, fmt.Errorf("%w: no open borrow record for book %q and member %q", ErrInvalidState, book.ID, member.ID)
	}

	day := Day(on)
	rec.ReturnDate = &day
	e.directory.recordReturn(member, book.ID)
	result := ReturnResult{Closed: *rec}
	e.observer.Notify(newEvent(EventReturned, book.ID, member.ID, member.Name, day))

	if book.borrower != nil && !sameID(book.borrower.MemberID, member.ID) {
		e.logger.Warn("closed record of a member who was not the current borrower",
			"book_id", book.ID, "member_id", member.ID, "borrower_id", book.borrower.MemberID)
		return result, nil
	}

	book.release()
	for {
		next, ok := book.reservations.Dequeue()
		if !ok {
			break
		}
		nextMember, err := e.directory.Get(next.MemberID)
		if err != nil {
			e.logger.Warn("skipping reservation of unknown member", "book_id", book.ID, "member_id", next.MemberID)
			continue
		}
		if nextMember.IsWaitingFor(book.ID) {
			_ = e.directory.RemoveReservation(nextMember.ID, book.ID)
		}
		promoted := e.lend(book, nextMember, day)
		cp := *promoted
		result.Promoted = &cp
		e.observer.Notify(newEvent(EventPromoted, book.ID, nextMember.ID, nextMember.Name, day))
		break
	}
	return result, nil
}

// Reserve puts the member in the waiting line of a book that is currently lent out.
// It returns the member's 1-based position.
func (e *Engine) Reserve(memberID, bookID string, on time.Time) (int, error) {
	book, member, err := e.lookup(bookID, memberID)
	if err != nil {
		return 0, err
	}
	if book.Available() {
		return 0, fmt.Errorf("%w: book %q is available, borrow it instead", ErrInvalidState, book.ID)
	}
	if sameID(book.borrower.MemberID, member.ID) {
		return 0, fmt.Errorf("%w: member %q already holds book %q", ErrInvalidState, member.ID, book.ID)
	}
	pos, err := e.enqueue(book, member)
	if err != nil {
		return 0, err
	}
	e.observer.Notify(newEvent(EventReservationAdded, book.ID, member.ID, member.Name, Day(on)))
	return pos, nil
}

// CancelReservation removes the member from the book's waiting line and from the
// member's own waiting set.
func (e *Engine) CancelReservation(memberID, bookID string, on time.Time) error {
	book, member, err := e.lookup(bookID, memberID)
	if err != nil {
		return err
	}
	queued := book.QueuePosition(member.ID) > 0
	if !queued && !member.IsWaitingFor(book.ID) {
		return fmt.Errorf("%w: member %q has no reservation for book %q", ErrNotFound, member.ID, book.ID)
	}
	if queued {
		_ = e.catalog.CancelReservation(book.ID, member.ID)
	}
	if member.IsWaitingFor(book.ID) {
		_ = e.directory.RemoveReservation(member.ID, book.ID)
	}
	e.observer.Notify(newEvent(EventReservationCanceled, book.ID, member.ID, member.Name, Day(on)))
	return nil
}

func (e *Engine) enqueue(book *Book, member *Member) (int, error) {
	if err := e.catalog.AddReservation(book.ID, member.ID, member.Name); err != nil {
		return 0, err
	}
	if err := e.directory.AddReservation(member.ID, book.ID); err != nil && !errors.Is(err, ErrDuplicate) {
		_ = e.catalog.CancelReservation(book.ID, member.ID)
		return 0, err
	}
	return book.QueuePosition(member.ID), nil
}

func (e *Engine) lend(book *Book, member *Member, on time.Time) *BorrowRecord {
	book.lendTo(Borrower{MemberID: member.ID, MemberName: member.Name})
	e.directory.recordBorrow(member, book.ID)
	rec := &BorrowRecord{
		BookID:     book.ID,
		MemberID:   member.ID,
		MemberName: member.Name,
		BorrowDate: Day(on),
	}
	e.records.AddLast(rec)
	return rec
}

func (e *Engine) openRecord(bookID, memberID string) *BorrowRecord {
	var found *BorrowRecord
	e.records.Each(func(r *BorrowRecord) bool {
		if r.Open() && sameID(r.BookID, bookID) && sameID(r.MemberID, memberID) {
			found = r
			return false
		}
		return true
	})
	return found
}

// RetireBook removes a book from the catalog after clearing its waiting line on both
// sides. A book that is lent out cannot be retired. Its borrow history is kept.
func (e *Engine) RetireBook(bookID string, on time.Time) error {
	book, err := e.catalog.Get(bookID)
	if err != nil {
		return err
	}
	if !book.Available() {
		return fmt.Errorf("%w: book %q is lent to %q", ErrInvalidState, book.ID, book.borrower.MemberID)
	}
	for _, r := range book.Reservations() {
		if m, err := e.directory.Get(r.MemberID); err == nil && m.IsWaitingFor(book.ID) {
			_ = e.directory.RemoveReservation(m.ID, book.ID)
		}
	}
	if err := e.catalog.Remove(book.ID); err != nil {
		return err
	}
	e.observer.Notify(newEvent(EventBookRetired, book.ID, "", "", Day(on)))
	return nil
}

// RetireMember removes a member after withdrawing their reservations. A member who
// still holds books cannot be retired.
func (e *Engine) RetireMember(memberID string, on time.Time) error {
	member, err := e.directory.Get(memberID)
	if err != nil {
		return err
	}
	if len(member.borrowed) > 0 || len(e.BorrowedBookIDs(member.ID)) > 0 {
		return fmt.Errorf("%w: member %q still holds books", ErrInvalidState, member.ID)
	}
	for _, bookID := range member.Waiting() {
		_ = e.catalog.CancelReservation(bookID, member.ID)
	}
	// reservations the member side lost track of
	for _, r := range e.catalog.Reservations() {
		if sameID(r.MemberID, member.ID) {
			_ = e.catalog.CancelReservation(r.BookID, member.ID)
		}
	}
	if err := e.directory.Remove(member.ID); err != nil {
		return err
	}
	e.observer.Notify(newEvent(EventMemberRetired, "", member.ID, member.Name, Day(on)))
	return nil
}

// DeleteRecords is the administrative delete: it drops the closed records of a
// (book, member) pair and returns how many were removed. Open records are never deleted.
func (e *Engine) DeleteRecords(bookID, memberID string, on time.Time) (int, error) {
	var closed []*BorrowRecord
	open := false
	e.records.Each(func(r *BorrowRecord) bool {
		if sameID(r.BookID, bookID) && sameID(r.MemberID, memberID) {
			if r.Open() {
				open = true
			} else {
				closed = append(closed, r)
			}
		}
		return true
	})
	if len(closed) == 0 {
		if open {
			return 0, fmt.Errorf("%w: borrow of book %q by member %q is still open", ErrInvalidState, bookID, memberID)
		}
		return 0, fmt.Errorf("%w: no borrow records for book %q and member %q", ErrNotFound, bookID, memberID)
	}
	for _, r := range closed {
		e.records.RemoveItem(r)
	}
	e.observer.Notify(newEvent(EventRecordsDeleted, bookID, memberID, "", Day(on)))
	return len(closed), nil
}

// Records returns a copy of the full borrow history in creation order.
func (e *Engine) Records() []BorrowRecord {
	return e.selectRecords(func(*BorrowRecord) bool { return true })
}

func (e *Engine) RecordsByMember(memberID string) []BorrowRecord {
	return e.selectRecords(func(r *BorrowRecord) bool { return sameID(r.MemberID, memberID) })
}

func (e *Engine) RecordsByBook(bookID string) []BorrowRecord {
	return e.selectRecords(func(r *BorrowRecord) bool { return sameID(r.BookID, bookID) })
}

// OpenRecords returns the records of books currently lent out.
func (e *Engine) OpenRecords() []BorrowRecord {
	return e.selectRecords((*BorrowRecord).Open)
}

// IsBorrowedBy reports whether the member has an open record for the book.
func (e *Engine) IsBorrowedBy(bookID, memberID string) bool {
	return e.openRecord(bookID, memberID) != nil
}

// BorrowedBookIDs lists the books the member currently has, per the open records.
func (e *Engine) BorrowedBookIDs(memberID string) []string {
	ids := make([]string, 0)
	for _, r := range e.selectRecords(func(r *BorrowRecord) bool { return r.Open() && sameID(r.MemberID, memberID) }) {
		ids = append(ids, r.BookID)
	}
	return ids
}

func (e *Engine) selectRecords(keep func(*BorrowRecord) bool) []BorrowRecord {
	out := make([]BorrowRecord, 0)
	e.records.Each(func(r *BorrowRecord) bool {
		if keep(r) {
			cp := *r
			if r.ReturnDate != nil {
				d := *r.ReturnDate
				cp.ReturnDate = &d
			}
			out = append(out, cp)
		}
		return true
	})
	return out
}

// restoreRecord appends a persisted record. A second open record for the same pair
// is rejected to keep at most one open borrow per (book, member).
func (e *Engine) restoreRecord(r BorrowRecord) error {
	if r.Open() && e.openRecord(r.BookID, r.MemberID) != nil {
		return fmt.Errorf("%w: duplicate open record for book %q and member %q", ErrDuplicate, r.BookID, r.MemberID)
	}
	cp := r
	e.records.AddLast(&cp)
	return nil
}
