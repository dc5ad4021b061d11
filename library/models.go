package library

import (
	"time"

	"library-lending/collections"
)

// DateLayout is the calendar date format used for borrow and return dates.
const DateLayout = "2006-01-02"

// Borrower identifies the member currently holding a book.
type Borrower struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
}

// Reservation is one entry of a book's waiting line. Id and name travel
// together so the queue can never get them out of step.
type Reservation struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
}

// ReservationEntry is a reservation flattened with its book id for listings.
type ReservationEntry struct {
	BookID     string `json:"book_id"`
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
}

// Book is a catalog entry. Metadata is plain data; the lending fields are only
// changed by the Engine so that availability and the borrower never disagree.
type Book struct {
	ID       string
	Title    string
	Author   string
	Category string

	borrower     *Borrower
	borrowCount  int
	reservations *collections.Queue[Reservation]
}

// NewBook returns an available book with no history.
func NewBook(id, title, author, category string) *Book {
	return &Book{
		ID:           id,
		Title:        title,
		Author:       author,
		Category:     category,
		reservations: collections.NewQueue[Reservation](),
	}
}

// Available reports whether nobody holds the book.
func (b *Book) Available() bool { return b.borrower == nil }

// Borrower returns the current holder, or nil when the book is available.
func (b *Book) Borrower() *Borrower {
	if b.borrower == nil {
		return nil
	}
	cp := *b.borrower
	return &cp
}

func (b *Book) BorrowCount() int { return b.borrowCount }

// Reservations returns the waiting line head first.
func (b *Book) Reservations() []Reservation { return b.reservations.Items() }

// QueuePosition returns the 1-based position of memberID in the waiting line, or 0.
func (b *Book) QueuePosition(memberID string) int {
	return b.reservations.IndexFunc(func(r Reservation) bool { return sameID(r.MemberID, memberID) }) + 1
}

func (b *Book) lendTo(to Borrower) {
	b.borrower = &to
	b.borrowCount++
}

func (b *Book) release() { b.borrower = nil }

// BookState is the persisted shape of a Book.
type BookState struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	Category     string        `json:"category"`
	Borrower     *Borrower     `json:"borrower,omitempty"`
	BorrowCount  int           `json:"borrow_count"`
	Reservations []Reservation `json:"reservations"`
}

// State captures the book for persistence.
func (b *Book) State() BookState {
	return BookState{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		Category:     b.Category,
		Borrower:     b.Borrower(),
		BorrowCount:  b.borrowCount,
		Reservations: b.Reservations(),
	}
}

// RestoreBook rebuilds a Book from persisted state.
func RestoreBook(s BookState) *Book {
	b := NewBook(s.ID, s.Title, s.Author, s.Category)
	if s.Borrower != nil {
		cp := *s.Borrower
		b.borrower = &cp
	}
	b.borrowCount = max(s.BorrowCount, 0)
	for _, r := range s.Reservations {
		if b.QueuePosition(r.MemberID) == 0 {
			b.reservations.Enqueue(r)
		}
	}
	return b
}

// Member is a registered library member.
type Member struct {
	ID   string
	Name string

	borrowed []string
	waiting  []string
}

func NewMember(id, name string) *Member {
	return &Member{ID: id, Name: name}
}

// Borrowed returns the ids of books the member currently holds.
func (m *Member) Borrowed() []string { return append([]string(nil), m.borrowed...) }

// Waiting returns the ids of books the member is queued for.
func (m *Member) Waiting() []string { return append([]string(nil), m.waiting...) }

// Holds reports whether bookID is in the member's borrowed set.
func (m *Member) Holds(bookID string) bool { return indexOfID(m.borrowed, bookID) >= 0 }

// IsWaitingFor reports whether bookID is in the member's waiting set.
func (m *Member) IsWaitingFor(bookID string) bool { return indexOfID(m.waiting, bookID) >= 0 }

// MemberState is the persisted shape of a Member.
type MemberState struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Borrowed []string `json:"borrowed"`
	Waiting  []string `json:"waiting"`
}

func (m *Member) State() MemberState {
	return MemberState{ID: m.ID, Name: m.Name, Borrowed: m.Borrowed(), Waiting: m.Waiting()}
}

// RestoreMember rebuilds a Member from persisted state, dropping duplicate ids.
func RestoreMember(s MemberState) *Member {
	m := NewMember(s.ID, s.Name)
	m.borrowed = addID(nil, s.Borrowed...)
	m.waiting = addID(nil, s.Waiting...)
	return m
}

// BorrowRecord is one lending of a book to a member. ReturnDate stays nil while open;
// a closed record is never reopened.
type BorrowRecord struct {
	BookID     string     `json:"book_id"`
	MemberID   string     `json:"member_id"`
	MemberName string     `json:"member_name"`
	BorrowDate time.Time  `json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// Open reports whether the book has not been returned yet.
func (r *BorrowRecord) Open() bool { return r.ReturnDate == nil }

// Snapshot is the complete persisted library state.
type Snapshot struct {
	Books   []BookState    `json:"books"`
	Members []MemberState  `json:"members"`
	Records []BorrowRecord `json:"records"`
}

// Store is the persistence gateway. Save fully overwrites the stored state.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Close() error
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
