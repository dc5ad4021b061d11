package library

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"library-lending/collections"
)

// Catalog owns the book collection: the ordered ledger plus an id index.
// It handles structural changes and queries; lending transitions go through the Engine.
type Catalog struct {
	books *collections.Ledger[*Book]
	index *collections.KeyIndex[*Book]
}

func NewCatalog() *Catalog {
	return &Catalog{
		books: collections.NewLedger[*Book](),
		index: collections.NewKeyIndex[*Book](),
	}
}

// Add inserts a new book. The id must not already be present.
func (c *Catalog) Add(b *Book) error {
	if err := checkID("book", b.ID); err != nil {
		return err
	}
	key := indexKey(b.ID)
	if c.index.ContainsKey(key) {
		return fmt.Errorf("%w: book %q", ErrDuplicate, b.ID)
	}
	c.books.AddLast(b)
	c.index.Put(key, b)
	return nil
}

// Remove drops the book from the catalog.
func (c *Catalog) Remove(id string) error {
	b, ok := c.index.Remove(indexKey(id))
	if !ok {
		return fmt.Errorf("%w: book %q", ErrNotFound, id)
	}
	c.books.RemoveItem(b)
	return nil
}

// Get returns the book with the given id.
func (c *Catalog) Get(id string) (*Book, error) {
	b, ok := c.index.Get(indexKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: book %q", ErrNotFound, id)
	}
	return b, nil
}

// Update replaces the descriptive metadata of a book.
func (c *Catalog) Update(id, title, author, category string) error {
	b, err := c.Get(id)
	if err != nil {
		return err
	}
	b.Title, b.Author, b.Category = title, author, category
	return nil
}

func (c *Catalog) Len() int { return c.books.Len() }

// All returns the books in insertion order. The slice is a copy.
func (c *Catalog) All() []*Book { return c.books.Items() }

// SearchByID returns the matching book as a zero- or one-element list.
func (c *Catalog) SearchByID(id string) []*Book {
	if b, err := c.Get(id); err == nil {
		return []*Book{b}
	}
	return []*Book{}
}

func (c *Catalog) SearchByTitle(q string) []*Book {
	return c.filter(func(b *Book) string { return b.Title }, q)
}

func (c *Catalog) SearchByAuthor(q string) []*Book {
	return c.filter(func(b *Book) string { return b.Author }, q)
}

func (c *Catalog) SearchByCategory(q string) []*Book {
	return c.filter(func(b *Book) string { return b.Category }, q)
}

func (c *Catalog) filter(field func(*Book) string, q string) []*Book {
	q = strings.ToLower(q)
	out := make([]*Book, 0)
	c.books.Each(func(b *Book) bool {
		if strings.Contains(strings.ToLower(field(b)), q) {
			out = append(out, b)
		}
		return true
	})
	return out
}

func (c *Catalog) SortByTitle(ascending bool) []*Book {
	return c.sortBy(func(b *Book) string { return b.Title }, ascending)
}

func (c *Catalog) SortByAuthor(ascending bool) []*Book {
	return c.sortBy(func(b *Book) string { return b.Author }, ascending)
}

func (c *Catalog) SortByCategory(ascending bool) []*Book {
	return c.sortBy(func(b *Book) string { return b.Category }, ascending)
}

func (c *Catalog) sortBy(field func(*Book) string, ascending bool) []*Book {
	out := c.books.Items()
	slices.SortStableFunc(out, func(a, b *Book) int {
		r := compareFold(field(a), field(b))
		if !ascending {
			r = -r
		}
		return r
	})
	return out
}

// SortByPopularity orders books by borrow count ascending, ties broken by title.
func (c *Catalog) SortByPopularity() []*Book {
	out := c.books.Items()
	slices.SortStableFunc(out, func(a, b *Book) int {
		if r := cmp.Compare(a.borrowCount, b.borrowCount); r != 0 {
			return r
		}
		return compareFold(a.Title, b.Title)
	})
	return out
}

// MostBorrowed returns up to n books with the highest borrow counts, highest first.
// Equal counts rank by title so the result is stable.
func (c *Catalog) MostBorrowed(n int) []*Book {
	return collections.TopN(c.books.Items(), n, rankByBorrowCount)
}

func rankByBorrowCount(a, b *Book) int {
	if r := cmp.Compare(a.borrowCount, b.borrowCount); r != 0 {
		return r
	}
	return compareFold(b.Title, a.Title)
}

// AddReservation appends a member to the book's waiting line.
func (c *Catalog) AddReservation(bookID, memberID, memberName string) error {
	b, err := c.Get(bookID)
	if err != nil {
		return err
	}
	if b.QueuePosition(memberID) > 0 {
		return fmt.Errorf("%w: member %q already queued for book %q", ErrDuplicate, memberID, bookID)
	}
	b.reservations.Enqueue(Reservation{MemberID: memberID, MemberName: memberName})
	return nil
}

// CancelReservation removes a member from the book's waiting line wherever they stand.
func (c *Catalog) CancelReservation(bookID, memberID string) error {
	b, err := c.Get(bookID)
	if err != nil {
		return err
	}
	if _, ok := b.reservations.RemoveFunc(func(r Reservation) bool { return sameID(r.MemberID, memberID) }); !ok {
		return fmt.Errorf("%w: member %q has no reservation for book %q", ErrNotFound, memberID, bookID)
	}
	return nil
}

// Reservations lists every queued reservation across all books, in catalog then queue order.
func (c *Catalog) Reservations() []ReservationEntry {
	out := make([]ReservationEntry, 0)
	c.books.Each(func(b *Book) bool {
		for _, r := range b.reservations.Items() {
			out = append(out, ReservationEntry{BookID: b.ID, MemberID: r.MemberID, MemberName: r.MemberName})
		}
		return true
	})
	return out
}

func compareFold(a, b string) int {
	if r := strings.Compare(strings.ToLower(a), strings.ToLower(b)); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// indexKey normalizes ids so lookups ignore case and surrounding blanks.
func indexKey(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

func sameID(a, b string) bool { return indexKey(a) == indexKey(b) }

func indexOfID(ids []string, id string) int {
	return slices.IndexFunc(ids, func(s string) bool { return sameID(s, id) })
}

func addID(ids []string, add ...string) []string {
	for _, id := range add {
		if indexOfID(ids, id) < 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func removeID(ids []string, id string) []string {
	if i := indexOfID(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
