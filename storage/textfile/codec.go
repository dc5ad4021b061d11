package textfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"library-lending/library"
)

const (
	statusAvailable = "available"
	statusBorrowed  = "borrowed"
	noneValue       = "none"
	emptyList       = "[none]"
	notReturned     = "not returned"

	bookFields   = 8
	memberFields = 4
	recordFields = 5
)

// ---------------------------------------------------------------------------
// Books: id,title,author,category,status,borrower,borrowCount,[queue]
// ---------------------------------------------------------------------------

func encodeBook(b library.BookState) []string {
	status, borrower := statusAvailable, noneValue
	if b.Borrower != nil {
		status = statusBorrowed
		borrower = b.Borrower.MemberID + ":" + b.Borrower.MemberName
	}
	queue := make([]string, 0, len(b.Reservations))
	for _, r := range b.Reservations {
		queue = append(queue, r.MemberID+":"+r.MemberName)
	}
	return []string{
		b.ID, b.Title, b.Author, b.Category,
		status, borrower, strconv.Itoa(b.BorrowCount), encodeList(queue),
	}
}

func decodeBook(f []string) (library.BookState, error) {
	if len(f) != bookFields {
		return library.BookState{}, fieldCountError("book", bookFields, len(f))
	}
	b := library.BookState{
		ID:       strings.TrimSpace(f[0]),
		Title:    f[1],
		Author:   f[2],
		Category: f[3],
	}
	if b.ID == "" {
		return b, fmt.Errorf("%w: book id is empty", library.ErrParseFailure)
	}

	count, err := strconv.Atoi(strings.TrimSpace(f[6]))
	if err != nil || count < 0 {
		return b, fmt.Errorf("%w: book %q borrow count %q", library.ErrParseFailure, b.ID, f[6])
	}
	b.BorrowCount = count

	if borrower := strings.TrimSpace(f[5]); borrower != noneValue {
		id, name, err := splitPair(borrower)
		if err != nil {
			return b, fmt.Errorf("%w: book %q borrower: %w", library.ErrParseFailure, b.ID, err)
		}
		b.Borrower = &library.Borrower{MemberID: id, MemberName: name}
	}
	switch status := strings.TrimSpace(f[4]); {
	case status == statusBorrowed && b.Borrower == nil,
		status == statusAvailable && b.Borrower != nil:
		return b, fmt.Errorf("%w: book %q status %q disagrees with borrower", library.ErrParseFailure, b.ID, status)
	case status != statusBorrowed && status != statusAvailable:
		return b, fmt.Errorf("%w: book %q status %q", library.ErrParseFailure, b.ID, status)
	}

	items, err := decodeList(f[7])
	if err != nil {
		return b, fmt.Errorf("%w: book %q queue: %w", library.ErrParseFailure, b.ID, err)
	}
	b.Reservations = make([]library.Reservation, 0, len(items))
	for _, item := range items {
		id, name, err := splitPair(item)
		if err != nil {
			return b, fmt.Errorf("%w: book %q queue: %w", library.ErrParseFailure, b.ID, err)
		}
		b.Reservations = append(b.Reservations, library.Reservation{MemberID: id, MemberName: name})
	}
	return b, nil
}

// ---------------------------------------------------------------------------
// Members: id,name,[borrowed],[waiting]
// ---------------------------------------------------------------------------

func encodeMember(m library.MemberState) []string {
	return []string{m.ID, m.Name, encodeList(m.Borrowed), encodeList(m.Waiting)}
}

func decodeMember(f []string) (library.MemberState, error) {
	if len(f) != memberFields {
		return library.MemberState{}, fieldCountError("member", memberFields, len(f))
	}
	m := library.MemberState{ID: strings.TrimSpace(f[0]), Name: f[1]}
	if m.ID == "" {
		return m, fmt.Errorf("%w: member id is empty", library.ErrParseFailure)
	}
	var err error
	if m.Borrowed, err = decodeList(f[2]); err != nil {
		return m, fmt.Errorf("%w: member %q borrowed: %w", library.ErrParseFailure, m.ID, err)
	}
	if m.Waiting, err = decodeList(f[3]); err != nil {
		return m, fmt.Errorf("%w: member %q waiting: %w", library.ErrParseFailure, m.ID, err)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Borrow records: bookId,memberId,memberName,borrowDate,returnDate
// ---------------------------------------------------------------------------

func encodeRecord(r library.BorrowRecord) []string {
	ret := notReturned
	if r.ReturnDate != nil {
		ret = r.ReturnDate.Format(library.DateLayout)
	}
	return []string{r.BookID, r.MemberID, r.MemberName, r.BorrowDate.Format(library.DateLayout), ret}
}

func decodeRecord(f []string) (library.BorrowRecord, error) {
	if len(f) != recordFields {
		return library.BorrowRecord{}, fieldCountError("borrow record", recordFields, len(f))
	}
	r := library.BorrowRecord{
		BookID:     strings.TrimSpace(f[0]),
		MemberID:   strings.TrimSpace(f[1]),
		MemberName: f[2],
	}
	if r.BookID == "" || r.MemberID == "" {
		return r, fmt.Errorf("%w: borrow record without book or member id", library.ErrParseFailure)
	}
	borrowed, err := time.Parse(library.DateLayout, strings.TrimSpace(f[3]))
	if err != nil {
		return r, fmt.Errorf("%w: borrow date %q", library.ErrParseFailure, f[3])
	}
	r.BorrowDate = borrowed
	if ret := strings.TrimSpace(f[4]); ret != notReturned {
		returned, err := time.Parse(library.DateLayout, ret)
		if err != nil {
			return r, fmt.Errorf("%w: return date %q", library.ErrParseFailure, f[4])
		}
		r.ReturnDate = &returned
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// Shared field helpers
// ---------------------------------------------------------------------------

func encodeList(items []string) string {
	if len(items) == 0 {
		return emptyList
	}
	return "[" + strings.Join(items, ";") + "]"
}

func decodeList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("list %q is not bracketed", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == noneValue || inner == "" {
		return []string{}, nil
	}
	parts := strings.Split(inner, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// splitPair splits "id:name" at the first colon.
func splitPair(s string) (string, string, error) {
	id, name, ok := strings.Cut(s, ":")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", "", fmt.Errorf("%q is not id:name", s)
	}
	return id, name, nil
}

func fieldCountError(kind string, want, got int) error {
	return fmt.Errorf("%w: %s line has %d fields, want %d", library.ErrParseFailure, kind, got, want)
}
