package library

import (
	"fmt"
	"strconv"
	"strings"

	"library-lending/collections"
)

const memberIDPrefix = "M"

// Directory owns the member collection: the ordered ledger plus an id index.
type Directory struct {
	members *collections.Ledger[*Member]
	index   *collections.KeyIndex[*Member]
	lastSeq int
}

func NewDirectory() *Directory {
	return &Directory{
		members: collections.NewLedger[*Member](),
		index:   collections.NewKeyIndex[*Member](),
	}
}

// Add registers a member. An empty id is replaced by the next "M" + zero-padded number.
func (d *Directory) Add(id, name string) (*Member, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return nil, err
	}
	if id == "" {
		id = d.nextID()
	} else if err := checkID("member", id); err != nil {
		return nil, err
	}
	m := NewMember(id, name)
	if err := d.insert(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Directory) insert(m *Member) error {
	key := indexKey(m.ID)
	if d.index.ContainsKey(key) {
		return fmt.Errorf("%w: member %q", ErrDuplicate, m.ID)
	}
	d.members.AddLast(m)
	d.index.Put(key, m)
	if seq, ok := memberSeq(m.ID); ok && seq > d.lastSeq {
		d.lastSeq = seq
	}
	return nil
}

func (d *Directory) nextID() string {
	for {
		d.lastSeq++
		id := fmt.Sprintf("%s%03d", memberIDPrefix, d.lastSeq)
		if !d.index.ContainsKey(indexKey(id)) {
			return id
		}
	}
}

// memberSeq extracts the numeric part of an id of the form M###.
func memberSeq(id string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.ToUpper(id), memberIDPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Remove drops the member from the directory.
func (d *Directory) Remove(id string) error {
	m, ok := d.index.Remove(indexKey(id))
	if !ok {
		return fmt.Errorf("%w: member %q", ErrNotFound, id)
	}
	d.members.RemoveItem(m)
	return nil
}

// Get returns the member with the given id.
func (d *Directory) Get(id string) (*Member, error) {
	m, ok := d.index.Get(indexKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: member %q", ErrNotFound, id)
	}
	return m, nil
}

// Rename changes a member's display name.
func (d *Directory) Rename(id, name string) error {
	m, err := d.Get(id)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return err
	}
	m.Name = name
	return nil
}

func (d *Directory) Len() int { return d.members.Len() }

// All returns the members in registration order. The slice is a copy.
func (d *Directory) All() []*Member { return d.members.Items() }

// SearchByName returns members whose name contains q, ignoring case.
func (d *Directory) SearchByName(q string) []*Member {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]*Member, 0)
	d.members.Each(func(m *Member) bool {
		if strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, m)
		}
		return true
	})
	return out
}

// FindOrAdd returns the member whose name equals name (ignoring case), else the
// first partial match, else a newly registered member. created reports the last case.
func (d *Directory) FindOrAdd(name string) (m *Member, created bool, err error) {
	name = strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	matches := d.SearchByName(name)
	for _, candidate := range matches {
		if strings.EqualFold(candidate.Name, name) {
			return candidate, false, nil
		}
	}
	if len(matches) > 0 {
		return matches[0], false, nil
	}
	m, err = d.Add("", name)
	return m, err == nil, err
}

// AddReservation mirrors a book reservation onto the member's waiting set.
func (d *Directory) AddReservation(memberID, bookID string) error {
	m, err := d.Get(memberID)
	if err != nil {
		return err
	}
	if m.IsWaitingFor(bookID) {
		return fmt.Errorf("%w: member %q already waiting for book %q", ErrDuplicate, memberID, bookID)
	}
	m.waiting = append(m.waiting, bookID)
	return nil
}

// RemoveReservation drops bookID from the member's waiting set.
func (d *Directory) RemoveReservation(memberID, bookID string) error {
	m, err := d.Get(memberID)
	if err != nil {
		return err
	}
	if !m.IsWaitingFor(bookID) {
		return fmt.Errorf("%w: member %q is not waiting for book %q", ErrNotFound, memberID, bookID)
	}
	m.waiting = removeID(m.waiting, bookID)
	return nil
}

// recordBorrow and recordReturn are called by the Engine only.
func (d *Directory) recordBorrow(m *Member, bookID string) {
	m.borrowed = addID(m.borrowed, bookID)
}

func (d *Directory) recordReturn(m *Member, bookID string) {
	m.borrowed = removeID(m.borrowed, bookID)
}
