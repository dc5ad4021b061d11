package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/library"
)

func tempDB(t *testing.T) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "library.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func snapshot() library.Snapshot {
	borrowed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	returned := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	return library.Snapshot{
		Books: []library.BookState{
			{ID: "B2", Title: "Emma", Author: "Austen", Category: "Classic", BorrowCount: 1,
				Reservations: []library.Reservation{}},
			{ID: "B1", Title: "Dune", Author: "Herbert", Category: "SciFi", BorrowCount: 3,
				Borrower: &library.Borrower{MemberID: "M001", MemberName: "Ann"},
				Reservations: []library.Reservation{{MemberID: "M003", MemberName: "Cid"}, {MemberID: "M002", MemberName: "Bob"}}},
		},
		Members: []library.MemberState{
			{ID: "M001", Name: "Ann", Borrowed: []string{"B1"}, Waiting: []string{}},
			{ID: "M002", Name: "Bob", Borrowed: []string{}, Waiting: []string{"B1"}},
			{ID: "M003", Name: "Cid", Borrowed: []string{}, Waiting: []string{"B1"}},
		},
		Records: []library.BorrowRecord{
			{BookID: "B2", MemberID: "M002", MemberName: "Bob", BorrowDate: borrowed, ReturnDate: &returned},
			{BookID: "B1", MemberID: "M001", MemberName: "Ann", BorrowDate: returned},
		},
	}
}

func TestEmptyDatabaseLoadsEmpty(t *testing.T) {
	db, _ := tempDB(t)
	snap, err := db.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Books)
	assert.Empty(t, snap.Members)
	assert.Empty(t, snap.Records)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db, path := tempDB(t)
	want := snapshot()
	require.NoError(t, db.Save(want))

	got, err := db.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// reopening runs migrations again without touching the data
	require.NoError(t, db.Close())
	reopened, err := NewDatabase(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err = reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveOverwrites(t *testing.T) {
	db, _ := tempDB(t)
	require.NoError(t, db.Save(snapshot()))

	smaller := library.Snapshot{
		Books: []library.BookState{{ID: "B9", Title: "Solo", Author: "X", Category: "Y", Reservations: []library.Reservation{}}},
	}
	require.NoError(t, db.Save(smaller))

	got, err := db.Load()
	require.NoError(t, err)
	require.Len(t, got.Books, 1)
	assert.Equal(t, "B9", got.Books[0].ID)
	assert.Empty(t, got.Members)
	assert.Empty(t, got.Records)
}

func TestManagerOnSQLite(t *testing.T) {
	db, _ := tempDB(t)
	mgr, err := library.NewLibraryManager(db)
	require.NoError(t, err)

	_, err = mgr.AddBook("B1", "Dune", "Herbert", "SciFi")
	require.NoError(t, err)
	_, err = mgr.AddMember("", "Ann")
	require.NoError(t, err)
	_, err = mgr.AddMember("", "Bob")
	require.NoError(t, err)
	_, err = mgr.Borrow("M001", "B1")
	require.NoError(t, err)
	res, err := mgr.Borrow("M002", "B1")
	require.NoError(t, err)
	assert.Equal(t, library.OutcomeQueued, res.Outcome)
	require.NoError(t, mgr.LastSaveError())

	reopened, err := library.NewLibraryManager(db)
	require.NoError(t, err)
	assert.Equal(t, mgr.Snapshot(), reopened.Snapshot())
}
