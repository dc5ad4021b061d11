package textfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/library"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) time.Time {
	d, err := time.Parse(library.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleSnapshot() library.Snapshot {
	returned := date("2024-03-08")
	return library.Snapshot{
		Books: []library.BookState{
			{ID: "B1", Title: "Dune", Author: "Herbert", Category: "SciFi",
				Borrower: &library.Borrower{MemberID: "M001", MemberName: "Ann"}, BorrowCount: 2,
				Reservations: []library.Reservation{{MemberID: "M002", MemberName: "Bob"}, {MemberID: "M003", MemberName: "Cid"}}},
			{ID: "B2", Title: "Anathem, Vol. 1", Author: "Stephenson", Category: "SciFi", BorrowCount: 0,
				Reservations: []library.Reservation{}},
		},
		Members: []library.MemberState{
			{ID: "M001", Name: "Ann", Borrowed: []string{"B1"}, Waiting: []string{}},
			{ID: "M002", Name: "Bob", Borrowed: []string{}, Waiting: []string{"B1"}},
			{ID: "M003", Name: "Cid", Borrowed: []string{}, Waiting: []string{"B1"}},
		},
		Records: []library.BorrowRecord{
			{BookID: "B1", MemberID: "M003", MemberName: "Cid", BorrowDate: date("2024-03-01"), ReturnDate: &returned},
			{BookID: "B1", MemberID: "M001", MemberName: "Ann", BorrowDate: date("2024-03-08")},
		},
	}
}

func readFile(t *testing.T, s *Store, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
	return string(data)
}

func TestSaveWritesLineFormats(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(sampleSnapshot()))

	assert.Equal(t,
		"B1,Dune,Herbert,SciFi,borrowed,M001:Ann,2,[M002:Bob;M003:Cid]\n"+
			"B2,\"Anathem, Vol. 1\",Stephenson,SciFi,available,none,0,[none]\n",
		readFile(t, s, BooksFile))
	assert.Equal(t,
		"M001,Ann,[B1],[none]\nM002,Bob,[none],[B1]\nM003,Cid,[none],[B1]\n",
		readFile(t, s, MembersFile))
	assert.Equal(t,
		"B1,M003,Cid,2024-03-01,2024-03-08\nB1,M001,Ann,2024-03-08,not returned\n",
		readFile(t, s, RecordsFile))
}

func TestRoundTrip(t *testing.T) {
	s := newStore(t)
	want := sampleSnapshot()
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRoundTripThroughManager(t *testing.T) {
	s := newStore(t)
	clock := library.WithClock(func() time.Time { return date("2024-03-01") })
	mgr, err := library.NewLibraryManager(s, clock)
	require.NoError(t, err)

	for _, b := range [][4]string{{"B1", "Dune", "Herbert", "SciFi"}, {"B2", "Emma", "Austen", "Classic"}} {
		_, err = mgr.AddBook(b[0], b[1], b[2], b[3])
		require.NoError(t, err)
	}
	for _, name := range []string{"Ann", "Bob", "Cid"} {
		_, err = mgr.AddMember("", name)
		require.NoError(t, err)
	}
	_, err = mgr.Borrow("M001", "B1")
	require.NoError(t, err)
	_, err = mgr.Borrow("M003", "B1")
	require.NoError(t, err)
	_, err = mgr.Reserve("M002", "B1")
	require.NoError(t, err)
	_, err = mgr.Borrow("M002", "B2")
	require.NoError(t, err)
	_, err = mgr.Return("M002", "B2")
	require.NoError(t, err)
	require.NoError(t, mgr.LastSaveError())

	reopened, err := library.NewLibraryManager(s, clock)
	require.NoError(t, err)

	for _, id := range []string{"B1", "B2"} {
		before, err := mgr.GetBook(id)
		require.NoError(t, err)
		after, err := reopened.GetBook(id)
		require.NoError(t, err)
		assert.Equal(t, before, after, id)
	}
	b1, err := reopened.GetBook("B1")
	require.NoError(t, err)
	assert.Equal(t, []library.Reservation{{MemberID: "M003", MemberName: "Cid"}, {MemberID: "M002", MemberName: "Bob"}}, b1.Reservations)
	assert.Equal(t, mgr.BorrowRecords(), reopened.BorrowRecords())
}

func TestRoundTripAwkwardText(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		member string
	}{
		{"comma", "Guns, Germs, and Steel", "Doe, Jane"},
		{"colon", "Dune: Messiah", "Smith: Jr"},
		{"quotes", `The "Best" Of`, `Jane "JJ" Doe`},
		{"brackets and semicolon in title", "[Draft]; v2", "Ann"},
		{"unicode", "Cien años de soledad", "José Ñúñez"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			clock := library.WithClock(func() time.Time { return date("2024-03-01") })
			mgr, err := library.NewLibraryManager(s, clock)
			require.NoError(t, err)

			_, err = mgr.AddBook("B1", tt.title, "Author", "Category")
			require.NoError(t, err)
			_, err = mgr.AddMember("", "Holder")
			require.NoError(t, err)
			_, err = mgr.AddMember("", tt.member)
			require.NoError(t, err)
			_, err = mgr.Borrow("M002", "B1")
			require.NoError(t, err)
			res, err := mgr.Borrow("M001", "B1")
			require.NoError(t, err)
			require.Equal(t, library.OutcomeQueued, res.Outcome)
			require.NoError(t, mgr.LastSaveError())

			reopened, err := library.NewLibraryManager(s, clock)
			require.NoError(t, err)
			assert.Equal(t, mgr.GetAllBooks(), reopened.GetAllBooks())
			assert.Equal(t, mgr.GetAllMembers(), reopened.GetAllMembers())
			assert.Equal(t, mgr.BorrowRecords(), reopened.BorrowRecords())

			// the reloaded book can still be returned and handed on
			ret, err := reopened.Return("M002", "B1")
			require.NoError(t, err)
			require.NotNil(t, ret.Promoted)
			assert.Equal(t, "M001", ret.Promoted.MemberID)
		})
	}
}

func TestDelimitersNeverReachTheFiles(t *testing.T) {
	s := newStore(t)
	mgr, err := library.NewLibraryManager(s)
	require.NoError(t, err)

	_, err = mgr.AddBook("B;1", "Dune", "Herbert", "SciFi")
	require.ErrorIs(t, err, library.ErrInvalidState)
	_, err = mgr.AddMember("A:1", "Ann")
	require.ErrorIs(t, err, library.ErrInvalidState)
	_, err = mgr.AddMember("", "Doe; Jane")
	require.ErrorIs(t, err, library.ErrInvalidState)

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Books)
	assert.Empty(t, snap.Members)
}

func TestLoadMissingFilesIsEmpty(t *testing.T) {
	s := newStore(t)
	snap, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Books)
	assert.Empty(t, snap.Members)
	assert.Empty(t, snap.Records)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	s := newStore(t)
	books := "B1,Dune,Herbert,SciFi,available,none,0,[none]\n" +
		"B2,Short,line\n" +
		"B3,Emma,Austen,Classic,borrowed,none,1,[none]\n" +
		"B4,Emma,Austen,Classic,available,none,many,[none]\n" +
		"B5,Anathem,Stephenson,SciFi,borrowed,M001:Ann,1,[M002:Bob]\n"
	records := "B5,M001,Ann,2024-13-01,not returned\n" +
		"B5,M001,Ann,2024-03-01,not returned\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), BooksFile), []byte(books), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), RecordsFile), []byte(records), 0o644))

	snap, err := s.Load()
	require.NoError(t, err)
	require.Len(t, snap.Books, 2)
	assert.Equal(t, "B1", snap.Books[0].ID)
	assert.Equal(t, "B5", snap.Books[1].ID)
	require.Len(t, snap.Records, 1)
	assert.True(t, snap.Records[0].Open())
}

func TestAlphabeticalSave(t *testing.T) {
	s := newStore(t, WithAlphabeticalBooks(true))
	require.NoError(t, s.Save(sampleSnapshot()))

	snap, err := s.Load()
	require.NoError(t, err)
	require.Len(t, snap.Books, 2)
	assert.Equal(t, "B2", snap.Books[0].ID)

	plain := newStore(t)
	require.NoError(t, plain.SaveBooksAlphabetically(sampleSnapshot().Books))
	snap, err = plain.Load()
	require.NoError(t, err)
	assert.Equal(t, "B2", snap.Books[0].ID)
}

func TestAppend(t *testing.T) {
	s := newStore(t)
	want := sampleSnapshot()
	for _, b := range want.Books {
		require.NoError(t, s.AppendBook(b))
	}
	for _, m := range want.Members {
		require.NoError(t, s.AppendMember(m))
	}
	for _, r := range want.Records {
		require.NoError(t, s.AppendRecord(r))
	}

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"[none]", []string{}, false},
		{"[]", []string{}, false},
		{"[B1]", []string{"B1"}, false},
		{"[B1; B2]", []string{"B1", "B2"}, false},
		{"B1;B2", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := decodeList(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
