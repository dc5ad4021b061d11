package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/library"
	"library-lending/storage/textfile"
)

func pipedStdin(t *testing.T) {
	prev := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = prev })
}

func clearLibraryEnv(t *testing.T) {
	for _, k := range []string{
		"LIBRARY_STORE", "LIBRARY_DATA_DIR", "LIBRARY_DB_PATH", "LIBRARY_SORT_BOOKS_ON_SAVE",
		"LIBRARY_LOG_LEVEL", "LIBRARY_LOG_FORMAT", "LIBRARY_OPERATOR_USER", "LIBRARY_OPERATOR_PASSWORD_HASH",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func runRoot(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDeskSession(t *testing.T) {
	pipedStdin(t)
	clearLibraryEnv(t)
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	script := strings.Join([]string{
		"admin", "1234",
		"add book", "B1", "Dune", "Herbert", "SciFi",
		"add member", "", "Ann",
		"borrow", "B1", "Ann",
		"borrow", "B1", "Bob",
		"return", "B1", "M001",
		"list books",
		"exit",
	}, "\n") + "\n"

	out, err := runRoot(t, script,
		"--env-file", filepath.Join(dir, "none.env"),
		"--data-dir", dataDir,
		"--log-file", filepath.Join(dir, "desk.log"))
	require.NoError(t, err)

	assert.Contains(t, out, "Welcome, admin.")
	assert.Contains(t, out, "Added member 'Ann' with ID M001")
	assert.Contains(t, out, "Book 'Dune' borrowed by Ann on")
	assert.Contains(t, out, "Registered new member 'Bob' with ID M002")
	assert.Contains(t, out, "Position in queue: 1")
	assert.Contains(t, out, "Book automatically assigned to Bob")
	assert.Contains(t, out, "Goodbye!")

	store, err := textfile.New(dataDir)
	require.NoError(t, err)
	snap, err := store.Load()
	require.NoError(t, err)
	require.Len(t, snap.Books, 1)
	require.NotNil(t, snap.Books[0].Borrower)
	assert.Equal(t, "M002", snap.Books[0].Borrower.MemberID)
	assert.Equal(t, 2, snap.Books[0].BorrowCount)
	assert.Len(t, snap.Records, 2)

	logs, err := os.ReadFile(filepath.Join(dir, "desk.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "ReservationPromoted")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	pipedStdin(t)
	op, err := library.NewOperator("", "")
	require.NoError(t, err)

	input := strings.Repeat("admin\nnope\n", maxLoginAttempts)
	var out bytes.Buffer
	err = login(bufio.NewScanner(strings.NewReader(input)), &out, op)
	require.ErrorIs(t, err, library.ErrUnauthorized)
	assert.Contains(t, out.String(), "Invalid credentials (3/3).")
}

func TestShellReportsErrors(t *testing.T) {
	store, err := textfile.New(t.TempDir())
	require.NoError(t, err)
	mgr, err := library.NewLibraryManager(store)
	require.NoError(t, err)

	script := strings.Join([]string{
		"return", "B9", "M001",
		"reserve", "B9", "Ann",
		"remove member", "M404",
		"frobnicate",
	}, "\n") + "\n"
	var out bytes.Buffer
	newShell(bufio.NewScanner(strings.NewReader(script)), &out, mgr).run()

	assert.Contains(t, out.String(), "Error returning book: not found")
	assert.Contains(t, out.String(), "Error reserving book: not found")
	assert.Contains(t, out.String(), "Error removing member: not found")
	assert.Contains(t, out.String(), "Unknown command.")
}

func TestExportJSON(t *testing.T) {
	snap := library.Snapshot{
		Books:   []library.BookState{{ID: "B1", Title: "Dune", Reservations: []library.Reservation{}}},
		Members: []library.MemberState{{ID: "M001", Name: "Ann"}},
		Records: []library.BorrowRecord{},
	}
	var buf bytes.Buffer
	require.NoError(t, exportJSON(&buf, snap))

	var decoded map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["books"], 1)
	assert.Len(t, decoded["members"], 1)
	assert.Contains(t, buf.String(), `"Dune"`)
}

func TestShellRejectsUnknownMemberID(t *testing.T) {
	store, err := textfile.New(t.TempDir())
	require.NoError(t, err)
	mgr, err := library.NewLibraryManager(store)
	require.NoError(t, err)
	_, err = mgr.AddBook("B1", "Dune", "Herbert", "SciFi")
	require.NoError(t, err)

	script := strings.Join([]string{
		"borrow", "B1", "M099",
		"reserve", "B1", "m042",
		"borrow", "B1", "Zoe",
	}, "\n") + "\n"
	var out bytes.Buffer
	newShell(bufio.NewScanner(strings.NewReader(script)), &out, mgr).run()

	assert.Contains(t, out.String(), `Error: not found: member "M099"`)
	assert.Contains(t, out.String(), `Error: not found: member "m042"`)
	assert.NotContains(t, out.String(), "Registered new member 'M099'")
	assert.Contains(t, out.String(), "Registered new member 'Zoe' with ID M001")
	assert.Contains(t, out.String(), "Book 'Dune' borrowed by Zoe")

	members := mgr.GetAllMembers()
	require.Len(t, members, 1)
	assert.Equal(t, "Zoe", members[0].Name)
}

func TestTruncateStringKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Dune", 10, "Dune"},
		{"Cien años de soledad", 10, "Cien añ..."},
		{"ñññññ", 5, "ñññññ"},
		{"ñññññ", 3, "ñññ"},
	}
	for _, tt := range tests {
		got := truncateString(tt.in, tt.max)
		assert.Equal(t, tt.want, got, tt.in)
		assert.True(t, utf8.ValidString(got), tt.in)
	}
}
