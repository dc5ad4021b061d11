package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-lending/library"
)

// shell is the interactive desk. Every command prompts for its inputs line by line.
type shell struct {
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager
}

func newShell(sc *bufio.Scanner, out io.Writer, mgr *library.LibraryManager) *shell {
	return &shell{sc: sc, out: out, mgr: mgr}
}

func (s *shell) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }

func (s *shell) println(args ...any) { fmt.Fprintln(s.out, args...) }

// ask prints the prompt and returns the next trimmed input line.
func (s *shell) ask(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) printHelp() {
	s.println("Available commands:")
	s.println("  Books: add book, update book, remove book, list books, sort books, search book, top books")
	s.println("  Members: add member, rename member, remove member, list members, search member")
	s.println("  Circulation: borrow, return, reserve, cancel reservation, list reservations")
	s.println("  Records: list records, member records, book records, open records, delete records")
	s.println("  System: save, help, exit")
	s.println()
	s.println("Tips:")
	s.println("  • For 'borrow' and 'reserve' you may type a member name instead of an ID; unknown names are registered")
	s.println("  • For 'list reservations': Enter a Book ID for specific book, or press Enter to see all books")
}

func (s *shell) run() {
	s.println("Welcome to the Library Lending Desk!")
	s.printHelp()

	for {
		fmt.Fprint(s.out, "\n> ")
		if !s.sc.Scan() {
			break
		}
		cmd := strings.ToLower(strings.TrimSpace(s.sc.Text()))

		switch cmd {
		case "":
		case "add book":
			s.handleAddBook()
		case "update book":
			s.handleUpdateBook()
		case "remove book":
			s.handleRemoveBook()
		case "list books":
			s.printBooks(s.mgr.GetAllBooks())
		case "sort books":
			s.handleSortBooks()
		case "search book":
			s.handleSearchBooks()
		case "top books":
			s.handleTopBooks()
		case "add member":
			s.handleAddMember()
		case "rename member":
			s.handleRenameMember()
		case "remove member":
			s.handleRemoveMember()
		case "list members":
			s.printMembers(s.mgr.GetAllMembers())
		case "search member":
			s.handleSearchMembers()
		case "borrow":
			s.handleBorrow()
		case "return":
			s.handleReturn()
		case "reserve":
			s.handleReserve()
		case "cancel reservation":
			s.handleCancelReservation()
		case "list reservations":
			s.handleListReservations()
		case "list records":
			s.printRecords(s.mgr.BorrowRecords())
		case "member records":
			s.handleMemberRecords()
		case "book records":
			s.handleBookRecords()
		case "open records":
			s.printRecords(s.mgr.OpenRecords())
		case "delete records":
			s.handleDeleteRecords()
		case "save":
			if err := s.mgr.Flush(); err != nil {
				s.printf("Error saving: %v\n", err)
			} else {
				s.println("Library saved.")
			}
		case "help":
			s.printHelp()
		case "exit", "quit":
			s.println("Goodbye!")
			return
		default:
			s.println("Unknown command. Type 'help' to list the available commands.")
		}
	}
}

// ------------------ Books ------------------

func (s *shell) handleAddBook() {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	title, ok := s.ask("Title: ")
	if !ok {
		return
	}
	author, ok := s.ask("Author: ")
	if !ok {
		return
	}
	category, ok := s.ask("Category: ")
	if !ok {
		return
	}
	b, err := s.mgr.AddBook(id, title, author, category)
	if err != nil {
		s.printf("Error adding book: %v\n", err)
		return
	}
	s.printf("Added book '%s' with ID %s\n", b.Title, b.ID)
}

func (s *shell) handleUpdateBook() {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	b, err := s.mgr.GetBook(id)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	title, ok := s.ask(fmt.Sprintf("Title [%s]: ", b.Title))
	if !ok {
		return
	}
	author, ok := s.ask(fmt.Sprintf("Author [%s]: ", b.Author))
	if !ok {
		return
	}
	category, ok := s.ask(fmt.Sprintf("Category [%s]: ", b.Category))
	if !ok {
		return
	}
	if err := s.mgr.UpdateBook(b.ID, orDefault(title, b.Title), orDefault(author, b.Author), orDefault(category, b.Category)); err != nil {
		s.printf("Error updating book: %v\n", err)
		return
	}
	s.printf("Book %s updated\n", b.ID)
}

func (s *shell) handleRemoveBook() {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveBook(id); err != nil {
		s.printf("Error removing book: %v\n", err)
		return
	}
	s.printf("Book %s removed\n", id)
}

func (s *shell) handleSortBooks() {
	order, ok := s.ask("Order by (title/author/category/popularity): ")
	if !ok {
		return
	}
	desc, ok := s.ask("Descending? (y/N): ")
	if !ok {
		return
	}
	ascending := !strings.HasPrefix(strings.ToLower(desc), "y")

	var by library.BookOrder
	switch strings.ToLower(order) {
	case "title", "":
		by = library.OrderTitle
	case "author":
		by = library.OrderAuthor
	case "category":
		by = library.OrderCategory
	case "popularity":
		by = library.OrderPopularity
	default:
		s.printf("Unknown order: %s\n", order)
		return
	}
	s.printBooks(s.mgr.ListBooks(by, ascending))

	if by == library.OrderTitle && ascending {
		if err := s.mgr.SaveBooksAlphabetically(); err != nil && !errors.Is(err, library.ErrInvalidState) {
			s.printf("Error saving books alphabetically: %v\n", err)
		}
	}
}

func (s *shell) handleSearchBooks() {
	field, ok := s.ask("Search by (id/title/author/category): ")
	if !ok {
		return
	}
	query, ok := s.ask("Query: ")
	if !ok {
		return
	}

	var books []library.BookState
	switch strings.ToLower(field) {
	case "id":
		books = s.mgr.SearchBooks(library.FieldID, query)
	case "author":
		books = s.mgr.SearchBooks(library.FieldAuthor, query)
	case "category":
		books = s.mgr.SearchBooks(library.FieldCategory, query)
	case "title", "":
		books = s.mgr.SearchBooks(library.FieldTitle, query)
	default:
		s.printf("Unknown field: %s\n", field)
		return
	}
	if len(books) == 0 {
		s.printf("No books found matching '%s'.\n", query)
		return
	}
	s.printf("Found %d book(s) matching '%s':\n", len(books), query)
	s.printBooks(books)
}

func (s *shell) handleTopBooks() {
	in, ok := s.ask("How many: ")
	if !ok {
		return
	}
	n, err := strconv.Atoi(orDefault(in, "5"))
	if err != nil || n < 0 {
		s.printf("Invalid number: %s\n", in)
		return
	}
	books := s.mgr.MostBorrowedBooks(n)
	if len(books) == 0 {
		s.println("No books in library.")
		return
	}
	s.printf("%-5s %-8s %-30s %-25s\n", "Rank", "Borrows", "Title", "Author")
	s.println(strings.Repeat("-", 70))
	for i, b := range books {
		s.printf("%-5d %-8d %-30s %-25s\n", i+1, b.BorrowCount, truncateString(b.Title, 30), truncateString(b.Author, 25))
	}
}

func (s *shell) printBooks(books []library.BookState) {
	if len(books) == 0 {
		s.println("No books in library.")
		return
	}
	s.printf("%-8s %-30s %-20s %-12s %-10s %-20s %-7s %s\n",
		"ID", "Title", "Author", "Category", "Status", "Borrower", "Borrows", "Reservation Queue")
	s.println(strings.Repeat("-", 130))
	for _, b := range books {
		status, borrower := "available", "None"
		if b.Borrower != nil {
			status = "borrowed"
			borrower = fmt.Sprintf("%s (%s)", b.Borrower.MemberName, b.Borrower.MemberID)
		}
		s.printf("%-8s %-30s %-20s %-12s %-10s %-20s %-7d %s\n",
			truncateString(b.ID, 8),
			truncateString(b.Title, 30),
			truncateString(b.Author, 20),
			truncateString(b.Category, 12),
			status,
			truncateString(borrower, 20),
			b.BorrowCount,
			queueInfo(b.Reservations))
	}
}

func queueInfo(queue []library.Reservation) string {
	if len(queue) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(queue))
	for i, r := range queue {
		parts = append(parts, fmt.Sprintf("%d. %s (%s)", i+1, r.MemberName, r.MemberID))
	}
	return strings.Join(parts, ", ")
}

// ------------------ Members ------------------

func (s *shell) handleAddMember() {
	id, ok := s.ask("Member ID (press Enter to generate): ")
	if !ok {
		return
	}
	name, ok := s.ask("Name: ")
	if !ok {
		return
	}
	m, err := s.mgr.AddMember(id, name)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Added member '%s' with ID %s\n", m.Name, m.ID)
}

func (s *shell) handleRenameMember() {
	id, ok := s.ask("Member ID: ")
	if !ok {
		return
	}
	name, ok := s.ask("New name: ")
	if !ok {
		return
	}
	if name == "" {
		s.println("Error: Name cannot be empty")
		return
	}
	if err := s.mgr.RenameMember(id, name); err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Member %s renamed to '%s'\n", id, name)
}

func (s *shell) handleRemoveMember() {
	id, ok := s.ask("Member ID: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveMember(id); err != nil {
		s.printf("Error removing member: %v\n", err)
		return
	}
	s.printf("Member %s removed\n", id)
}

func (s *shell) handleSearchMembers() {
	name, ok := s.ask("Name: ")
	if !ok {
		return
	}
	members := s.mgr.SearchMembers(name)
	if len(members) == 0 {
		s.printf("No members found matching '%s'.\n", name)
		return
	}
	s.printMembers(members)
}

func (s *shell) printMembers(members []library.MemberState) {
	if len(members) == 0 {
		s.println("No members registered.")
		return
	}
	s.printf("%-8s %-30s %-25s %s\n", "ID", "Name", "Borrowed", "Waiting For")
	s.println(strings.Repeat("-", 90))
	for _, m := range members {
		s.printf("%-8s %-30s %-25s %s\n", m.ID, truncateString(m.Name, 30), listInfo(m.Borrowed), listInfo(m.Waiting))
	}
}

func listInfo(ids []string) string {
	if len(ids) == 0 {
		return "None"
	}
	return strings.Join(ids, ", ")
}

// resolveMember accepts a member id or a name. A name nobody has is registered as a
// new member; an unknown id is an error.
func (s *shell) resolveMember(input string) (library.MemberState, bool) {
	m, err := s.mgr.GetMember(input)
	if err == nil {
		return m, true
	}
	if !errors.Is(err, library.ErrNotFound) || library.IsMemberID(input) {
		s.printf("Error: %v\n", err)
		return m, false
	}
	m, created, err := s.mgr.FindOrAddMember(input)
	if err != nil {
		s.printf("Error: %v\n", err)
		return m, false
	}
	if created {
		s.printf("Registered new member '%s' with ID %s\n", m.Name, m.ID)
	}
	return m, true
}

// ------------------ Circulation ------------------

func (s *shell) askBookAndMember(memberPrompt string) (string, string, bool) {
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return "", "", false
	}
	memberID, ok := s.ask(memberPrompt)
	if !ok {
		return "", "", false
	}
	return bookID, memberID, true
}

func (s *shell) handleBorrow() {
	bookID, who, ok := s.askBookAndMember("Member ID or name: ")
	if !ok {
		return
	}
	member, ok := s.resolveMember(who)
	if !ok {
		return
	}
	res, err := s.mgr.Borrow(member.ID, bookID)
	if err != nil {
		s.printf("Error borrowing book: %v\n", err)
		return
	}
	book, _ := s.mgr.GetBook(bookID)
	switch res.Outcome {
	case library.OutcomeBorrowed:
		s.printf("Book '%s' borrowed by %s on %s\n", book.Title, member.Name, res.Record.BorrowDate.Format(library.DateLayout))
	case library.OutcomeQueued:
		s.printf("Book '%s' is borrowed; %s was added to the reservation queue\n", book.Title, member.Name)
		s.printf("Position in queue: %d\n", res.Position)
	}
}

func (s *shell) handleReturn() {
	bookID, memberID, ok := s.askBookAndMember("Member ID: ")
	if !ok {
		return
	}
	res, err := s.mgr.Return(memberID, bookID)
	if err != nil {
		s.printf("Error returning book: %v\n", err)
		return
	}
	book, _ := s.mgr.GetBook(bookID)
	s.printf("Book '%s' returned by %s\n", book.Title, res.Closed.MemberName)
	if res.Promoted != nil {
		s.printf("Book automatically assigned to %s (next in reservation queue)\n", res.Promoted.MemberName)
	} else if book.Borrower == nil {
		s.println("Book is now available")
	}
}

func (s *shell) handleReserve() {
	bookID, who, ok := s.askBookAndMember("Member ID or name: ")
	if !ok {
		return
	}
	member, ok := s.resolveMember(who)
	if !ok {
		return
	}
	pos, err := s.mgr.Reserve(member.ID, bookID)
	if err != nil {
		s.printf("Error reserving book: %v\n", err)
		return
	}
	book, _ := s.mgr.GetBook(bookID)
	s.printf("Book '%s' reserved for %s\n", book.Title, member.Name)
	s.printf("Position in queue: %d\n", pos)
}

func (s *shell) handleCancelReservation() {
	bookID, memberID, ok := s.askBookAndMember("Member ID: ")
	if !ok {
		return
	}
	if err := s.mgr.CancelReservation(memberID, bookID); err != nil {
		s.printf("Error cancelling reservation: %v\n", err)
		return
	}
	s.printf("Reservation for book %s cancelled for member %s\n", bookID, memberID)
}

func (s *shell) handleListReservations() {
	bookID, ok := s.ask("Book ID (or press Enter for all books): ")
	if !ok {
		return
	}

	if bookID == "" {
		entries := s.mgr.Reservations()
		if len(entries) == 0 {
			s.println("No active reservations in the system.")
			return
		}
		s.printf("%-8s %-8s %-30s\n", "Book", "Member", "Name")
		s.println(strings.Repeat("-", 50))
		for _, e := range entries {
			s.printf("%-8s %-8s %-30s\n", e.BookID, e.MemberID, e.MemberName)
		}
		return
	}

	book, err := s.mgr.GetBook(bookID)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Reservations for '%s' by %s:\n", book.Title, book.Author)
	if len(book.Reservations) == 0 {
		s.println("No reservations for this book.")
		return
	}
	s.printf("%-10s %-8s %-30s\n", "Position", "ID", "Name")
	s.println(strings.Repeat("-", 50))
	for i, r := range book.Reservations {
		s.printf("%-10d %-8s %-30s\n", i+1, r.MemberID, r.MemberName)
	}
}

// ------------------ Records ------------------

func (s *shell) handleMemberRecords() {
	id, ok := s.ask("Member ID: ")
	if !ok {
		return
	}
	s.printRecords(s.mgr.RecordsByMember(id))
}

func (s *shell) handleBookRecords() {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	s.printRecords(s.mgr.RecordsByBook(id))
}

func (s *shell) handleDeleteRecords() {
	bookID, memberID, ok := s.askBookAndMember("Member ID: ")
	if !ok {
		return
	}
	n, err := s.mgr.DeleteRecords(bookID, memberID)
	if err != nil {
		s.printf("Error deleting records: %v\n", err)
		return
	}
	s.printf("Deleted %d record(s)\n", n)
}

func (s *shell) printRecords(records []library.BorrowRecord) {
	if len(records) == 0 {
		s.println("No borrow records.")
		return
	}
	s.printf("%-8s %-8s %-25s %-12s %s\n", "Book", "Member", "Name", "Borrowed", "Returned")
	s.println(strings.Repeat("-", 70))
	for _, r := range records {
		returned := "not returned"
		if r.ReturnDate != nil {
			returned = r.ReturnDate.Format(library.DateLayout)
		}
		s.printf("%-8s %-8s %-25s %-12s %s\n",
			r.BookID, r.MemberID, truncateString(r.MemberName, 25), r.BorrowDate.Format(library.DateLayout), returned)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}
