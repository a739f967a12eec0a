package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-service/library"
)

const defaultWidth = 100

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run an interactive line console over an in-process library",
	RunE: func(cmd *cobra.Command, _ []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		lib, err := newLibrary(log)
		if err != nil {
			return err
		}
		defer lib.Close()

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		width := defaultWidth
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		newConsole(cmd.InOrStdin(), cmd.OutOrStdout(), lib, interactive, width).run()
		return nil
	},
}

// console reads one command per line and prompts for its arguments.
// Prompts are only written when a person is typing.
type console struct {
	sc          *bufio.Scanner
	out         io.Writer
	lib         *library.LibraryManager
	interactive bool
	width       int
}

func newConsole(in io.Reader, out io.Writer, lib *library.LibraryManager, interactive bool, width int) *console {
	return &console{sc: bufio.NewScanner(in), out: out, lib: lib, interactive: interactive, width: width}
}

func (c *console) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

func (c *console) println(s string) { fmt.Fprintln(c.out, s) }

// rule prints a separator no wider than the terminal.
func (c *console) rule(n int) { c.println(strings.Repeat("-", min(n, c.width))) }

func (c *console) ask(label string) (string, bool) {
	if c.interactive {
		c.printf("%s: ", label)
	}
	if !c.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.sc.Text()), true
}

func (c *console) askID(label string) (int64, bool) {
	raw, ok := c.ask(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.printf("Invalid %s: %s\n", strings.ToLower(label), raw)
		return 0, false
	}
	return id, true
}

func (c *console) run() {
	c.println("Library console. Commands:")
	c.println("  Members: add member, list members, history")
	c.println("  Books: add book, list books, search book")
	c.println("  Circulation: borrow, return, overdue")
	c.println("  Reservations: reserve, list reservations, cancel reservation")
	c.println("  System: exit")

	for {
		if c.interactive {
			c.printf("\n> ")
		}
		if !c.sc.Scan() {
			return
		}
		switch cmd := strings.TrimSpace(c.sc.Text()); cmd {
		case "":
		case "add member":
			c.addMember()
		case "list members":
			c.listMembers()
		case "history":
			c.history()
		case "add book":
			c.addBook()
		case "list books":
			c.listBooks()
		case "search book":
			c.searchBooks()
		case "borrow":
			c.borrow()
		case "return":
			c.returnBook()
		case "overdue":
			c.overdue()
		case "reserve":
			c.reserve()
		case "list reservations":
			c.listReservations()
		case "cancel reservation":
			c.cancelReservation()
		case "exit":
			c.println("Goodbye!")
			return
		default:
			c.printf("Unknown command: %s\n", cmd)
		}
	}
}

// ------------------ Members ------------------

func (c *console) addMember() {
	id, ok := c.askID("Member ID")
	if !ok {
		return
	}
	name, ok := c.ask("Name")
	if !ok {
		return
	}
	rawAge, ok := c.ask("Age")
	if !ok {
		return
	}
	age, err := strconv.Atoi(rawAge)
	if err != nil {
		c.printf("Invalid age: %s\n", rawAge)
		return
	}

	m, err := c.lib.CreateMember(id, name, age)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Added member '%s' with ID %d\n", m.Name, m.ID)
}

func (c *console) listMembers() {
	members, err := c.lib.ListMembers()
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if len(members) == 0 {
		c.println("No members registered.")
		return
	}

	c.printf("%-5s %-30s %s\n", "ID", "Name", "Age")
	c.rule(40)
	for _, m := range members {
		c.printf("%-5d %-30s %d\n", m.ID, truncateString(m.Name, 30), m.Age)
	}
}

func (c *console) history() {
	id, ok := c.askID("Member ID")
	if !ok {
		return
	}
	h, err := c.lib.History(id)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}

	c.printf("History for %s (ID %d):\n", h.MemberName, h.MemberID)
	if len(h.History) == 0 {
		c.println("No borrowing history.")
		return
	}
	c.printf("%-6s %-5s %-30s %-10s %-10s %s\n", "Tx", "Book", "Title", "Borrowed", "Returned", "Status")
	c.rule(76)
	for _, e := range h.History {
		returned := "-"
		if e.ReturnedAt != nil {
			returned = e.ReturnedAt.Format(library.DayLayout)
		}
		c.printf("%-6d %-5d %-30s %-10s %-10s %s\n",
			e.TransactionID, e.BookID, truncateString(e.BookTitle, 30),
			e.BorrowedAt.Format(library.DayLayout), returned, e.Status)
	}
}

// ------------------ Books ------------------

func (c *console) addBook() {
	id, ok := c.askID("Book ID")
	if !ok {
		return
	}
	title, ok := c.ask("Title")
	if !ok {
		return
	}
	author, ok := c.ask("Author")
	if !ok {
		return
	}
	isbn, ok := c.ask("ISBN")
	if !ok {
		return
	}

	b, err := c.lib.CreateBook(library.Book{ID: id, Title: title, Author: author, ISBN: isbn})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Added book '%s' with ID %d\n", b.Title, b.ID)
}

func (c *console) printBooks(books []library.Book) {
	c.printf("%-5s %-30s %-20s %-15s %s\n", "ID", "Title", "Author", "ISBN", "Available")
	c.rule(82)
	for _, b := range books {
		avail := "Yes"
		if !b.Available {
			avail = "No"
		}
		c.printf("%-5d %-30s %-20s %-15s %s\n",
			b.ID, truncateString(b.Title, 30), truncateString(b.Author, 20), truncateString(b.ISBN, 15), avail)
	}
}

func (c *console) listBooks() {
	books, err := c.lib.ListBooks()
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		c.println("No books in library.")
		return
	}
	c.printBooks(books)
}

func (c *console) searchBooks() {
	query, ok := c.ask("Query")
	if !ok {
		return
	}
	res, err := c.lib.SearchBooks(library.BookQuery{Q: query, Limit: library.MaxPageSize})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if len(res.Books) == 0 {
		c.printf("No books found matching '%s'.\n", query)
		return
	}
	c.printf("Found %d book(s) matching '%s':\n", res.Pagination.TotalItems, query)
	c.printBooks(res.Books)
}

// ------------------ Circulation ------------------

func (c *console) askLoan() (memberID, bookID int64, ok bool) {
	if memberID, ok = c.askID("Member ID"); !ok {
		return 0, 0, false
	}
	if bookID, ok = c.askID("Book ID"); !ok {
		return 0, 0, false
	}
	return memberID, bookID, true
}

func (c *console) borrow() {
	memberID, bookID, ok := c.askLoan()
	if !ok {
		return
	}
	t, err := c.lib.Borrow(memberID, bookID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}

	member, book, err := c.loanNames(memberID, bookID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Book '%s' borrowed by %s (transaction %d, due %s)\n",
		book, member, t.ID, t.DueDate.Format(library.DayLayout))
}

// loanNames looks up the member name and book title shown after a loan changes.
func (c *console) loanNames(memberID, bookID int64) (member, book string, err error) {
	m, err := c.lib.GetMember(memberID)
	if err != nil {
		return "", "", err
	}
	b, err := c.lib.GetBook(bookID)
	if err != nil {
		return "", "", err
	}
	return m.Name, b.Title, nil
}

func (c *console) returnBook() {
	memberID, bookID, ok := c.askLoan()
	if !ok {
		return
	}
	if _, err := c.lib.ReturnBook(memberID, bookID); err != nil {
		c.printf("Error: %v\n", err)
		return
	}

	member, book, err := c.loanNames(memberID, bookID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Book '%s' returned by %s\n", book, member)

	if queue, err := c.lib.ListReservations(bookID); err == nil && len(queue) > 0 {
		c.printf("Next in reservation queue: member %d (%s)\n", queue[0].MemberID, queue[0].ID)
	}
}

func (c *console) overdue() {
	overdue, err := c.lib.Overdue()
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if len(overdue) == 0 {
		c.println("No overdue books.")
		return
	}
	c.printf("%-6s %-20s %-30s %-10s %s\n", "Tx", "Member", "Title", "Due", "Days")
	c.rule(75)
	for _, o := range overdue {
		c.printf("%-6d %-20s %-30s %-10s %d\n",
			o.TransactionID, truncateString(o.MemberName, 20), truncateString(o.BookTitle, 30),
			o.DueDate.Format(library.DayLayout), o.DaysOverdue)
	}
}

// ------------------ Reservations ------------------

func (c *console) reserve() {
	memberID, bookID, ok := c.askLoan()
	if !ok {
		return
	}
	r, err := c.lib.CreateReservation(library.ReservationRequest{MemberID: memberID, BookID: bookID})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	book, err := c.lib.GetBook(bookID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Reservation %s queued for '%s' at position %d\n", r.ID, book.Title, r.Position)
}

func (c *console) listReservations() {
	raw, ok := c.ask("Book ID (or press Enter for all books)")
	if !ok {
		return
	}
	if raw == "" {
		c.listAllReservations()
		return
	}
	bookID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.printf("Invalid book id: %s\n", raw)
		return
	}

	book, err := c.lib.GetBook(bookID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	queue, err := c.lib.ListReservations(bookID)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}

	c.printf("Reservations for '%s' by %s:\n", book.Title, book.Author)
	if len(queue) == 0 {
		c.println("No reservations for this book.")
		return
	}
	c.printf("%-10s %-18s %-10s %s\n", "Position", "Reservation", "Member ID", "Score")
	c.rule(46)
	for _, r := range queue {
		c.printf("%-10d %-18s %-10d %.2f\n", r.Position, r.ID, r.MemberID, r.Score)
	}
}

func (c *console) listAllReservations() {
	books, err := c.lib.ListBooks()
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}

	reserved := 0
	for _, b := range books {
		queue, err := c.lib.ListReservations(b.ID)
		if err != nil || len(queue) == 0 {
			continue
		}
		reserved++
		entries := make([]string, len(queue))
		for i, r := range queue {
			entries[i] = fmt.Sprintf("%d.%s(member %d)", r.Position, r.ID, r.MemberID)
		}
		c.printf("'%s' (ID %d): %s\n", b.Title, b.ID, strings.Join(entries, ", "))
	}

	if reserved == 0 {
		c.println("No active reservations in the system.")
		return
	}
	c.printf("Total books: %d | Books with reservations: %d\n", len(books), reserved)
}

func (c *console) cancelReservation() {
	id, ok := c.ask("Reservation ID")
	if !ok {
		return
	}
	r, err := c.lib.CancelReservation(id)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Reservation %s cancelled (member %d, book %d)\n", r.ID, r.MemberID, r.BookID)
}

// truncateString shortens s to maxLength runes, ending in "...".
func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength-3]) + "..."
}
