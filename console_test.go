package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"library-service/library"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

// Two console sessions share one library; the clock moves 20 days between them.
func TestConsoleSession(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC)}
	lib, err := library.NewLibraryManager(library.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	var out bytes.Buffer
	newConsole(script(
		"add member", "1", "Alice", "30",
		"add member", "2", "Bob", "25",
		"add member", "3", "Kid", "11",
		"add book", "10", "Dune", "Frank Herbert", "978-0441013593",
		"add book", "11", "Emma", "Jane Austen", "978-0141439587",
		"list members",
		"list books",
		"search book", "austen",
		"borrow", "1", "10",
		"borrow", "2", "10",
		"reserve", "2", "10",
		"list reservations", "10",
		"list reservations", "",
		"frobnicate",
		"exit",
	), &out, lib, false, defaultWidth).run()

	clock.now = clock.now.Add(20 * 24 * time.Hour)

	newConsole(script(
		"overdue",
		"return", "1", "10",
		"history", "1",
		"cancel reservation", "RES-20250914-001",
		"cancel reservation", "RES-20250914-001",
		"list reservations", "",
	), &out, lib, false, defaultWidth).run()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "console_session", out.Bytes())
}

func TestConsoleRejectsBadIDs(t *testing.T) {
	lib, err := library.NewLibraryManager()
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	var out bytes.Buffer
	newConsole(script("borrow", "abc", "history", "7"), &out, lib, false, defaultWidth).run()

	text := out.String()
	require.Contains(t, text, "Invalid member id: abc\n")
	// "history" was consumed as a command after the failed borrow
	require.Contains(t, text, "Error: member with id: 7 was not found\n")
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("The Fellowship of the Ring", 10); got != "The Fel..." {
		t.Fatalf("got %q", got)
	}
	if got := truncateString("Dune", 10); got != "Dune" {
		t.Fatalf("got %q", got)
	}
	got := truncateString("Les Misérables, tome premier", 14)
	if got != "Les Misérab..." || !utf8.ValidString(got) {
		t.Fatalf("got %q", got)
	}
	if got := truncateString("Misérables", 10); got != "Misérables" {
		t.Fatalf("got %q", got)
	}
}

func TestLoanNames(t *testing.T) {
	lib, err := library.NewLibraryManager()
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	_, err = lib.CreateMember(1, "Alice", 30)
	require.NoError(t, err)
	_, err = lib.CreateBook(library.Book{ID: 10, Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593"})
	require.NoError(t, err)

	c := newConsole(script(), &bytes.Buffer{}, lib, false, defaultWidth)
	member, book, err := c.loanNames(1, 10)
	require.NoError(t, err)
	require.Equal(t, "Alice", member)
	require.Equal(t, "Dune", book)

	require.NoError(t, lib.DeleteBook(10))
	_, _, err = c.loanNames(1, 10)
	require.EqualError(t, err, "book with id: 10 was not found")
}
