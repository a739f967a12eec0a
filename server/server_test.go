package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-service/library"
)

func newTestServer(t *testing.T, opts ...library.Option) *httptest.Server {
	t.Helper()
	lib, err := library.NewLibraryManager(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	ts := httptest.NewServer(New(lib, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON sends body as JSON, checks the status and decodes the response into out.
func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantCode, resp.StatusCode, "%s %s: %s", method, path, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func message(t *testing.T, ts *httptest.Server, method, path string, body any, wantCode int) string {
	t.Helper()
	var e errorBody
	doJSON(t, ts, method, path, body, wantCode, &e)
	return e.Message
}

func TestMemberEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var m library.Member
	doJSON(t, ts, "POST", "/api/members", map[string]any{"member_id": 1, "name": "Alice", "age": 30}, 200, &m)
	assert.Equal(t, library.Member{ID: 1, Name: "Alice", Age: 30}, m)

	assert.Equal(t, "member with id: 1 already exists",
		message(t, ts, "POST", "/api/members", map[string]any{"member_id": 1, "name": "A", "age": 30}, 400))
	assert.Equal(t, "invalid age: 11, member must be at least 12 years old",
		message(t, ts, "POST", "/api/members", map[string]any{"member_id": 2, "name": "Kid", "age": 11}, 400))
	message(t, ts, "POST", "/api/members", map[string]any{"name": "No id", "age": 30}, 400)
	message(t, ts, "POST", "/api/members", `{"member_id":`, 400)

	var list struct {
		Members []map[string]any `json:"members"`
	}
	doJSON(t, ts, "GET", "/api/members", nil, 200, &list)
	require.Len(t, list.Members, 1)
	assert.NotContains(t, list.Members[0], "has_borrowed")

	doJSON(t, ts, "PUT", "/api/members/1", map[string]any{"age": 31}, 200, &m)
	assert.Equal(t, "Alice", m.Name)
	assert.Equal(t, 31, m.Age)

	assert.Equal(t, "member with id: 9 was not found", message(t, ts, "GET", "/api/members/9", nil, 404))
	message(t, ts, "GET", "/api/members/abc", nil, 400)

	doJSON(t, ts, "DELETE", "/api/members/1", nil, 200, nil)
	message(t, ts, "GET", "/api/members/1", nil, 404)
}

func TestCirculationFlow(t *testing.T) {
	clock := library.FixedClock{At: time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC)}
	ts := newTestServer(t, library.WithClock(clock))

	doJSON(t, ts, "POST", "/api/members", map[string]any{"member_id": 1, "name": "Alice", "age": 30}, 200, nil)
	doJSON(t, ts, "POST", "/api/members", map[string]any{"member_id": 2, "name": "Bob", "age": 40}, 200, nil)
	var b library.Book
	doJSON(t, ts, "POST", "/api/books", map[string]any{"book_id": 10, "title": "Dune", "author": "Herbert", "isbn": "1"}, 200, &b)
	assert.True(t, b.Available)

	var borrowed borrowResponse
	doJSON(t, ts, "POST", "/api/borrow", map[string]any{"member_id": 1, "book_id": 10}, 200, &borrowed)
	assert.Equal(t, int64(501), borrowed.TransactionID)
	assert.True(t, borrowed.DueDate.Equal(clock.At.Add(14*24*time.Hour)))

	assert.Equal(t, "book with id: 10 is not available",
		message(t, ts, "POST", "/api/borrow", map[string]any{"member_id": 2, "book_id": 10}, 409))
	assert.Equal(t, "cannot delete book with id: 10, book is currently borrowed",
		message(t, ts, "DELETE", "/api/books/10", nil, 409))
	message(t, ts, "POST", "/api/borrow", map[string]any{"member_id": 1}, 400)

	var active struct {
		Borrowed []library.ActiveBorrow `json:"borrowed_books"`
	}
	doJSON(t, ts, "GET", "/api/borrowed", nil, 200, &active)
	require.Len(t, active.Borrowed, 1)
	assert.Equal(t, "Alice", active.Borrowed[0].MemberName)
	assert.Equal(t, "Dune", active.Borrowed[0].BookTitle)

	var member library.Member
	doJSON(t, ts, "GET", "/api/members/1", nil, 200, &member)
	assert.True(t, member.HasBorrowed)

	assert.Equal(t, "member with id: 2 has not borrowed book with id: 10",
		message(t, ts, "POST", "/api/return", map[string]any{"member_id": 2, "book_id": 10}, 409))

	var returned returnResponse
	doJSON(t, ts, "POST", "/api/return", map[string]any{"member_id": 1, "book_id": 10}, 200, &returned)
	assert.Equal(t, "returned", returned.Status)

	var history library.MemberHistory
	doJSON(t, ts, "GET", "/api/members/1/history", nil, 200, &history)
	assert.Equal(t, "Alice", history.MemberName)
	require.Len(t, history.History, 1)
	assert.Equal(t, library.StatusReturned, history.History[0].Status)

	var overdue struct {
		Overdue []library.OverdueBorrow `json:"overdue_books"`
	}
	doJSON(t, ts, "GET", "/api/overdue", nil, 200, &overdue)
	assert.Empty(t, overdue.Overdue)
}

func TestReservationEndpoints(t *testing.T) {
	clock := library.FixedClock{At: time.Date(2025, 9, 14, 8, 0, 0, 0, time.UTC)}
	ts := newTestServer(t, library.WithClock(clock))

	for id := 1; id <= 2; id++ {
		doJSON(t, ts, "POST", "/api/members", map[string]any{"member_id": id, "name": "m", "age": 20}, 200, nil)
	}
	for id := 10; id <= 12; id++ {
		doJSON(t, ts, "POST", "/api/books", map[string]any{"book_id": id, "title": "t", "author": "a", "isbn": "i"}, 200, nil)
	}

	var res library.QueuedReservation
	doJSON(t, ts, "POST", "/api/reservations", map[string]any{"member_id": 1, "book_id": 10}, 200, &res)
	assert.Equal(t, "RES-20250914-001", res.ID)
	assert.Equal(t, library.ReservationQueued, res.Status)
	assert.Equal(t, 1, res.Position)

	doJSON(t, ts, "POST", "/api/reservations", map[string]any{"member_id": 2, "book_id": 10}, 200, &res)
	assert.Equal(t, 2, res.Position)

	doJSON(t, ts, "POST", "/api/reservations", map[string]any{"member_id": 1, "book_id": 11}, 200, nil)
	assert.Equal(t, "member with id: 1 has reached the reservation limit of 2",
		message(t, ts, "POST", "/api/reservations", map[string]any{"member_id": 1, "book_id": 12}, 409))
	message(t, ts, "POST", "/api/reservations", map[string]any{"member_id": 2, "book_id": 99}, 404)
	message(t, ts, "POST", "/api/reservations",
		map[string]any{"member_id": 2, "book_id": 12, "preferred_pickup_date": "tomorrow"}, 400)

	var queue struct {
		Reservations []library.QueuedReservation `json:"reservations"`
	}
	doJSON(t, ts, "GET", "/api/books/10/reservations", nil, 200, &queue)
	require.Len(t, queue.Reservations, 2)
	assert.Equal(t, int64(1), queue.Reservations[0].MemberID)

	doJSON(t, ts, "GET", "/api/reservations/RES-20250914-002", nil, 200, &res)
	assert.Equal(t, int64(2), res.MemberID)
	assert.Equal(t, 2, res.Position)

	doJSON(t, ts, "DELETE", "/api/reservations/RES-20250914-001", nil, 200, nil)
	message(t, ts, "GET", "/api/reservations/RES-20250914-001", nil, 404)
	doJSON(t, ts, "GET", "/api/reservations/RES-20250914-002", nil, 200, &res)
	assert.Equal(t, 1, res.Position)
	message(t, ts, "DELETE", "/api/reservations/RES-20250914-001", nil, 404)

	doJSON(t, ts, "GET", "/api/books/10/reservations", nil, 200, &queue)
	require.Len(t, queue.Reservations, 1)
	assert.Equal(t, 1, queue.Reservations[0].Position)

	doJSON(t, ts, "GET", "/api/members/1/reservations", nil, 200, &queue)
	require.Len(t, queue.Reservations, 1)
	assert.Equal(t, int64(11), queue.Reservations[0].BookID)
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	for i, title := range []string{"Alpha", "Bravo", "Charlie"} {
		doJSON(t, ts, "POST", "/api/books",
			map[string]any{"book_id": i + 1, "title": title, "author": "Writer", "isbn": "isbn"}, 200, nil)
	}

	var res library.SearchResult
	doJSON(t, ts, "GET", "/api/books/search?author=writer&sort_by=title&order=desc&limit=2", nil, 200, &res)
	require.Len(t, res.Books, 2)
	assert.Equal(t, "Charlie", res.Books[0].Title)
	assert.Equal(t, 3, res.Pagination.TotalItems)
	assert.True(t, res.Pagination.HasNext)

	message(t, ts, "GET", "/api/books/search?page=0", nil, 400)
	message(t, ts, "GET", "/api/books/search?available=maybe", nil, 400)
	message(t, ts, "GET", "/api/books/search?sort_by=isbn", nil, 400)
	message(t, ts, "GET", "/api/books/search?page=4611686018427387904", nil, 400)
}

func TestRequestIDAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest("GET", ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))

	resp, err = ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	doJSON(t, ts, "POST", "/api/members", map[string]any{"member_id": 1, "name": "A", "age": 20}, 200, nil)
	doJSON(t, ts, "POST", "/api/books", map[string]any{"book_id": 1, "title": "t", "author": "a", "isbn": "i"}, 200, nil)
	doJSON(t, ts, "POST", "/api/borrow", map[string]any{"member_id": 1, "book_id": 1}, 200, nil)

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "library_borrows_total 1")
	assert.True(t, strings.Contains(text, `library_http_requests_total{route="POST /api/borrow",code="200"} 1`), text)
}
