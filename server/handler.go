package server

import (
	"net/http"

	"library-service/library"
)

// ------------------ Members ------------------

type createMemberRequest struct {
	MemberID *int64  `json:"member_id"`
	Name     *string `json:"name"`
	Age      *int    `json:"age"`
}

func (s *Server) createMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	id, err := requireID("member_id", req.MemberID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if req.Name == nil || req.Age == nil {
		s.writeErr(w, r, library.InvalidInputf("name and age are required"))
		return
	}
	m, err := s.lib.CreateMember(id, *req.Name, *req.Age)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.lib.ListMembers()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "member_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	m, err := s.lib.GetMember(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// updateMemberRequest uses pointers so an omitted field stays unchanged.
type updateMemberRequest struct {
	Name *string `json:"name"`
	Age  *int    `json:"age"`
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "member_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req updateMemberRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	var u library.MemberUpdate
	if req.Name != nil {
		u.Name = library.Some(*req.Name)
	}
	if req.Age != nil {
		u.Age = library.Some(*req.Age)
	}
	m, err := s.lib.UpdateMember(id, u)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "member_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.lib.DeleteMember(id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "member deleted", "member_id": id})
}

func (s *Server) memberHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "member_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	h, err := s.lib.History(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) memberReservations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "member_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	held, err := s.lib.MemberReservations(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member_id": id, "reservations": held})
}

// ------------------ Books ------------------

type createBookRequest struct {
	BookID *int64 `json:"book_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	id, err := requireID("book_id", req.BookID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	b, err := s.lib.CreateBook(library.Book{ID: id, Title: req.Title, Author: req.Author, ISBN: req.ISBN})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.lib.ListBooks()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "book_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	b, err := s.lib.GetBook(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "book_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.lib.DeleteBook(id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "book deleted", "book_id": id})
}

func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	q, err := parseBookQuery(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.lib.SearchBooks(q)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseBookQuery(r *http.Request) (library.BookQuery, error) {
	values := r.URL.Query()
	q := library.BookQuery{
		Q:      values.Get("q"),
		Title:  values.Get("title"),
		Author: values.Get("author"),
		ISBN:   values.Get("isbn"),
		SortBy: values.Get("sort_by"),
		Order:  values.Get("order"),
	}
	var err error
	if q.Available, err = queryBool(r, "available"); err != nil {
		return q, err
	}
	if q.Page, err = queryInt(r, "page"); err != nil {
		return q, err
	}
	if values.Has("page") && q.Page < 1 {
		return q, library.InvalidInputf("invalid page: %d, must be at least 1", q.Page)
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	if values.Has("limit") && q.Limit < 1 {
		return q, library.InvalidInputf("invalid limit: %d, must be between 1 and %d", q.Limit, library.MaxPageSize)
	}
	return q, nil
}

func (s *Server) bookReservations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "book_id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	queue, err := s.lib.ListReservations(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"book_id": id, "reservations": queue})
}
