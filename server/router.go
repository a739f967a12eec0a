package server

import "net/http"

// Router builds the complete handler chain.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /metrics", s.writeMetrics)

	// members
	mux.HandleFunc("POST /api/members", s.createMember)
	mux.HandleFunc("GET /api/members", s.listMembers)
	mux.HandleFunc("GET /api/members/{member_id}", s.getMember)
	mux.HandleFunc("PUT /api/members/{member_id}", s.updateMember)
	mux.HandleFunc("DELETE /api/members/{member_id}", s.deleteMember)
	mux.HandleFunc("GET /api/members/{member_id}/history", s.memberHistory)
	mux.HandleFunc("GET /api/members/{member_id}/reservations", s.memberReservations)

	// books
	mux.HandleFunc("POST /api/books", s.createBook)
	mux.HandleFunc("GET /api/books", s.listBooks)
	mux.HandleFunc("GET /api/books/search", s.searchBooks)
	mux.HandleFunc("GET /api/books/{book_id}", s.getBook)
	mux.HandleFunc("DELETE /api/books/{book_id}", s.deleteBook)
	mux.HandleFunc("GET /api/books/{book_id}/reservations", s.bookReservations)

	// circulation
	mux.HandleFunc("POST /api/borrow", s.borrow)
	mux.HandleFunc("POST /api/return", s.returnBook)
	mux.HandleFunc("GET /api/borrowed", s.listBorrowed)
	mux.HandleFunc("GET /api/overdue", s.listOverdue)

	// reservations
	mux.HandleFunc("POST /api/reservations", s.createReservation)
	mux.HandleFunc("GET /api/reservations/{reservation_id}", s.getReservation)
	mux.HandleFunc("DELETE /api/reservations/{reservation_id}", s.cancelReservation)

	return s.withRequestID(s.instrument(mux))
}
