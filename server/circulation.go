package server

import (
	"net/http"
	"time"

	"library-service/library"
)

// loanRequest is the body of both /api/borrow and /api/return.
type loanRequest struct {
	MemberID *int64 `json:"member_id"`
	BookID   *int64 `json:"book_id"`
}

func (req loanRequest) ids() (memberID, bookID int64, err error) {
	if memberID, err = requireID("member_id", req.MemberID); err != nil {
		return 0, 0, err
	}
	if bookID, err = requireID("book_id", req.BookID); err != nil {
		return 0, 0, err
	}
	return memberID, bookID, nil
}

type borrowResponse struct {
	TransactionID int64     `json:"transaction_id"`
	MemberID      int64     `json:"member_id"`
	BookID        int64     `json:"book_id"`
	BorrowedAt    time.Time `json:"borrowed_at"`
	DueDate       time.Time `json:"due_date"`
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	memberID, bookID, err := req.ids()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	t, err := s.lib.Borrow(memberID, bookID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.count("library_borrows_total")
	writeJSON(w, http.StatusOK, borrowResponse{
		TransactionID: t.ID,
		MemberID:      t.MemberID,
		BookID:        t.BookID,
		BorrowedAt:    t.BorrowedAt,
		DueDate:       t.DueDate,
	})
}

type returnResponse struct {
	TransactionID int64     `json:"transaction_id"`
	MemberID      int64     `json:"member_id"`
	BookID        int64     `json:"book_id"`
	ReturnedAt    time.Time `json:"returned_at"`
	Status        string    `json:"status"`
}

func (s *Server) returnBook(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	memberID, bookID, err := req.ids()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	t, err := s.lib.ReturnBook(memberID, bookID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.count("library_returns_total")
	writeJSON(w, http.StatusOK, returnResponse{
		TransactionID: t.ID,
		MemberID:      t.MemberID,
		BookID:        t.BookID,
		ReturnedAt:    *t.ReturnedAt,
		Status:        string(t.Status),
	})
}

func (s *Server) listBorrowed(w http.ResponseWriter, r *http.Request) {
	active, err := s.lib.ActiveBorrows()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowed_books": active})
}

func (s *Server) listOverdue(w http.ResponseWriter, r *http.Request) {
	overdue, err := s.lib.Overdue()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overdue_books": overdue})
}

// ------------------ Reservations ------------------

type reservationRequest struct {
	MemberID            *int64  `json:"member_id"`
	BookID              *int64  `json:"book_id"`
	ReservationType     string  `json:"reservation_type"`
	PreferredPickupDate *string `json:"preferred_pickup_date"`
	MaxWaitDays         *int    `json:"max_wait_days"`
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	memberID, err := requireID("member_id", req.MemberID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	bookID, err := requireID("book_id", req.BookID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	in := library.ReservationRequest{MemberID: memberID, BookID: bookID, Type: req.ReservationType}
	if req.PreferredPickupDate != nil {
		in.PreferredPickupDate = *req.PreferredPickupDate
	}
	if req.MaxWaitDays != nil {
		in.MaxWaitDays = library.Some(*req.MaxWaitDays)
	}

	res, err := s.lib.CreateReservation(in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.count("library_reservations_total")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.lib.GetReservation(r.PathValue("reservation_id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("reservation_id")
	res, err := s.lib.CancelReservation(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "reservation cancelled",
		"reservation_id": res.ID,
		"member_id":      res.MemberID,
		"book_id":        res.BookID,
	})
}
