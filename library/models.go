package library

import "time"

// MinMemberAge is the youngest age accepted at registration or update.
const MinMemberAge = 12

// Member represents a registered library member.
// HasBorrowed mirrors whether an active transaction exists for the member.
type Member struct {
	ID          int64  `db:"member_id" json:"member_id"`
	Name        string `db:"name" json:"name"`
	Age         int    `db:"age" json:"age"`
	HasBorrowed bool   `db:"has_borrowed" json:"has_borrowed"`
}

// MemberSummary is the listing shape of a member (no borrow flag).
type MemberSummary struct {
	ID   int64  `db:"member_id" json:"member_id"`
	Name string `db:"name" json:"name"`
	Age  int    `db:"age" json:"age"`
}

// Book represents a catalogued book and its current availability.
type Book struct {
	ID        int64  `db:"book_id" json:"book_id"`
	Title     string `db:"title" json:"title"`
	Author    string `db:"author" json:"author"`
	ISBN      string `db:"isbn" json:"isbn"`
	Available bool   `db:"is_available" json:"is_available"`
}

// TransactionStatus is the lifecycle state of a borrow record.
type TransactionStatus string

const (
	StatusActive   TransactionStatus = "active"
	StatusReturned TransactionStatus = "returned"
)

// Transaction is one borrow record in the ledger.
type Transaction struct {
	ID         int64             `db:"transaction_id" json:"transaction_id"`
	MemberID   int64             `db:"member_id" json:"member_id"`
	BookID     int64             `db:"book_id" json:"book_id"`
	BorrowedAt time.Time         `db:"borrowed_at" json:"borrowed_at"`
	DueDate    time.Time         `db:"due_date" json:"due_date"`
	ReturnedAt *time.Time        `db:"returned_at" json:"returned_at"`
	Status     TransactionStatus `db:"status" json:"status"`
}

// ReturnedOnTime reports whether the transaction was returned on or before its due date.
func (t Transaction) ReturnedOnTime() bool {
	return t.Status == StatusReturned && t.ReturnedAt != nil && !t.ReturnedAt.After(t.DueDate)
}

// ActiveBorrow is an active transaction joined with member and book names.
type ActiveBorrow struct {
	TransactionID int64     `db:"transaction_id" json:"transaction_id"`
	MemberID      int64     `db:"member_id" json:"member_id"`
	MemberName    string    `db:"member_name" json:"member_name"`
	BookID        int64     `db:"book_id" json:"book_id"`
	BookTitle     string    `db:"book_title" json:"book_title"`
	BorrowedAt    time.Time `db:"borrowed_at" json:"borrowed_at"`
	DueDate       time.Time `db:"due_date" json:"due_date"`
}

// OverdueBorrow is an active borrow past its due date.
type OverdueBorrow struct {
	ActiveBorrow
	DaysOverdue int `json:"days_overdue"`
}

// HistoryEntry is one line of a member's borrowing history.
type HistoryEntry struct {
	TransactionID int64             `db:"transaction_id" json:"transaction_id"`
	BookID        int64             `db:"book_id" json:"book_id"`
	BookTitle     string            `db:"book_title" json:"book_title"`
	BorrowedAt    time.Time         `db:"borrowed_at" json:"borrowed_at"`
	ReturnedAt    *time.Time        `db:"returned_at" json:"returned_at"`
	Status        TransactionStatus `db:"status" json:"status"`
}

// MemberHistory is a member's full borrowing history in ledger order.
type MemberHistory struct {
	MemberID   int64          `json:"member_id"`
	MemberName string         `json:"member_name"`
	History    []HistoryEntry `json:"borrowing_history"`
}

// ReservationStatus is the state of a reservation in its book's queue.
type ReservationStatus string

const ReservationQueued ReservationStatus = "queued"

// Reservation is a member's place in a book's waitlist.
// Type, PreferredPickupDate and MaxWaitDays are recorded but carry no behavior.
type Reservation struct {
	ID                  string            `json:"reservation_id"`
	MemberID            int64             `json:"member_id"`
	BookID              int64             `json:"book_id"`
	Status              ReservationStatus `json:"reservation_status"`
	Type                string            `json:"reservation_type"`
	PreferredPickupDate string            `json:"preferred_pickup_date,omitempty"`
	MaxWaitDays         int               `json:"max_wait_days"`
	Score               float64           `json:"priority_score"`
	CreatedAt           time.Time         `json:"created_at"`

	seq int64
}

// QueuedReservation is a reservation together with its current queue position.
type QueuedReservation struct {
	Reservation
	Position int `json:"queue_position"`
}
