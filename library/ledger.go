package library

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultLoanPeriod is the time between a borrow and its due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// firstTransactionID - 1; the ledger's first transaction is 501.
const transactionIDBase = 500

// unknownTitle stands in for books deleted after they were borrowed.
const unknownTitle = "Unknown"

// Ledger is the append-only record of borrow and return transactions. Rows are
// inserted on borrow and updated exactly once on return; they are never deleted.
// The ledger does no cross-entity validation; the caller checks preconditions.
type Ledger struct {
	ids        *Sequence
	loanPeriod time.Duration
}

// NewLedger creates a ledger drawing transaction ids from ids.
func NewLedger(ids *Sequence, loanPeriod time.Duration) *Ledger {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}
	return &Ledger{ids: ids, loanPeriod: loanPeriod}
}

const transactionColumns = `transaction_id,member_id,book_id,borrowed_at,due_date,returned_at,status`

// RecordBorrow appends an active transaction for (memberID, bookID) at now.
func (l *Ledger) RecordBorrow(e sqlx.Execer, memberID, bookID int64, now time.Time) (Transaction, error) {
	t := Transaction{
		ID:         l.ids.Next(),
		MemberID:   memberID,
		BookID:     bookID,
		BorrowedAt: now,
		DueDate:    now.Add(l.loanPeriod),
		Status:     StatusActive,
	}
	if _, err := e.Exec(`INSERT INTO transactions(`+transactionColumns+`) VALUES(?,?,?,?,?,NULL,?)`,
		t.ID, t.MemberID, t.BookID, t.BorrowedAt, t.DueDate, string(t.Status)); err != nil {
		return Transaction{}, fmt.Errorf("record borrow: %w", err)
	}
	return t, nil
}

// RecordReturn closes the active transaction matching both ids.
// It returns ErrNoActiveBorrow when there is none.
func (l *Ledger) RecordReturn(e sqlx.Ext, memberID, bookID int64, now time.Time) (Transaction, error) {
	var t Transaction
	err := sqlx.Get(e, &t, `SELECT `+transactionColumns+` FROM transactions
        WHERE member_id=? AND book_id=? AND status='active'`, memberID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrNoActiveBorrow
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("find active borrow: %w", err)
	}

	if _, err := e.Exec(`UPDATE transactions SET returned_at=?, status='returned' WHERE transaction_id=?`,
		now, t.ID); err != nil {
		return Transaction{}, fmt.Errorf("record return: %w", err)
	}
	t.ReturnedAt = &now
	t.Status = StatusReturned
	return t, nil
}

func (l *Ledger) activeWhere(q sqlx.Queryer, column string, id int64) (*Transaction, error) {
	var t Transaction
	err := sqlx.Get(q, &t, `SELECT `+transactionColumns+` FROM transactions
        WHERE `+column+`=? AND status='active'`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active transaction: %w", err)
	}
	return &t, nil
}

// ActiveBorrowFor returns the member's active transaction, or nil.
func (l *Ledger) ActiveBorrowFor(q sqlx.Queryer, memberID int64) (*Transaction, error) {
	return l.activeWhere(q, "member_id", memberID)
}

// ActiveBorrowForBook returns the book's active transaction, or nil.
func (l *Ledger) ActiveBorrowForBook(q sqlx.Queryer, bookID int64) (*Transaction, error) {
	return l.activeWhere(q, "book_id", bookID)
}

// TransactionsFor returns every transaction of a member in ledger order.
func (l *Ledger) TransactionsFor(q sqlx.Queryer, memberID int64) ([]Transaction, error) {
	txs := []Transaction{}
	if err := sqlx.Select(q, &txs, `SELECT `+transactionColumns+` FROM transactions
        WHERE member_id=? ORDER BY transaction_id`, memberID); err != nil {
		return nil, fmt.Errorf("member transactions: %w", err)
	}
	return txs, nil
}

// HistoryFor returns a member's transactions in ledger order with current book titles.
func (l *Ledger) HistoryFor(q sqlx.Queryer, memberID int64) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}
	err := sqlx.Select(q, &entries, `
        SELECT t.transaction_id, t.book_id, COALESCE(b.title, ?) AS book_title,
               t.borrowed_at, t.returned_at, t.status
        FROM transactions t
        LEFT JOIN books b ON b.book_id = t.book_id
        WHERE t.member_id = ?
        ORDER BY t.transaction_id`, unknownTitle, memberID)
	if err != nil {
		return nil, fmt.Errorf("member history: %w", err)
	}
	return entries, nil
}

// AllActive returns every active transaction joined with member and book names.
func (l *Ledger) AllActive(q sqlx.Queryer) ([]ActiveBorrow, error) {
	borrows := []ActiveBorrow{}
	err := sqlx.Select(q, &borrows, `
        SELECT t.transaction_id, t.member_id, COALESCE(m.name, ?) AS member_name,
               t.book_id, COALESCE(b.title, ?) AS book_title,
               t.borrowed_at, t.due_date
        FROM transactions t
        LEFT JOIN members m ON m.member_id = t.member_id
        LEFT JOIN books b ON b.book_id = t.book_id
        WHERE t.status = 'active'
        ORDER BY t.transaction_id`, unknownTitle, unknownTitle)
	if err != nil {
		return nil, fmt.Errorf("active borrows: %w", err)
	}
	return borrows, nil
}

// OverdueAsOf returns active transactions whose due date is strictly before now.
func (l *Ledger) OverdueAsOf(q sqlx.Queryer, now time.Time) ([]OverdueBorrow, error) {
	active, err := l.AllActive(q)
	if err != nil {
		return nil, err
	}
	overdue := []OverdueBorrow{}
	for _, a := range active {
		if !now.After(a.DueDate) {
			continue
		}
		overdue = append(overdue, OverdueBorrow{ActiveBorrow: a, DaysOverdue: DaysOverdue(a.DueDate, now)})
	}
	return overdue, nil
}

// DaysOverdue counts whole days between due and now, never negative.
func DaysOverdue(due, now time.Time) int {
	d := now.Sub(due)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
