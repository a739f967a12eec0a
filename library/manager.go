package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultReservationLimit is how many reservations one member may hold across all books.
const DefaultReservationLimit = 2

// DefaultReservationType is recorded when a request names no reservation type.
const DefaultReservationType = "standard"

// DefaultMaxWaitDays is recorded when a request names no maximum wait.
const DefaultMaxWaitDays = 14

// LibraryManager is the façade the request layers call. A single mutex
// serializes every operation, so borrow, return and reserve observe and
// mutate the entity store, the ledger and the reservation queues as one unit.
type LibraryManager struct {
	mu sync.Mutex

	db     *Database
	store  EntityStore
	ledger *Ledger
	queues *ReservationQueues

	clock            Clock
	log              *slog.Logger
	reservationLimit int
}

type options struct {
	clock            Clock
	logger           *slog.Logger
	loanPeriod       time.Duration
	reservationLimit int
}

// Option configures a LibraryManager.
type Option func(*options)

// WithClock sets the source of "now". Defaults to SystemClock.
func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithLoanPeriod sets the time from borrow to due date. Defaults to 14 days.
func WithLoanPeriod(d time.Duration) Option { return func(o *options) { o.loanPeriod = d } }

// WithReservationLimit sets how many reservations a member may hold. Defaults to 2.
func WithReservationLimit(n int) Option { return func(o *options) { o.reservationLimit = n } }

// NewLibraryManager creates an empty in-memory library.
func NewLibraryManager(opts ...Option) (*LibraryManager, error) {
	o := options{
		clock:            SystemClock{},
		loanPeriod:       DefaultLoanPeriod,
		reservationLimit: DefaultReservationLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.reservationLimit < 1 {
		return nil, fmt.Errorf("reservation limit must be positive, got %d", o.reservationLimit)
	}

	db, err := NewDatabase()
	if err != nil {
		return nil, err
	}
	return &LibraryManager{
		db:               db,
		store:            NewEntityStore(),
		ledger:           NewLedger(NewSequenceAt(transactionIDBase), o.loanPeriod),
		queues:           NewReservationQueues(NewSequenceAt(0)),
		clock:            o.clock,
		log:              o.logger,
		reservationLimit: o.reservationLimit,
	}, nil
}

// Close closes the underlying database, discarding all records.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Now reports the manager's current instant.
func (lm *LibraryManager) Now() time.Time { return lm.clock.Now() }

// inTx runs fn in one database transaction; any error rolls everything back.
func (lm *LibraryManager) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := lm.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ------------------ Members ------------------

// Optional carries a value together with whether it was supplied at all, so
// an explicit zero value is distinguishable from an omitted field.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some wraps a supplied value.
func Some[T any](v T) Optional[T] { return Optional[T]{Value: v, Set: true} }

// MemberUpdate lists the fields an update may change.
type MemberUpdate struct {
	Name Optional[string]
	Age  Optional[int]
}

func validateMember(name string, age int) error {
	if strings.TrimSpace(name) == "" {
		return errEmptyField("name")
	}
	if age < MinMemberAge {
		return errInvalidAge(age)
	}
	return nil
}

// CreateMember registers a member with no active borrow.
func (lm *LibraryManager) CreateMember(id int64, name string, age int) (*Member, error) {
	if id <= 0 {
		return nil, errInvalidID("member_id", id)
	}
	if err := validateMember(name, age); err != nil {
		return nil, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	m := Member{ID: id, Name: name, Age: age}
	if err := lm.store.CreateMember(lm.db.db, m); err != nil {
		return nil, err
	}
	lm.log.Info("member created", "member_id", id)
	return &m, nil
}

func (lm *LibraryManager) GetMember(id int64) (*Member, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.store.GetMember(lm.db.db, id)
}

func (lm *LibraryManager) ListMembers() ([]MemberSummary, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.store.ListMembers(lm.db.db)
}

// UpdateMember applies only the fields present in u.
func (lm *LibraryManager) UpdateMember(id int64, u MemberUpdate) (*Member, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	m, err := lm.store.GetMember(lm.db.db, id)
	if err != nil {
		return nil, err
	}
	if u.Name.Set {
		m.Name = u.Name.Value
	}
	if u.Age.Set {
		m.Age = u.Age.Value
	}
	if err := validateMember(m.Name, m.Age); err != nil {
		return nil, err
	}
	if err := lm.store.SaveMember(lm.db.db, *m); err != nil {
		return nil, err
	}
	lm.log.Info("member updated", "member_id", id)
	return m, nil
}

// DeleteMember removes a member without an active borrow, along with any
// reservations they hold. Their ledger history stays.
func (lm *LibraryManager) DeleteMember(id int64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	err := lm.inTx(func(tx *sqlx.Tx) error {
		if _, err := lm.store.GetMember(tx, id); err != nil {
			return err
		}
		active, err := lm.ledger.ActiveBorrowFor(tx, id)
		if err != nil {
			return err
		}
		if active != nil {
			return errMemberDeleteBlocked(id)
		}
		return lm.store.DeleteMember(tx, id)
	})
	if err != nil {
		return err
	}
	dropped := lm.queues.DropMember(id)
	lm.log.Info("member deleted", "member_id", id, "reservations_dropped", dropped)
	return nil
}

// ------------------ Books ------------------

// CreateBook catalogues an available book.
func (lm *LibraryManager) CreateBook(b Book) (*Book, error) {
	if b.ID <= 0 {
		return nil, errInvalidID("book_id", b.ID)
	}
	fields := []struct{ name, value string }{{"title", b.Title}, {"author", b.Author}, {"isbn", b.ISBN}}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return nil, errEmptyField(f.name)
		}
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	b.Available = true
	if err := lm.store.CreateBook(lm.db.db, b); err != nil {
		return nil, err
	}
	lm.log.Info("book created", "book_id", b.ID)
	return &b, nil
}

func (lm *LibraryManager) GetBook(id int64) (*Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.store.GetBook(lm.db.db, id)
}

func (lm *LibraryManager) ListBooks() ([]Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.store.ListBooks(lm.db.db)
}

// DeleteBook removes a book no active transaction references, and its queue.
func (lm *LibraryManager) DeleteBook(id int64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	err := lm.inTx(func(tx *sqlx.Tx) error {
		if _, err := lm.store.GetBook(tx, id); err != nil {
			return err
		}
		active, err := lm.ledger.ActiveBorrowForBook(tx, id)
		if err != nil {
			return err
		}
		if active != nil {
			return errBookDeleteBlocked(id)
		}
		return lm.store.DeleteBook(tx, id)
	})
	if err != nil {
		return err
	}
	dropped := lm.queues.DropBook(id)
	lm.log.Info("book deleted", "book_id", id, "reservations_dropped", dropped)
	return nil
}

// SearchBooks filters, sorts and paginates the catalogue.
func (lm *LibraryManager) SearchBooks(q BookQuery) (SearchResult, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.store.SearchBooks(lm.db.db, q)
}

// ------------------ Circulation ------------------

// Borrow lends a book to a member. The member must exist and hold no active
// borrow; the book must exist and be available. Either the ledger entry and
// both flags change together or nothing changes.
func (lm *LibraryManager) Borrow(memberID, bookID int64) (Transaction, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.clock.Now()
	var t Transaction
	err := lm.inTx(func(tx *sqlx.Tx) error {
		if _, err := lm.store.GetMember(tx, memberID); err != nil {
			return err
		}
		book, err := lm.store.GetBook(tx, bookID)
		if err != nil {
			return err
		}
		active, err := lm.ledger.ActiveBorrowFor(tx, memberID)
		if err != nil {
			return err
		}
		if active != nil {
			return errAlreadyBorrowed(memberID)
		}
		if !book.Available {
			return errBookUnavailable(bookID)
		}

		if t, err = lm.ledger.RecordBorrow(tx, memberID, bookID, now); err != nil {
			return err
		}
		if err := lm.store.SetHasBorrowed(tx, memberID, true); err != nil {
			return err
		}
		return lm.store.SetAvailable(tx, bookID, false)
	})
	if err != nil {
		return Transaction{}, err
	}
	lm.log.Info("book borrowed", "transaction_id", t.ID, "member_id", memberID, "book_id", bookID, "due_date", t.DueDate)
	return t, nil
}

// ReturnBook closes the member's active borrow of the book and makes the book
// available again. Queued reservations are not promoted.
func (lm *LibraryManager) ReturnBook(memberID, bookID int64) (Transaction, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.clock.Now()
	var t Transaction
	err := lm.inTx(func(tx *sqlx.Tx) error {
		var err error
		t, err = lm.ledger.RecordReturn(tx, memberID, bookID, now)
		if errors.Is(err, ErrNoActiveBorrow) {
			return errNotBorrowed(memberID, bookID)
		}
		if err != nil {
			return err
		}
		if err := lm.store.SetHasBorrowed(tx, memberID, false); err != nil {
			return err
		}
		return lm.store.SetAvailable(tx, bookID, true)
	})
	if err != nil {
		return Transaction{}, err
	}
	lm.log.Info("book returned", "transaction_id", t.ID, "member_id", memberID, "book_id", bookID,
		"on_time", t.ReturnedOnTime())
	if next, ok := lm.queues.Peek(bookID); ok {
		lm.log.Debug("returned book has a waitlist", "book_id", bookID, "next_reservation", next.ID)
	}
	return t, nil
}

// ActiveBorrows lists every active transaction with member and book names.
func (lm *LibraryManager) ActiveBorrows() ([]ActiveBorrow, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.ledger.AllActive(lm.db.db)
}

// History returns a member's borrowing history in ledger order.
func (lm *LibraryManager) History(memberID int64) (MemberHistory, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	m, err := lm.store.GetMember(lm.db.db, memberID)
	if err != nil {
		return MemberHistory{}, err
	}
	entries, err := lm.ledger.HistoryFor(lm.db.db, memberID)
	if err != nil {
		return MemberHistory{}, err
	}
	return MemberHistory{MemberID: m.ID, MemberName: m.Name, History: entries}, nil
}

// Overdue lists active borrows past their due date as of the manager's clock.
func (lm *LibraryManager) Overdue() ([]OverdueBorrow, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.ledger.OverdueAsOf(lm.db.db, lm.clock.Now())
}

// ------------------ Reservations ------------------

// ReservationRequest asks for a place in a book's queue. The optional fields
// are recorded only.
type ReservationRequest struct {
	MemberID            int64
	BookID              int64
	Type                string
	PreferredPickupDate string
	MaxWaitDays         Optional[int]
}

func (r ReservationRequest) normalize() (ReservationRequest, error) {
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		r.Type = DefaultReservationType
	}
	if r.PreferredPickupDate != "" {
		if _, err := ParseDay(r.PreferredPickupDate); err != nil {
			return r, InvalidInputf("invalid preferred_pickup_date: %s, expected YYYY-MM-DD", r.PreferredPickupDate)
		}
	}
	if !r.MaxWaitDays.Set {
		r.MaxWaitDays = Some(DefaultMaxWaitDays)
	}
	if r.MaxWaitDays.Value < 1 {
		return r, InvalidInputf("invalid max_wait_days: %d, must be at least 1", r.MaxWaitDays.Value)
	}
	return r, nil
}

// CreateReservation queues a member for a book, ranked by the member's current
// priority score, and returns the reservation with its queue position.
func (lm *LibraryManager) CreateReservation(req ReservationRequest) (QueuedReservation, error) {
	req, err := req.normalize()
	if err != nil {
		return QueuedReservation{}, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, err := lm.store.GetMember(lm.db.db, req.MemberID); err != nil {
		return QueuedReservation{}, err
	}
	if _, err := lm.store.GetBook(lm.db.db, req.BookID); err != nil {
		return QueuedReservation{}, err
	}
	if lm.queues.CountHeldBy(req.MemberID) >= lm.reservationLimit {
		return QueuedReservation{}, errReservationLimit(req.MemberID, lm.reservationLimit)
	}
	if lm.queues.Holds(req.MemberID, req.BookID) {
		return QueuedReservation{}, errDuplicateReservation(req.MemberID, req.BookID)
	}

	history, err := lm.ledger.TransactionsFor(lm.db.db, req.MemberID)
	if err != nil {
		return QueuedReservation{}, err
	}
	r, pos := lm.queues.Add(Reservation{
		MemberID:            req.MemberID,
		BookID:              req.BookID,
		Type:                req.Type,
		PreferredPickupDate: req.PreferredPickupDate,
		MaxWaitDays:         req.MaxWaitDays.Value,
		Score:               PriorityScore(history),
		CreatedAt:           lm.clock.Now(),
	})
	lm.log.Info("reservation queued", "reservation_id", r.ID, "member_id", r.MemberID, "book_id", r.BookID,
		"priority_score", r.Score, "queue_position", pos)
	return QueuedReservation{Reservation: r, Position: pos}, nil
}

// ListReservations returns a book's queue in service order.
func (lm *LibraryManager) ListReservations(bookID int64) ([]QueuedReservation, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, err := lm.store.GetBook(lm.db.db, bookID); err != nil {
		return nil, err
	}
	return lm.queues.Queue(bookID), nil
}

// MemberReservations returns the reservations a member holds, oldest first.
func (lm *LibraryManager) MemberReservations(memberID int64) ([]QueuedReservation, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, err := lm.store.GetMember(lm.db.db, memberID); err != nil {
		return nil, err
	}
	held := lm.queues.HeldBy(memberID)
	if held == nil {
		held = []QueuedReservation{}
	}
	return held, nil
}

// GetReservation returns a queued reservation with its current position.
func (lm *LibraryManager) GetReservation(id string) (QueuedReservation, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	r, ok := lm.queues.Get(id)
	if !ok {
		return QueuedReservation{}, errReservationNotFound(id)
	}
	pos, _ := lm.queues.Position(id)
	return QueuedReservation{Reservation: r, Position: pos}, nil
}

// CancelReservation removes a reservation from its queue.
func (lm *LibraryManager) CancelReservation(id string) (Reservation, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	r, ok := lm.queues.Remove(id)
	if !ok {
		return Reservation{}, errReservationNotFound(id)
	}
	lm.log.Info("reservation cancelled", "reservation_id", id, "member_id", r.MemberID, "book_id", r.BookID)
	return r, nil
}
