package library

import (
	"container/heap"
	"fmt"
	"sort"
	"time"
)

// ReservationQueues keeps one priority queue per book, combining a binary heap
// per book with an index by reservation id (the same heap+map shape as a
// keyed priority queue) so that peeking the head is O(1), insertion and
// removal are O(log n), and lookups by id are O(1).
//
// Ordering: higher priority score first, then earlier creation time, then
// earlier sequence number. The sequence makes the order total, so equal
// scores created at the same instant keep their insertion order.
//
// ReservationQueues is not safe for concurrent use; LibraryManager serializes access.
type ReservationQueues struct {
	seq    *Sequence
	queues map[int64]*reservationHeap
	byID   map[string]*queueItem
}

type queueItem struct {
	res   Reservation
	index int
}

// NewReservationQueues creates an empty engine drawing reservation numbers from seq.
func NewReservationQueues(seq *Sequence) *ReservationQueues {
	return &ReservationQueues{
		seq:    seq,
		queues: make(map[int64]*reservationHeap),
		byID:   make(map[string]*queueItem),
	}
}

// outranks reports whether a is served before b.
func outranks(a, b *Reservation) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.seq < b.seq
}

// reservationID formats RES-YYYYMMDD-NNN. The number comes from a process-wide
// sequence that does not reset when the day changes.
func reservationID(createdAt time.Time, n int64) string {
	return fmt.Sprintf("RES-%s-%03d", createdAt.Format("20060102"), n)
}

// Add assigns r an id and queues it behind every reservation that outranks it.
// It returns the stored reservation and its 1-based position.
func (q *ReservationQueues) Add(r Reservation) (Reservation, int) {
	r.seq = q.seq.Next()
	r.ID = reservationID(r.CreatedAt, r.seq)
	r.Status = ReservationQueued

	h, ok := q.queues[r.BookID]
	if !ok {
		h = &reservationHeap{}
		q.queues[r.BookID] = h
	}
	it := &queueItem{res: r}
	heap.Push(h, it)
	q.byID[r.ID] = it

	pos, _ := q.Position(r.ID)
	return r, pos
}

// Position returns the 1-based rank of a reservation within its book's queue.
func (q *ReservationQueues) Position(id string) (int, bool) {
	it, ok := q.byID[id]
	if !ok {
		return 0, false
	}
	for i, r := range q.ordered(it.res.BookID) {
		if r.ID == id {
			return i + 1, true
		}
	}
	return 0, false
}

// ordered returns a sorted copy of a book's queue; the heap itself is only
// partially ordered.
func (q *ReservationQueues) ordered(bookID int64) []Reservation {
	h, ok := q.queues[bookID]
	if !ok {
		return nil
	}
	out := make([]Reservation, len(*h))
	for i, it := range *h {
		out[i] = it.res
	}
	sort.Slice(out, func(i, j int) bool { return outranks(&out[i], &out[j]) })
	return out
}

// Queue returns a book's reservations in service order with their positions.
func (q *ReservationQueues) Queue(bookID int64) []QueuedReservation {
	ordered := q.ordered(bookID)
	out := make([]QueuedReservation, len(ordered))
	for i, r := range ordered {
		out[i] = QueuedReservation{Reservation: r, Position: i + 1}
	}
	return out
}

// Peek returns the reservation that would be served next for a book.
func (q *ReservationQueues) Peek(bookID int64) (Reservation, bool) {
	h, ok := q.queues[bookID]
	if !ok || h.Len() == 0 {
		return Reservation{}, false
	}
	return (*h)[0].res, true
}

// Get returns a reservation by id.
func (q *ReservationQueues) Get(id string) (Reservation, bool) {
	it, ok := q.byID[id]
	if !ok {
		return Reservation{}, false
	}
	return it.res, true
}

// HeldBy returns every reservation a member holds across all books, oldest first,
// each with its current queue position.
func (q *ReservationQueues) HeldBy(memberID int64) []QueuedReservation {
	var held []QueuedReservation
	for id, it := range q.byID {
		if it.res.MemberID != memberID {
			continue
		}
		pos, _ := q.Position(id)
		held = append(held, QueuedReservation{Reservation: it.res, Position: pos})
	}
	sort.Slice(held, func(i, j int) bool { return held[i].seq < held[j].seq })
	return held
}

// CountHeldBy counts a member's reservations across all books.
func (q *ReservationQueues) CountHeldBy(memberID int64) int {
	n := 0
	for _, it := range q.byID {
		if it.res.MemberID == memberID {
			n++
		}
	}
	return n
}

// Holds reports whether a member already has a reservation for a book.
func (q *ReservationQueues) Holds(memberID, bookID int64) bool {
	h, ok := q.queues[bookID]
	if !ok {
		return false
	}
	for _, it := range *h {
		if it.res.MemberID == memberID {
			return true
		}
	}
	return false
}

// Remove takes a reservation out of its queue.
func (q *ReservationQueues) Remove(id string) (Reservation, bool) {
	it, ok := q.byID[id]
	if !ok {
		return Reservation{}, false
	}
	h := q.queues[it.res.BookID]
	heap.Remove(h, it.index)
	delete(q.byID, id)
	if h.Len() == 0 {
		delete(q.queues, it.res.BookID)
	}
	return it.res, true
}

// DropBook discards the whole queue of a book.
func (q *ReservationQueues) DropBook(bookID int64) int {
	h, ok := q.queues[bookID]
	if !ok {
		return 0
	}
	n := h.Len()
	for _, it := range *h {
		delete(q.byID, it.res.ID)
	}
	delete(q.queues, bookID)
	return n
}

// DropMember discards every reservation a member holds.
func (q *ReservationQueues) DropMember(memberID int64) int {
	var ids []string
	for id, it := range q.byID {
		if it.res.MemberID == memberID {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		q.Remove(id)
	}
	return len(ids)
}

// ---------------------------------------------------------------------------
// heap.Interface
// ---------------------------------------------------------------------------

type reservationHeap []*queueItem

func (h reservationHeap) Len() int { return len(h) }

func (h reservationHeap) Less(i, j int) bool { return outranks(&h[i].res, &h[j].res) }

func (h reservationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *reservationHeap) Push(x any) {
	it := x.(*queueItem)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *reservationHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
