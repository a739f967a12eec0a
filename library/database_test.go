package library

import (
	"sync"
	"testing"
	"time"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase()
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := tempDB(t)

	if err := applyMigrations(db.db); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	var version int
	if err := db.db.Get(&version, `SELECT value FROM meta WHERE key='schema_version'`); err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("want schema version %d, got %d", schemaVersion, version)
	}
}

func TestDatabasesAreIsolated(t *testing.T) {
	a := tempDB(t)
	b := tempDB(t)
	store := NewEntityStore()

	if err := store.CreateMember(a.db, Member{ID: 1, Name: "Alice", Age: 20}); err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := store.MemberExists(b.db, 1)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if found {
		t.Fatalf("member leaked between in-memory databases")
	}
}

// The partial unique indexes refuse a second active row even if a caller
// skips the orchestration checks.
func TestLedgerRejectsSecondActiveBorrow(t *testing.T) {
	db := tempDB(t)
	ledger := NewLedger(NewSequenceAt(transactionIDBase), DefaultLoanPeriod)
	now := time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC)

	if _, err := ledger.RecordBorrow(db.db, 1, 10, now); err != nil {
		t.Fatalf("first borrow: %v", err)
	}
	if _, err := ledger.RecordBorrow(db.db, 1, 11, now); err == nil {
		t.Fatalf("second active borrow for member accepted")
	}
	if _, err := ledger.RecordBorrow(db.db, 2, 10, now); err == nil {
		t.Fatalf("second active borrow for book accepted")
	}
	if _, err := ledger.RecordReturn(db.db, 2, 10, now); err != ErrNoActiveBorrow {
		t.Fatalf("want ErrNoActiveBorrow, got %v", err)
	}
}

func TestLedgerRollback(t *testing.T) {
	db := tempDB(t)
	ledger := NewLedger(NewSequenceAt(transactionIDBase), DefaultLoanPeriod)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := ledger.RecordBorrow(tx, 1, 10, time.Now().UTC()); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	active, err := ledger.ActiveBorrowFor(db.db, 1)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != nil {
		t.Fatalf("rolled back borrow is still active")
	}
}

func TestSequenceConcurrent(t *testing.T) {
	seq := NewSequenceAt(500)
	const n = 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := seq.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("want %d distinct ids, got %d", n, len(seen))
	}
	if seq.current() != 500+n {
		t.Fatalf("want current %d, got %d", 500+n, seq.current())
	}
	for id := range seen {
		if id <= 500 || id > 500+n {
			t.Fatalf("id %d out of range", id)
		}
	}
}

func TestConcurrentBorrowsOfOneBook(t *testing.T) {
	mgr := newManager(t)
	members := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	seed(t, mgr, members, []int64{10})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
	)
	for _, id := range members {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := mgr.Borrow(id, 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case IsConflict(err):
				conflict++
			default:
				t.Errorf("borrow %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if winners != 1 || conflict != len(members)-1 {
		t.Fatalf("want exactly one winner, got %d winners and %d conflicts", winners, conflict)
	}
}
