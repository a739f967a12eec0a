package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// EntityStore keeps member and book records keyed by their client-chosen ids.
// Every method runs against the Ext it is given, so the orchestration layer
// decides whether a call joins a larger transaction.
type EntityStore struct {
	dialect goqu.DialectWrapper
}

// NewEntityStore creates a store issuing SQLite-dialect queries.
func NewEntityStore() EntityStore {
	return EntityStore{dialect: goqu.Dialect("sqlite3")}
}

// foldKey normalizes text for case-insensitive matching beyond ASCII.
func foldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func exists(q sqlx.Queryer, query string, id int64) (bool, error) {
	var found bool
	if err := sqlx.Get(q, &found, query, id); err != nil {
		return false, err
	}
	return found, nil
}

// ------------------ Members ------------------

func (EntityStore) MemberExists(q sqlx.Queryer, id int64) (bool, error) {
	return exists(q, `SELECT EXISTS(SELECT 1 FROM members WHERE member_id=?)`, id)
}

func (s EntityStore) CreateMember(e sqlx.Ext, m Member) error {
	found, err := s.MemberExists(e, m.ID)
	if err != nil {
		return fmt.Errorf("check member: %w", err)
	}
	if found {
		return errMemberExists(m.ID)
	}
	if _, err := e.Exec(`INSERT INTO members(member_id,name,age,has_borrowed) VALUES(?,?,?,0)`,
		m.ID, m.Name, m.Age); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (EntityStore) GetMember(q sqlx.Queryer, id int64) (*Member, error) {
	var m Member
	err := sqlx.Get(q, &m, `SELECT member_id,name,age,has_borrowed FROM members WHERE member_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errMemberNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// ListMembers returns all members ordered by id, without the borrow flag.
func (EntityStore) ListMembers(q sqlx.Queryer) ([]MemberSummary, error) {
	members := []MemberSummary{}
	if err := sqlx.Select(q, &members, `SELECT member_id,name,age FROM members ORDER BY member_id`); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// SaveMember overwrites the mutable member fields.
func (EntityStore) SaveMember(e sqlx.Execer, m Member) error {
	if _, err := e.Exec(`UPDATE members SET name=?, age=?, has_borrowed=? WHERE member_id=?`,
		m.Name, m.Age, m.HasBorrowed, m.ID); err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

func (EntityStore) SetHasBorrowed(e sqlx.Execer, id int64, borrowed bool) error {
	if _, err := e.Exec(`UPDATE members SET has_borrowed=? WHERE member_id=?`, borrowed, id); err != nil {
		return fmt.Errorf("update member borrow flag: %w", err)
	}
	return nil
}

func (EntityStore) DeleteMember(e sqlx.Execer, id int64) error {
	if _, err := e.Exec(`DELETE FROM members WHERE member_id=?`, id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// ------------------ Books ------------------

func (EntityStore) BookExists(q sqlx.Queryer, id int64) (bool, error) {
	return exists(q, `SELECT EXISTS(SELECT 1 FROM books WHERE book_id=?)`, id)
}

func (s EntityStore) CreateBook(e sqlx.Ext, b Book) error {
	found, err := s.BookExists(e, b.ID)
	if err != nil {
		return fmt.Errorf("check book: %w", err)
	}
	if found {
		return errBookExists(b.ID)
	}
	if _, err := e.Exec(`INSERT INTO books(book_id,title,author,isbn,is_available,title_key,author_key,isbn_key)
        VALUES(?,?,?,?,1,?,?,?)`,
		b.ID, b.Title, b.Author, b.ISBN, foldKey(b.Title), foldKey(b.Author), foldKey(b.ISBN)); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (EntityStore) GetBook(q sqlx.Queryer, id int64) (*Book, error) {
	var b Book
	err := sqlx.Get(q, &b, `SELECT book_id,title,author,isbn,is_available FROM books WHERE book_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBookNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// ListBooks returns every book ordered by id.
func (EntityStore) ListBooks(q sqlx.Queryer) ([]Book, error) {
	books := []Book{}
	if err := sqlx.Select(q, &books, `SELECT book_id,title,author,isbn,is_available FROM books ORDER BY book_id`); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (EntityStore) SetAvailable(e sqlx.Execer, id int64, available bool) error {
	if _, err := e.Exec(`UPDATE books SET is_available=? WHERE book_id=?`, available, id); err != nil {
		return fmt.Errorf("update book availability: %w", err)
	}
	return nil
}

func (EntityStore) DeleteBook(e sqlx.Execer, id int64) error {
	if _, err := e.Exec(`DELETE FROM books WHERE book_id=?`, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}
