package library

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed library operation.
type ErrorKind string

const (
	// KindNotFound: a member, book or reservation id is unknown.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindAlreadyExists: a create used an id that is already taken.
	KindAlreadyExists ErrorKind = "ALREADY_EXISTS"

	// KindConflict: a business rule refused the operation.
	KindConflict ErrorKind = "CONFLICT"

	// KindInvalidInput: the request itself is malformed.
	KindInvalidInput ErrorKind = "INVALID_INPUT"
)

// Error is the failure returned by every core operation. Message is part of
// the API contract and is rendered verbatim by callers.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// KindOf extracts the kind of a library error, looking through wrapping.
func KindOf(err error) (ErrorKind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// IsNotFound, IsAlreadyExists, IsConflict and IsInvalidInput report whether
// err is a library Error of that kind.
func IsNotFound(err error) bool      { return hasKind(err, KindNotFound) }
func IsAlreadyExists(err error) bool { return hasKind(err, KindAlreadyExists) }
func IsConflict(err error) bool      { return hasKind(err, KindConflict) }
func IsInvalidInput(err error) bool  { return hasKind(err, KindInvalidInput) }

func hasKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrNoActiveBorrow is returned by the ledger when no active transaction
// matches a return request.
var ErrNoActiveBorrow = errors.New("no active borrow")

func errMemberNotFound(id int64) error {
	return newError(KindNotFound, "member with id: %d was not found", id)
}

func errBookNotFound(id int64) error {
	return newError(KindNotFound, "book with id: %d was not found", id)
}

func errReservationNotFound(id string) error {
	return newError(KindNotFound, "reservation with id: %s was not found", id)
}

func errMemberExists(id int64) error {
	return newError(KindAlreadyExists, "member with id: %d already exists", id)
}

func errBookExists(id int64) error {
	return newError(KindAlreadyExists, "book with id: %d already exists", id)
}

func errAlreadyBorrowed(memberID int64) error {
	return newError(KindConflict, "member with id: %d has already borrowed a book", memberID)
}

func errBookUnavailable(bookID int64) error {
	return newError(KindConflict, "book with id: %d is not available", bookID)
}

func errNotBorrowed(memberID, bookID int64) error {
	return newError(KindConflict, "member with id: %d has not borrowed book with id: %d", memberID, bookID)
}

func errMemberDeleteBlocked(id int64) error {
	return newError(KindConflict, "cannot delete member with id: %d, member has an active book borrowing", id)
}

func errBookDeleteBlocked(id int64) error {
	return newError(KindConflict, "cannot delete book with id: %d, book is currently borrowed", id)
}

func errReservationLimit(memberID int64, limit int) error {
	return newError(KindConflict, "member with id: %d has reached the reservation limit of %d", memberID, limit)
}

func errDuplicateReservation(memberID, bookID int64) error {
	return newError(KindConflict, "member with id: %d already has a reservation for book with id: %d", memberID, bookID)
}

func errInvalidAge(age int) error {
	return newError(KindInvalidInput, "invalid age: %d, member must be at least %d years old", age, MinMemberAge)
}

func errInvalidID(field string, id int64) error {
	return newError(KindInvalidInput, "invalid %s: %d, must be a positive integer", field, id)
}

func errEmptyField(field string) error {
	return newError(KindInvalidInput, "%s must not be empty", field)
}

// InvalidInputf builds an InvalidInput error; the request layer uses it for
// schema-level failures it detects before reaching the core.
func InvalidInputf(format string, args ...any) error {
	return newError(KindInvalidInput, format, args...)
}
