/*
Error taxonomy shared by all packages.

Every failure a caller may want to react to is one of the kinds below.
Sentinel errors are *Error values, and they are wrapped with github.com/pkg/errors
on the way up, so callers check them with errors.Is(err, common.ErrXxx)
or classify them with KindOf(err).

- resource exhaustion (catalog full, too many transactions, slot directory full, page full...)
- not found (table, transaction, row, slot)
- invalid state (operating on non-active transaction, double commit)
- duplicate (table name)
- io (file open/read/write failure)
- encoding (serialization size mismatch, corrupted bytes)
*/
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the kind of error
type Kind int

const (
	// KindUnknown is the kind of errors not defined here
	KindUnknown Kind = iota
	KindCapacityExceeded
	KindNotFound
	KindInvalidState
	KindDuplicate
	KindIO
	KindEncoding
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindCapacityExceeded: "capacity exceeded",
	KindNotFound:         "not found",
	KindInvalidState:     "invalid state",
	KindDuplicate:        "duplicate",
	KindIO:               "io",
	KindEncoding:         "encoding",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is typed error
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// NewError initializes error with the kind
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Kind returns the kind
func (e *Error) Kind() Kind {
	return e.kind
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.cause
}

// sentinel errors
var (
	ErrTooManyTransactions = NewError(KindCapacityExceeded, "too many concurrent transactions")
	ErrCatalogFull         = NewError(KindCapacityExceeded, "catalog is full")
	ErrTooManyColumns      = NewError(KindCapacityExceeded, "too many columns")
	ErrNameTooLong         = NewError(KindCapacityExceeded, "name is too long")
	ErrSlotDirectoryFull   = NewError(KindCapacityExceeded, "slot directory is full")
	ErrPageFull            = NewError(KindCapacityExceeded, "not enough free space in page")
	ErrCacheFull           = NewError(KindCapacityExceeded, "all page cache frames are pinned")

	ErrTableNotFound       = NewError(KindNotFound, "table not found")
	ErrColumnNotFound      = NewError(KindNotFound, "column not found")
	ErrNoSuchTransaction   = NewError(KindNotFound, "no such transaction")
	ErrNoActiveTransaction = NewError(KindNotFound, "no active transaction")
	ErrRowNotFound         = NewError(KindNotFound, "row not found")
	ErrSlotNotFound        = NewError(KindNotFound, "slot not found")
	ErrPageOutOfRange      = NewError(KindNotFound, "page is beyond the end of file")
	ErrPageNotCached       = NewError(KindNotFound, "page is not in page cache")

	ErrNotActive    = NewError(KindInvalidState, "transaction is not active")
	ErrEngineClosed = NewError(KindInvalidState, "engine is closed")

	ErrDuplicateName = NewError(KindDuplicate, "name already exists")

	ErrCorrupted    = NewError(KindEncoding, "corrupted data")
	ErrTypeMismatch = NewError(KindEncoding, "type mismatch")
)

// WrapIO wraps the error from file operation as io error
func WrapIO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{kind: KindIO, msg: msg, cause: err})
}

// KindOf returns the kind of the first typed error found in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind checks whether the error is the kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
