package odb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonasWeidner/oDB/lib/engine"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

// ErrorTag is the closed taxonomy every failure of this package maps to.
type ErrorTag uint8

const (
	// TagAlreadyExists signals a constraint violation on an insert-style
	// write (primary or unique index key already present). It carries no
	// message, it is a boolean condition.
	TagAlreadyExists ErrorTag = iota
	// TagQuotaExceeded signals that a write would exceed the storage limit.
	TagQuotaExceeded
	// TagTransactionError signals a transaction that became inactive or was
	// aborted outside a constraint violation.
	TagTransactionError
	// TagDatabaseError covers everything else: not open, structural
	// mismatch, decode failure, unknown index, invalid schema.
	TagDatabaseError
)

// wire representations of the tags
const (
	wireAlreadyExists    = "ALREADY_EXISTS"
	wireQuotaExceeded    = "QUOTA_EXCEEDED"
	wireTransactionError = "TRANSACTION_ERROR"
	wireDatabaseError    = "DATABASE_ERROR"
)

// Error is the only error type the public surface of this package returns.
type Error struct {
	Tag ErrorTag
	Msg string
}

// Error implements the error interface. The string is the wire form:
// a bare tag for the message-less tags, TAG:message for the others.
func (e *Error) Error() string {
	switch e.Tag {
	case TagAlreadyExists:
		return wireAlreadyExists
	case TagQuotaExceeded:
		return wireQuotaExceeded
	case TagTransactionError:
		return wireTransactionError + ":" + e.Msg
	default:
		return wireDatabaseError + ":" + e.Msg
	}
}

// Is makes errors.Is match on the tag, ignoring the message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Tag == other.Tag
}

// NewAlreadyExists returns the constraint-violation error.
func NewAlreadyExists() *Error {
	return &Error{Tag: TagAlreadyExists}
}

// NewQuotaExceeded returns the storage-limit error.
func NewQuotaExceeded() *Error {
	return &Error{Tag: TagQuotaExceeded}
}

// NewTransactionError returns a TransactionError with a formatted message.
func NewTransactionError(format string, args ...any) *Error {
	return &Error{Tag: TagTransactionError, Msg: fmt.Sprintf(format, args...)}
}

// NewDatabaseError returns a DatabaseError with a formatted message.
func NewDatabaseError(format string, args ...any) *Error {
	return &Error{Tag: TagDatabaseError, Msg: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Normalization
// --------------------------------------------------------------------------

// Normalize maps any error onto the taxonomy. The mapping is total: engine
// sentinels land on their tag, an *Error passes through unchanged, and
// everything else defaults to DatabaseError. A nil error stays nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, engine.ErrKeyExists):
		return NewAlreadyExists()
	case errors.Is(err, engine.ErrQuotaExceeded):
		return NewQuotaExceeded()
	case errors.Is(err, engine.ErrTxnInactive), errors.Is(err, engine.ErrTxnAborted):
		return NewTransactionError("%v", err)
	default:
		return NewDatabaseError("%v", err)
	}
}

// ParseError reconstructs an *Error from its wire form. Unknown strings
// parse as DatabaseError carrying the raw input, so a malformed peer still
// lands inside the taxonomy.
func ParseError(s string) *Error {
	tag, msg, _ := strings.Cut(s, ":")
	switch tag {
	case wireAlreadyExists:
		return NewAlreadyExists()
	case wireQuotaExceeded:
		return NewQuotaExceeded()
	case wireTransactionError:
		return &Error{Tag: TagTransactionError, Msg: msg}
	case wireDatabaseError:
		return &Error{Tag: TagDatabaseError, Msg: msg}
	default:
		return NewDatabaseError("%s", s)
	}
}
