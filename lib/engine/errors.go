package engine

import "errors"

// --------------------------------------------------------------------------
// Native Error Sentinels
// --------------------------------------------------------------------------

// Engine implementations wrap their failures around these sentinels so the
// core can normalize them into its closed error taxonomy with errors.Is.
var (
	// ErrKeyExists signals a uniqueness violation on the primary key or a
	// unique index during an insert-style write.
	ErrKeyExists = errors.New("engine: key already exists")

	// ErrQuotaExceeded signals that a write would grow the database past
	// its configured storage quota.
	ErrQuotaExceeded = errors.New("engine: storage quota exceeded")

	// ErrTxnInactive signals an operation on a transaction that has
	// already settled.
	ErrTxnInactive = errors.New("engine: transaction is not active")

	// ErrTxnAborted signals that the owning transaction rolled back
	// before this request could take effect.
	ErrTxnAborted = errors.New("engine: transaction aborted")

	// ErrClosed signals an operation on a closed connection.
	ErrClosed = errors.New("engine: connection is closed")
)
