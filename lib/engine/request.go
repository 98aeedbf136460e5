package engine

import (
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Asynchronous Requests
// --------------------------------------------------------------------------

// Request is the pending result of one operation issued against a Txn.
// A request settles exactly once; Settle is guarded so that racing
// completion paths (request success vs. transaction abort) cannot settle
// it a second time.
type Request struct {
	done    chan struct{}
	settled atomic.Bool
	value   any
	err     error
}

// NewRequest creates an unsettled request. Intended for engine
// implementations.
func NewRequest() *Request {
	return &Request{done: make(chan struct{})}
}

// Settle completes the request with a value or an error. The first call
// wins; later calls are no-ops.
//
// Thread-safety: This method is safe for concurrent use.
func (r *Request) Settle(value any, err error) {
	if !r.settled.CompareAndSwap(false, true) {
		return
	}
	r.value = value
	r.err = err
	close(r.done)
}

// Done returns a channel that is closed once the request has settled.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Value returns the result value. Only valid after Done has fired.
func (r *Request) Value() any {
	return r.value
}

// Err returns the result error. Only valid after Done has fired.
func (r *Request) Err() error {
	return r.err
}

// Await blocks until the request settles and returns its result.
func (r *Request) Await() (any, error) {
	<-r.done
	return r.value, r.err
}
