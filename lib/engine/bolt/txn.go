package bolt

import (
	"fmt"
	"sync"

	"github.com/JonasWeidner/oDB/lib/engine"
	bbolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Transaction Type
// --------------------------------------------------------------------------

// boltTxn runs one bbolt transaction on a dedicated worker goroutine.
// Requests are queued and executed in submission order; the first failure
// rolls the transaction back and poisons the rest of the queue.
type boltTxn struct {
	conn *connection
	cfg  engine.CollectionConfig
	mode engine.Mode

	mu     sync.Mutex
	closed bool
	ops    chan txnOp

	done chan struct{}
	err  error
}

type txnOp struct {
	req  *engine.Request
	exec func(x *txnExec) (any, error)
}

// txnExec bundles what executors need; it only ever lives on the worker
// goroutine, which keeps all bbolt access single-goroutine as required.
type txnExec struct {
	tx      *bbolt.Tx
	records *bbolt.Bucket
	indexes *bbolt.Bucket
	cfg     engine.CollectionConfig
	mode    engine.Mode
}

func newTxn(conn *connection, cfg engine.CollectionConfig, mode engine.Mode) *boltTxn {
	t := &boltTxn{
		conn: conn,
		cfg:  cfg,
		mode: mode,
		ops:  make(chan txnOp, 64),
		done: make(chan struct{}),
	}
	go t.run()
	return t
}

// --------------------------------------------------------------------------
// Worker Loop
// --------------------------------------------------------------------------

func (t *boltTxn) run() {
	var (
		aborted error
		btx     *bbolt.Tx
		x       *txnExec
	)

	btx, err := t.conn.db.Begin(t.mode == engine.ReadWrite)
	if err != nil {
		aborted = fmt.Errorf("bolt: begin transaction on %q: %w", t.cfg.Name, err)
	} else {
		records := btx.Bucket(bucketData).Bucket([]byte(t.cfg.Name))
		indexes := btx.Bucket(bucketIndex).Bucket([]byte(t.cfg.Name))
		if records == nil || indexes == nil {
			aborted = fmt.Errorf("bolt: collection %q is gone", t.cfg.Name)
			_ = btx.Rollback()
			btx = nil
		} else {
			x = &txnExec{tx: btx, records: records, indexes: indexes, cfg: t.cfg, mode: t.mode}
		}
	}

	for op := range t.ops {
		metricReqs.Inc()

		if aborted != nil {
			op.req.Settle(nil, aborted)
			continue
		}

		value, err := op.exec(x)
		if err != nil {
			aborted = err
			_ = btx.Rollback()
			btx = nil
			op.req.Settle(nil, err)
			continue
		}
		op.req.Settle(value, nil)
	}

	// queue closed: settle the transaction itself
	if aborted == nil && btx != nil {
		switch {
		case t.mode != engine.ReadWrite:
			_ = btx.Rollback()
		case t.overQuota(btx):
			aborted = fmt.Errorf("bolt: database %q: %w", t.conn.name, engine.ErrQuotaExceeded)
			_ = btx.Rollback()
		default:
			if err := btx.Commit(); err != nil {
				aborted = fmt.Errorf("bolt: commit on %q: %w", t.cfg.Name, err)
			}
		}
	}

	t.err = aborted
	if aborted != nil {
		metricAborts.Inc()
	} else {
		metricCommits.Inc()
	}
	close(t.done)
}

func (t *boltTxn) overQuota(btx *bbolt.Tx) bool {
	quota := t.conn.engine.opts.QuotaBytes
	return quota > 0 && btx.Size() > quota
}

// issue queues one operation, or settles it immediately if the queue is
// already closed.
//
// Thread-safety: This method is safe for concurrent use.
func (t *boltTxn) issue(exec func(x *txnExec) (any, error)) *engine.Request {
	req := engine.NewRequest()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		req.Settle(nil, engine.ErrTxnInactive)
		return req
	}
	t.ops <- txnOp{req: req, exec: exec}
	t.mu.Unlock()

	return req
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine.Txn)
// --------------------------------------------------------------------------

func (t *boltTxn) Mode() engine.Mode { return t.mode }

func (t *boltTxn) Commit() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.ops)
	}
	t.mu.Unlock()
}

func (t *boltTxn) Done() <-chan struct{} { return t.done }

func (t *boltTxn) Err() error { return t.err }
