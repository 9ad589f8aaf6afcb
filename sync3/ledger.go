package sync3

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/matrix-org/sliding-sync-client/internal"
)

// SupersededError is the reason a Completion rejects with when an earlier,
// still-outstanding transaction is superseded by a later one the server has
// acknowledged. TxnID is always the rejecting entry's own id, never the
// acknowledged one, so a caller can tell their specific action apart from
// whichever action actually landed.
type SupersededError struct {
	TxnID string
}

func (e *SupersededError) Error() string {
	return fmt.Sprintf("sliding sync: txn %s superseded by a later acknowledged transaction", e.TxnID)
}

// Completion is the single-fire handle returned by TransactionLedger.Issue.
// It resolves when the server acknowledges this exact txn_id, or rejects
// with a SupersededError if an even-later txn_id is acknowledged first. It
// is safe to use from the goroutine that called resend()/set_list while the
// engine loop resolves it from a different goroutine.
type Completion struct {
	txnID string
	once  sync.Once
	done  chan struct{}
	err   error
}

func newCompletion(txnID string) *Completion {
	return &Completion{txnID: txnID, done: make(chan struct{})}
}

func (c *Completion) resolve() {
	c.once.Do(func() { close(c.done) })
}

func (c *Completion) reject(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// TxnID returns the transaction id this handle was issued for.
func (c *Completion) TxnID() string {
	return c.txnID
}

// Done returns a channel closed once this handle has resolved or rejected.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the handle fires or ctx is cancelled, returning the
// rejection error (nil on success).
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type ledgerEntry struct {
	txnID      string
	completion *Completion
}

// TransactionLedger is the ordered collection of outstanding client
// transactions described in spec §4.4. Insertion order is issue order;
// txn_ids are unique within the ledger for as long as they remain in it.
type TransactionLedger struct {
	mu            sync.Mutex
	entries       []ledgerEntry
	makeTxnID     func() string
	recentlyAcked *ttlcache.Cache[string, struct{}]
}

// NewTransactionLedger builds a ledger that mints ids via makeTxnID (in
// practice Transport.MakeTxnID). A small TTL cache of recently-acknowledged
// ids guards against a redelivered response acknowledging the same txn_id
// twice: the protocol guarantees at most one ack per txn, but this makes a
// transport replay bug inert instead of a ledger state corruption.
func NewTransactionLedger(makeTxnID func() string) *TransactionLedger {
	cache := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](5 * time.Minute),
	)
	go cache.Start()
	return &TransactionLedger{
		makeTxnID:     makeTxnID,
		recentlyAcked: cache,
	}
}

// Issue mints a fresh opaque txn_id and appends a new outstanding entry,
// returning both the id (to attach to the next request) and the completion
// handle the caller should wait on.
func (l *TransactionLedger) Issue() (string, *Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txnID := l.makeTxnID()
	for _, e := range l.entries {
		internal.Assert("txn ids are unique within the ledger", e.txnID != txnID)
	}
	c := newCompletion(txnID)
	l.entries = append(l.entries, ledgerEntry{txnID: txnID, completion: c})
	return txnID, c
}

// Acknowledge resolves the entry matching txnID, rejects every entry
// strictly earlier in the ledger with a SupersededError carrying their own
// txn_id, and removes all entries up to and including the matching one.
// Unknown txn_ids (including duplicates of an id already swept) are logged
// and ignored.
func (l *TransactionLedger) Acknowledge(txnID string) {
	if txnID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.recentlyAcked.Has(txnID) {
		logger.Warn().Str("txn_id", txnID).Msg("TransactionLedger: duplicate acknowledgement, ignoring")
		return
	}

	idx := -1
	for i, e := range l.entries {
		if e.txnID == txnID {
			idx = i
			break
		}
	}
	if idx == -1 {
		logger.Warn().Str("txn_id", txnID).Msg("TransactionLedger: acknowledgement for unknown txn_id, ignoring")
		return
	}

	for i := 0; i < idx; i++ {
		l.entries[i].completion.reject(&SupersededError{TxnID: l.entries[i].txnID})
	}
	l.entries[idx].completion.resolve()
	l.recentlyAcked.Set(txnID, struct{}{}, ttlcache.DefaultTTL)
	l.entries = l.entries[idx+1:]
}

// Len returns the number of outstanding (unresolved) entries.
func (l *TransactionLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop shuts down the background TTL eviction goroutine. Call this when the
// owning engine is stopped.
func (l *TransactionLedger) Stop() {
	l.recentlyAcked.Stop()
}
