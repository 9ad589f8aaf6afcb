package sync3

import (
	"context"
	"errors"
	"testing"
	"time"
)

func makeSequentialTxnIDs() func() string {
	n := 0
	return func() string {
		n++
		ids := []string{"", "T1", "T2", "T3", "T4", "T5"}
		return ids[n]
	}
}

func TestTransactionLedgerAcknowledgeSupersedesEarlier(t *testing.T) {
	ledger := NewTransactionLedger(makeSequentialTxnIDs())
	defer ledger.Stop()

	t1, c1 := ledger.Issue()
	t2, c2 := ledger.Issue()
	t3, c3 := ledger.Issue()
	if t1 != "T1" || t2 != "T2" || t3 != "T3" {
		t.Fatalf("unexpected txn ids: %s %s %s", t1, t2, t3)
	}

	ledger.Acknowledge("T2")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err1 := c1.Wait(ctx)
	var superseded *SupersededError
	if !errors.As(err1, &superseded) {
		t.Fatalf("expected c1 to reject with SupersededError, got %v", err1)
	}
	if superseded.TxnID != "T1" {
		t.Fatalf("expected superseded error to carry T1's own id, got %s", superseded.TxnID)
	}

	if err2 := c2.Wait(ctx); err2 != nil {
		t.Fatalf("expected c2 to resolve cleanly, got %v", err2)
	}

	select {
	case <-c3.Done():
		t.Fatalf("c3 should remain pending")
	default:
	}

	if got := ledger.Len(); got != 1 {
		t.Fatalf("expected 1 outstanding entry (T3), got %d", got)
	}
}

func TestTransactionLedgerUnknownTxnIDIgnored(t *testing.T) {
	ledger := NewTransactionLedger(makeSequentialTxnIDs())
	defer ledger.Stop()
	ledger.Issue()
	ledger.Acknowledge("does-not-exist")
	if got := ledger.Len(); got != 1 {
		t.Fatalf("expected unknown ack to be a no-op, got %d outstanding", got)
	}
}

func TestTransactionLedgerDuplicateAcknowledgementIgnored(t *testing.T) {
	ledger := NewTransactionLedger(makeSequentialTxnIDs())
	defer ledger.Stop()
	_, c1 := ledger.Issue()
	ledger.Acknowledge("T1")
	ledger.Acknowledge("T1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c1.Wait(ctx); err != nil {
		t.Fatalf("expected c1 to resolve cleanly once, got %v", err)
	}
}
