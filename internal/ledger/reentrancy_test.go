package ledger

import (
	"context"
	"testing"
	"time"
)

// reentrantTreasury re-enters the ledger from inside Payout, the way a
// hostile payment hook would, and records what it observed.
type reentrantTreasury struct {
	ledger *Ledger

	reentered       bool
	observedBalance int64
	secondWithdraw  int64
	secondErr       error
}

func (tr *reentrantTreasury) Collect(ctx context.Context, from string, amount int64) error {
	return nil
}

func (tr *reentrantTreasury) Payout(ctx context.Context, to string, amount int64) error {
	if tr.reentered {
		return nil
	}
	tr.reentered = true
	svc, _ := tr.ledger.Service(0)
	tr.observedBalance = svc.Balance
	tr.secondWithdraw, tr.secondErr = tr.ledger.WithdrawBalance(ctx, to, 0)
	return nil
}

// A payout callback that immediately withdraws again must find the balance
// already zeroed: the second withdrawal is a no-op, not a double spend.
func TestWithdrawReentrancyCannotDoubleSpend(t *testing.T) {
	treasury := &reentrantTreasury{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(treasury, WithClock(func() time.Time { return clock }))
	treasury.ledger = l

	svc, err := l.CreateService("alice", "svc", 100, time.Hour)
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	if _, err := l.Subscribe(context.Background(), "bob", svc.ID, 100); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	amount, err := l.WithdrawBalance(context.Background(), "alice", svc.ID)
	if err != nil {
		t.Fatalf("WithdrawBalance: %v", err)
	}
	if amount != 100 {
		t.Errorf("outer withdrawal: got %d, want 100", amount)
	}
	if !treasury.reentered {
		t.Fatal("payout hook never ran")
	}
	if treasury.observedBalance != 0 {
		t.Errorf("re-entrant caller observed balance %d, want 0", treasury.observedBalance)
	}
	if treasury.secondErr != nil {
		t.Errorf("re-entrant withdrawal errored: %v", treasury.secondErr)
	}
	if treasury.secondWithdraw != 0 {
		t.Errorf("re-entrant withdrawal paid out %d, want 0", treasury.secondWithdraw)
	}
	if got, _ := l.Service(svc.ID); got.Balance != 0 {
		t.Errorf("final balance: %d", got.Balance)
	}
}
