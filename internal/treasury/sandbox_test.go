package treasury

import (
	"context"
	"errors"
	"testing"
)

func TestSandboxCollect(t *testing.T) {
	s := NewSandbox()
	s.Credit("bob", 150)

	if err := s.Collect(context.Background(), "bob", 100); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := s.Balance("bob"); got != 50 {
		t.Errorf("balance after collect: got %d, want 50", got)
	}
}

func TestSandboxCollectInsufficientFunds(t *testing.T) {
	s := NewSandbox()
	s.Credit("bob", 50)

	err := s.Collect(context.Background(), "bob", 100)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if got := s.Balance("bob"); got != 50 {
		t.Errorf("balance disturbed by failed collect: %d", got)
	}
}

func TestSandboxCollectUnknownAccount(t *testing.T) {
	s := NewSandbox()
	if err := s.Collect(context.Background(), "nobody", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestSandboxPayout(t *testing.T) {
	s := NewSandbox()
	if err := s.Payout(context.Background(), "alice", 300); err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if got := s.Balance("alice"); got != 300 {
		t.Errorf("balance after payout: got %d, want 300", got)
	}
}

func TestSandboxIgnoresNonPositiveCredit(t *testing.T) {
	s := NewSandbox()
	s.Credit("bob", 0)
	s.Credit("bob", -10)
	if got := s.Balance("bob"); got != 0 {
		t.Errorf("balance: got %d, want 0", got)
	}
}
