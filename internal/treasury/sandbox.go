// Package treasury provides the value-transfer backends the ledger draws
// on: an in-memory sandbox for development and tests, and an Ethereum
// wallet backed by prepaid deposits for production.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientFunds is returned by Collect when the payer's balance
// cannot cover the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Sandbox is an in-memory account book. Accounts are created on first
// credit and may not go negative.
type Sandbox struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewSandbox returns an empty sandbox treasury.
func NewSandbox() *Sandbox {
	return &Sandbox{balances: make(map[string]int64)}
}

// Credit adds funds to an account. Used to seed test balances and by the
// sandbox deposit endpoint.
func (s *Sandbox) Credit(account string, amount int64) {
	if amount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
}

// Balance returns the account's current funds.
func (s *Sandbox) Balance(account string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account]
}

// Collect debits a payment from the account.
func (s *Sandbox) Collect(ctx context.Context, from string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[from] < amount {
		return fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, from, s.balances[from], amount)
	}
	s.balances[from] -= amount
	return nil
}

// Payout credits a withdrawal to the account.
func (s *Sandbox) Payout(ctx context.Context, to string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[to] += amount
	return nil
}
