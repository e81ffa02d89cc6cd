package models

import (
	"time"
)

// Service represents a registered, fee-gated recurring offering. Core terms
// (owner, fee, period, name) are immutable after creation; only Balance and
// IsActive ever change.
type Service struct {
	ID         int64  `json:"id" db:"id"`
	Owner      string `json:"owner" db:"owner_account"`
	Name       string `json:"name" db:"name"`
	Fee        int64  `json:"fee" db:"fee"`
	PeriodSecs int64  `json:"period_secs" db:"period_secs"`
	IsActive   bool   `json:"is_active" db:"is_active"`

	// Balance is the escrowed amount owned by Owner, decremented only by
	// withdrawal.
	Balance int64 `json:"balance" db:"balance"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Period returns the subscription period as a duration.
func (s Service) Period() time.Duration {
	return time.Duration(s.PeriodSecs) * time.Second
}

// AccessGrant tracks when a subscriber's access to a service expires. Grants
// are created on first payment and extended or reset in place; they are never
// deleted.
type AccessGrant struct {
	ServiceID int64     `json:"service_id" db:"service_id"`
	Account   string    `json:"account" db:"account"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Active reports whether the grant is still active at the given instant.
// A grant is active strictly before its expiry, never at or after it.
func (g AccessGrant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}
