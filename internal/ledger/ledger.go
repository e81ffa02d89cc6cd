// Package ledger implements the subscription billing ledger: service
// registration, exact-fee subscription payments with expiry stacking,
// gifting, and owner-only balance withdrawal.
//
// The ledger itself is not safe for concurrent use. Callers serialize
// access at a higher layer; the ledger only guarantees that its own state
// is fully updated (or fully rolled back) before any treasury interaction
// can observe it, so a treasury that re-enters through the serializing
// layer sees consistent balances.
package ledger

import (
	"context"
	"fmt"
	"time"

	"bursar/pkg/models"
)

// Treasury is the capability through which the ledger moves value. Collect
// pulls a payment from an account before a subscription is confirmed;
// Payout pushes a withdrawn balance to the service owner.
type Treasury interface {
	Collect(ctx context.Context, from string, amount int64) error
	Payout(ctx context.Context, to string, amount int64) error
}

type accessKey struct {
	service int64
	account string
}

// Ledger holds the full billing state in memory. Services are addressed by
// their position in the arena, so ids are dense and start at zero.
type Ledger struct {
	treasury Treasury
	sink     EventSink
	now      func() time.Time

	services []models.Service
	access   map[accessKey]time.Time
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithEventSink routes committed-mutation notifications to sink.
func WithEventSink(sink EventSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithClock overrides the time source. Tests use this to drive expiry
// arithmetic deterministically.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns an empty ledger backed by the given treasury.
func New(treasury Treasury, opts ...Option) *Ledger {
	l := &Ledger{
		treasury: treasury,
		now:      time.Now,
		access:   make(map[accessKey]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateService registers a paid service owned by caller and returns it.
// The id is assigned sequentially.
func (l *Ledger) CreateService(caller, name string, fee int64, period time.Duration) (models.Service, error) {
	if caller == "" {
		return models.Service{}, ErrMissingCaller
	}
	if fee <= 0 {
		return models.Service{}, ErrInvalidFee
	}
	if period <= 0 {
		return models.Service{}, ErrInvalidPeriod
	}

	now := l.now()
	svc := models.Service{
		ID:         int64(len(l.services)),
		Owner:      caller,
		Name:       name,
		Fee:        fee,
		PeriodSecs: int64(period / time.Second),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.services = append(l.services, svc)

	if l.sink != nil {
		l.sink.ServiceCreated(svc)
	}
	return svc, nil
}

// Service returns a copy of the service record, active or not.
func (l *Ledger) Service(id int64) (models.Service, bool) {
	if id < 0 || id >= int64(len(l.services)) {
		return models.Service{}, false
	}
	return l.services[id], true
}

// Services returns a copy of every registered service.
func (l *Ledger) Services() []models.Service {
	out := make([]models.Service, len(l.services))
	copy(out, l.services)
	return out
}

// Subscribe pays caller's subscription to a service. The payment must equal
// the service fee exactly. An active subscription is extended from its
// current expiry; a lapsed or absent one starts fresh from now. Returns the
// new expiry.
func (l *Ledger) Subscribe(ctx context.Context, caller string, serviceID, amount int64) (time.Time, error) {
	expiresAt, err := l.paySubscription(ctx, caller, caller, serviceID, amount)
	if err != nil {
		return time.Time{}, err
	}
	if l.sink != nil {
		l.sink.Subscribed(serviceID, caller, expiresAt)
	}
	return expiresAt, nil
}

// GiftSubscription pays for a subscription that accrues to recipient
// instead of the paying caller. The recipient's expiry arithmetic is the
// same as Subscribe's; the caller's own subscription is untouched.
func (l *Ledger) GiftSubscription(ctx context.Context, caller, recipient string, serviceID, amount int64) (time.Time, error) {
	if recipient == "" {
		return time.Time{}, ErrMissingRecipient
	}
	expiresAt, err := l.paySubscription(ctx, caller, recipient, serviceID, amount)
	if err != nil {
		return time.Time{}, err
	}
	if l.sink != nil {
		l.sink.SubscriptionGifted(serviceID, caller, recipient, expiresAt)
	}
	return expiresAt, nil
}

// paySubscription applies the shared payment path: validate, mutate balance
// and expiry, then collect from the payer. State changes land before the
// treasury call and are reverted if it fails.
func (l *Ledger) paySubscription(ctx context.Context, payer, beneficiary string, serviceID, amount int64) (time.Time, error) {
	if payer == "" {
		return time.Time{}, ErrMissingCaller
	}
	if serviceID < 0 || serviceID >= int64(len(l.services)) {
		return time.Time{}, ErrServiceNotFound
	}
	svc := &l.services[serviceID]
	if !svc.IsActive {
		return time.Time{}, ErrServiceNotFound
	}
	if amount != svc.Fee {
		return time.Time{}, fmt.Errorf("%w: want %d, got %d", ErrIncorrectFee, svc.Fee, amount)
	}

	now := l.now()
	key := accessKey{service: serviceID, account: beneficiary}
	prevExpiry, hadPrev := l.access[key]

	var expiresAt time.Time
	if hadPrev && now.Before(prevExpiry) {
		expiresAt = prevExpiry.Add(svc.Period())
	} else {
		expiresAt = now.Add(svc.Period())
	}

	svc.Balance += amount
	svc.UpdatedAt = now
	l.access[key] = expiresAt

	if err := l.treasury.Collect(ctx, payer, amount); err != nil {
		// Re-index: a re-entrant registration may have grown the arena and
		// moved the backing array while Collect ran.
		l.services[serviceID].Balance -= amount
		if hadPrev {
			l.access[key] = prevExpiry
		} else {
			delete(l.access, key)
		}
		return time.Time{}, &TransferError{Op: "collect", Err: err}
	}
	return expiresAt, nil
}

// HasActiveSubscription reports whether account's subscription to the
// service is unexpired right now.
func (l *Ledger) HasActiveSubscription(serviceID int64, account string) bool {
	expiresAt, ok := l.access[accessKey{service: serviceID, account: account}]
	return ok && l.now().Before(expiresAt)
}

// AccessExpiry returns account's recorded expiry for the service, expired
// or not.
func (l *Ledger) AccessExpiry(serviceID int64, account string) (time.Time, bool) {
	expiresAt, ok := l.access[accessKey{service: serviceID, account: account}]
	return expiresAt, ok
}

// WithdrawBalance moves the service's accumulated balance to its owner.
// The balance is zeroed before the treasury payout, so a payout that
// re-enters the ledger cannot withdraw the same funds twice. A zero balance
// is a successful no-op. Returns the amount paid out.
func (l *Ledger) WithdrawBalance(ctx context.Context, caller string, serviceID int64) (int64, error) {
	if caller == "" {
		return 0, ErrMissingCaller
	}
	if serviceID < 0 || serviceID >= int64(len(l.services)) {
		return 0, ErrServiceNotFound
	}
	svc := &l.services[serviceID]
	if svc.Owner != caller {
		return 0, ErrNotOwner
	}

	owner := svc.Owner
	amount := svc.Balance
	if amount == 0 {
		return 0, nil
	}

	svc.Balance = 0
	svc.UpdatedAt = l.now()

	if err := l.treasury.Payout(ctx, owner, amount); err != nil {
		// New subscriptions may have credited the balance while the payout
		// ran, so restore by adding back rather than overwriting. Re-index
		// in case a re-entrant registration moved the backing array.
		l.services[serviceID].Balance += amount
		return 0, &TransferError{Op: "payout", Err: err}
	}

	if l.sink != nil {
		l.sink.BalanceWithdrawn(serviceID, owner, amount)
	}
	return amount, nil
}

// Snapshot captures the full ledger state for journaling.
type Snapshot struct {
	Services []models.Service
	Grants   []models.AccessGrant
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Services: make([]models.Service, len(l.services)),
		Grants:   make([]models.AccessGrant, 0, len(l.access)),
	}
	copy(snap.Services, l.services)
	for key, expiresAt := range l.access {
		snap.Grants = append(snap.Grants, models.AccessGrant{
			ServiceID: key.service,
			Account:   key.account,
			ExpiresAt: expiresAt,
		})
	}
	return snap
}

// Restore replaces the ledger state with a snapshot, typically one loaded
// from the journal at boot. Service ids must be dense from zero so that
// future ids stay sequential.
func (l *Ledger) Restore(snap Snapshot) error {
	for i, svc := range snap.Services {
		if svc.ID != int64(i) {
			return fmt.Errorf("snapshot service ids not sequential: index %d has id %d", i, svc.ID)
		}
	}
	l.services = make([]models.Service, len(snap.Services))
	copy(l.services, snap.Services)
	l.access = make(map[accessKey]time.Time, len(snap.Grants))
	for _, grant := range snap.Grants {
		l.access[accessKey{service: grant.ServiceID, account: grant.Account}] = grant.ExpiresAt
	}
	return nil
}
