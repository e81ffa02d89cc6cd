package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCaller is returned when an operation is invoked without a
	// caller identity.
	ErrMissingCaller = errors.New("caller identity required")

	// ErrMissingRecipient is returned by GiftSubscription when no recipient
	// account is given.
	ErrMissingRecipient = errors.New("recipient account required")

	// ErrInvalidFee rejects service registration with a non-positive fee.
	ErrInvalidFee = errors.New("fee must be greater than zero")

	// ErrInvalidPeriod rejects service registration with a non-positive period.
	ErrInvalidPeriod = errors.New("period must be greater than zero")

	// ErrServiceNotFound covers both unknown service ids and deactivated
	// services: neither accepts payments.
	ErrServiceNotFound = errors.New("service not found or inactive")

	// ErrIncorrectFee rejects payments that do not match the service fee
	// exactly. Overpayment is not change-making, it is a caller bug.
	ErrIncorrectFee = errors.New("payment does not match service fee")

	// ErrNotOwner rejects withdrawal attempts by anyone but the service owner.
	ErrNotOwner = errors.New("only the service owner may withdraw")
)

// TransferError reports a treasury failure. By the time it is returned the
// ledger has already rolled its own state back, so callers can treat it as
// a clean rejection.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("treasury %s failed: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
