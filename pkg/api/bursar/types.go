// Package bursar defines the request and response types of the Bursar
// billing ledger HTTP API.
package bursar

import (
	"time"

	"bursar/pkg/models"
)

// ErrorResponse represents a standard error response from Bursar
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateServiceRequest registers a new paid service owned by the caller.
// Fee is in base monetary units and must be positive; PeriodSecs is the
// length in seconds one paid period extends access by.
type CreateServiceRequest struct {
	Name       string `json:"name" binding:"required"`
	Fee        int64  `json:"fee"`
	PeriodSecs int64  `json:"period_secs"`
}

// CreateServiceResponse carries the sequential id assigned to the service
type CreateServiceResponse struct {
	ServiceID int64          `json:"service_id"`
	Service   models.Service `json:"service"`
}

// GetServiceResponse returns one registered service
type GetServiceResponse struct {
	Service models.Service `json:"service"`
}

// ListServicesResponse returns the service registry
type ListServicesResponse struct {
	Services []models.Service `json:"services"`
	Count    int              `json:"count"`
}

// SubscribeRequest pays for one period of access. Amount must equal the
// service fee exactly.
type SubscribeRequest struct {
	Amount int64 `json:"amount"`
}

// SubscribeResponse carries the access expiry after the payment applied
type SubscribeResponse struct {
	ServiceID  int64     `json:"service_id"`
	Subscriber string    `json:"subscriber"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// GiftSubscriptionRequest pays for one period of access on behalf of
// another account. The caller pays; the recipient receives access.
type GiftSubscriptionRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    int64  `json:"amount"`
}

// GiftSubscriptionResponse carries the recipient's access expiry
type GiftSubscriptionResponse struct {
	ServiceID int64     `json:"service_id"`
	Payer     string    `json:"payer"`
	Recipient string    `json:"recipient"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccessStatusResponse reports whether an account currently has access
type AccessStatusResponse struct {
	ServiceID int64      `json:"service_id"`
	Account   string     `json:"account"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WithdrawResponse reports the amount paid out to the service owner
type WithdrawResponse struct {
	ServiceID int64  `json:"service_id"`
	Owner     string `json:"owner"`
	Amount    int64  `json:"amount"`
}

// CreditDepositRequest records a confirmed on-chain deposit against a
// payer's prepaid balance. Amount is in wei.
type CreditDepositRequest struct {
	Account string `json:"account" binding:"required"`
	Amount  int64  `json:"amount"`
}

// CreditDepositResponse carries the payer's prepaid balance after credit
type CreditDepositResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// DepositBalanceResponse reports the caller's prepaid balance in wei
type DepositBalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// WalletLoginRequest authenticates a caller by an EIP-191 signed message
type WalletLoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// WalletLoginResponse carries the session token for the wallet account
type WalletLoginResponse struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}
