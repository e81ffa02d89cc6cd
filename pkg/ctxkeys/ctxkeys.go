// Package ctxkeys defines typed context keys to avoid SA1029 lint warnings
// and prevent key collisions across packages.
package ctxkeys

import "context"

// Key is a typed context key to prevent collisions.
type Key string

// Auth context keys
const (
	KeyAccount    Key = "account"
	KeyRole       Key = "role"
	KeyAuthType   Key = "auth_type"
	KeyJWTToken   Key = "jwt_token"
	KeyWalletAddr Key = "wallet_address"
)

// Request context keys
const (
	KeyRequestID Key = "request_id"
	KeyClientIP  Key = "client_ip"
)

// GetAccount extracts the caller account from context.
func GetAccount(ctx context.Context) string {
	if v, ok := ctx.Value(KeyAccount).(string); ok {
		return v
	}
	return ""
}

// GetRole extracts the caller role from context.
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(KeyRole).(string); ok {
		return v
	}
	return ""
}

// GetAuthType extracts the authentication type from context.
func GetAuthType(ctx context.Context) string {
	if v, ok := ctx.Value(KeyAuthType).(string); ok {
		return v
	}
	return ""
}
