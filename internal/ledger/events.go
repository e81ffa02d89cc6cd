package ledger

import (
	"time"

	"bursar/pkg/models"
)

// EventSink receives notifications after a ledger mutation has committed.
// Implementations must not call back into the ledger. A nil sink disables
// notification.
type EventSink interface {
	ServiceCreated(svc models.Service)
	Subscribed(serviceID int64, subscriber string, expiresAt time.Time)
	SubscriptionGifted(serviceID int64, payer, recipient string, expiresAt time.Time)
	BalanceWithdrawn(serviceID int64, owner string, amount int64)
}
