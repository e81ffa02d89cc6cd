package kafka

import (
	"time"
)

// Billing event types published by the ledger.
const (
	EventServiceCreated     = "service_created"
	EventSubscribed         = "subscribed"
	EventSubscriptionGifted = "subscription_gifted"
	EventBalanceWithdrawn   = "balance_withdrawn"
)

// BillingEvent is the wire form of a ledger fact. Events are immutable once
// emitted; downstream indexers treat them as append-only.
type BillingEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`

	ServiceID int64  `json:"service_id"`
	Owner     string `json:"owner,omitempty"`
	Payer     string `json:"payer,omitempty"`
	Recipient string `json:"recipient,omitempty"`

	Fee        int64      `json:"fee,omitempty"`
	PeriodSecs int64      `json:"period_secs,omitempty"`
	Amount     int64      `json:"amount,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ProducerInterface defines the interface for Kafka producers
type ProducerInterface interface {
	ProduceMessage(topic string, key []byte, value []byte, headers map[string]string) error
	PublishBillingEvent(topic string, event *BillingEvent) error
	Close() error
	HealthCheck() error
}
