package handlers

import (
	"time"

	"github.com/google/uuid"

	"bursar/pkg/kafka"
	"bursar/pkg/logging"
	"bursar/pkg/models"
)

// ledgerEvents adapts committed ledger mutations to Kafka billing events.
// Emission is best-effort: a publish failure logs a warning and never
// surfaces to the ledger operation that triggered it.
type ledgerEvents struct{}

func (ledgerEvents) ServiceCreated(svc models.Service) {
	emitBillingEvent(kafka.BillingEvent{
		EventType:  kafka.EventServiceCreated,
		ServiceID:  svc.ID,
		Owner:      svc.Owner,
		Fee:        svc.Fee,
		PeriodSecs: svc.PeriodSecs,
	})
}

func (ledgerEvents) Subscribed(serviceID int64, subscriber string, expiresAt time.Time) {
	emitBillingEvent(kafka.BillingEvent{
		EventType: kafka.EventSubscribed,
		ServiceID: serviceID,
		Payer:     subscriber,
		ExpiresAt: &expiresAt,
	})
}

func (ledgerEvents) SubscriptionGifted(serviceID int64, payer, recipient string, expiresAt time.Time) {
	emitBillingEvent(kafka.BillingEvent{
		EventType: kafka.EventSubscriptionGifted,
		ServiceID: serviceID,
		Payer:     payer,
		Recipient: recipient,
		ExpiresAt: &expiresAt,
	})
}

func (ledgerEvents) BalanceWithdrawn(serviceID int64, owner string, amount int64) {
	emitBillingEvent(kafka.BillingEvent{
		EventType: kafka.EventBalanceWithdrawn,
		ServiceID: serviceID,
		Owner:     owner,
		Amount:    amount,
	})
}

// EventSink returns the sink wired into the ledger at startup.
func EventSink() ledgerEvents { return ledgerEvents{} }

func emitBillingEvent(event kafka.BillingEvent) {
	if producer == nil {
		return
	}
	event.EventID = uuid.New().String()
	event.Timestamp = time.Now().UTC()
	event.Source = "bursar"

	if err := producer.PublishBillingEvent(billingTopic, &event); err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"event_type": event.EventType,
			"service_id": event.ServiceID,
		}).Warn("Failed to emit billing event")
	}
}
