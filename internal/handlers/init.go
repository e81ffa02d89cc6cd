package handlers

import (
	"database/sql"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"bursar/internal/ledger"
	"bursar/internal/store"
	"bursar/internal/treasury"
	"bursar/pkg/config"
	"bursar/pkg/kafka"
	"bursar/pkg/logging"
)

var (
	logger      logging.Logger
	metrics     *BursarMetrics
	book        *ledger.Ledger
	journal     *store.Journal
	producer    kafka.ProducerInterface
	ethTreasury *treasury.EthWallet

	billingTopic = "billing.ledger_events"

	// ledgerMu serializes every top-level ledger call. The ledger itself is
	// unsynchronized; treasury callbacks run inside the critical section and
	// therefore see fully-finalized state.
	ledgerMu sync.Mutex
)

// BursarMetrics holds all Prometheus metrics for Bursar
type BursarMetrics struct {
	ServicesCreated   *prometheus.CounterVec
	Subscriptions     *prometheus.CounterVec
	Withdrawals       *prometheus.CounterVec
	EscrowBalance     *prometheus.GaugeVec
	ActiveSubscribers *prometheus.GaugeVec
	DBQueries         *prometheus.CounterVec
	DBDuration        *prometheus.HistogramVec
}

// Init initializes the handlers with the ledger, database, logger, metrics,
// the Kafka producer and the Ethereum treasury. producer may be nil (events
// are dropped); ethWallet may be nil (deposit endpoints unavailable).
func Init(l *ledger.Ledger, database *sql.DB, log logging.Logger, m *BursarMetrics, p kafka.ProducerInterface, ethWallet *treasury.EthWallet) {
	book = l
	logger = log
	metrics = m
	producer = p
	ethTreasury = ethWallet
	journal = store.NewJournal(database, log)
	billingTopic = config.GetEnv("BILLING_KAFKA_TOPIC", "billing.ledger_events")
}
