package handlers

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"bursar/internal/treasury"
	"bursar/pkg/config"
	"bursar/pkg/logging"
)

// lowOperatorBalanceWei is the minimum operator wallet balance before
// alerting (0.005 ETH).
var lowOperatorBalanceWei = big.NewInt(5_000_000_000_000_000)

// JobManager handles background ledger jobs
type JobManager struct {
	logger    logging.Logger
	ethWallet *treasury.EthWallet
	stopCh    chan struct{}

	snapshotInterval time.Duration
	sweepInterval    time.Duration
	walletInterval   time.Duration
}

// NewJobManager creates a new job manager. ethWallet may be nil when the
// service runs on the sandbox treasury; the wallet monitor is then skipped.
func NewJobManager(log logging.Logger, ethWallet *treasury.EthWallet) *JobManager {
	return &JobManager{
		logger:           log,
		ethWallet:        ethWallet,
		stopCh:           make(chan struct{}),
		snapshotInterval: config.GetEnvDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		sweepInterval:    config.GetEnvDuration("GAUGE_SWEEP_INTERVAL", time.Minute),
		walletInterval:   config.GetEnvDuration("WALLET_CHECK_INTERVAL", 5*time.Minute),
	}
}

// Start begins all background jobs
func (jm *JobManager) Start(ctx context.Context) {
	jm.logger.Info("Starting ledger job manager")

	go jm.runSnapshotJournal(ctx)
	go jm.runGaugeSweep(ctx)

	if jm.ethWallet != nil {
		go jm.runWalletMonitor(ctx)
	}
}

// Stop stops all background jobs
func (jm *JobManager) Stop() {
	jm.logger.Info("Stopping ledger job manager")
	close(jm.stopCh)
}

// runSnapshotJournal periodically journals the ledger to Postgres so the
// arena can be rebuilt on the next boot.
func (jm *JobManager) runSnapshotJournal(ctx context.Context) {
	ticker := time.NewTicker(jm.snapshotInterval)
	defer ticker.Stop()

	jm.logger.Info("Starting snapshot journal job")

	for {
		select {
		case <-ctx.Done():
			jm.journalSnapshot()
			return
		case <-jm.stopCh:
			jm.journalSnapshot()
			return
		case <-ticker.C:
			jm.journalSnapshot()
		}
	}
}

func (jm *JobManager) journalSnapshot() {
	ledgerMu.Lock()
	snap := book.Snapshot()
	ledgerMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	err := journal.SaveSnapshot(ctx, snap)
	if metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DBQueries.WithLabelValues("snapshot", status).Inc()
		metrics.DBDuration.WithLabelValues("snapshot").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		jm.logger.WithError(err).Error("Failed to journal ledger snapshot")
		return
	}
	jm.logger.WithFields(logging.Fields{
		"services": len(snap.Services),
		"grants":   len(snap.Grants),
	}).Debug("Journaled ledger snapshot")
}

// runGaugeSweep refreshes the escrow and active-subscriber gauges from the
// ledger. Expiry is a function of time, so gauges go stale without a sweep.
func (jm *JobManager) runGaugeSweep(ctx context.Context) {
	ticker := time.NewTicker(jm.sweepInterval)
	defer ticker.Stop()

	jm.logger.Info("Starting metrics sweep job")

	for {
		select {
		case <-ctx.Done():
			return
		case <-jm.stopCh:
			return
		case <-ticker.C:
			jm.sweepGauges()
		}
	}
}

func (jm *JobManager) sweepGauges() {
	if metrics == nil {
		return
	}

	ledgerMu.Lock()
	snap := book.Snapshot()
	now := time.Now()
	active := make(map[int64]int)
	for _, grant := range snap.Grants {
		if now.Before(grant.ExpiresAt) {
			active[grant.ServiceID]++
		}
	}
	ledgerMu.Unlock()

	for _, svc := range snap.Services {
		id := formatServiceID(svc.ID)
		metrics.EscrowBalance.WithLabelValues(id).Set(float64(svc.Balance))
		metrics.ActiveSubscribers.WithLabelValues(id).Set(float64(active[svc.ID]))
	}
}

func formatServiceID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// runWalletMonitor polls the operator wallet balance and warns when it can
// no longer cover payout gas.
func (jm *JobManager) runWalletMonitor(ctx context.Context) {
	ticker := time.NewTicker(jm.walletInterval)
	defer ticker.Stop()

	jm.logger.WithField("operator", jm.ethWallet.OperatorAddress()).Info("Starting operator wallet monitor")

	jm.checkOperatorBalance(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-jm.stopCh:
			return
		case <-ticker.C:
			jm.checkOperatorBalance(ctx)
		}
	}
}

func (jm *JobManager) checkOperatorBalance(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	balance, err := jm.ethWallet.OperatorBalance(checkCtx)
	if err != nil {
		jm.logger.WithError(err).Error("Failed to get operator wallet balance")
		return
	}

	if balance.Cmp(lowOperatorBalanceWei) < 0 {
		jm.logger.WithFields(logging.Fields{
			"balance_wei":   balance.String(),
			"threshold_wei": lowOperatorBalanceWei.String(),
		}).Warn("Operator wallet balance is LOW - needs refill")
	} else {
		jm.logger.WithField("balance_wei", balance.String()).Debug("Operator wallet balance checked")
	}
}
