// Package store journals ledger snapshots to Postgres so the in-memory
// ledger survives restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"bursar/internal/ledger"
	"bursar/pkg/logging"
	"bursar/pkg/models"
)

// Journal persists and restores ledger snapshots.
type Journal struct {
	db     *sql.DB
	logger logging.Logger
}

// NewJournal returns a journal writing to db.
func NewJournal(db *sql.DB, log logging.Logger) *Journal {
	return &Journal{db: db, logger: log}
}

// SaveSnapshot writes the full snapshot in one transaction. The tables are
// rewritten wholesale; snapshots are small and this keeps deleted grants
// from lingering.
func (j *Journal) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	if _, err := tx.ExecContext(ctx, `DELETE FROM bursar.access_grants`); err != nil {
		return fmt.Errorf("failed to clear access grants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bursar.services`); err != nil {
		return fmt.Errorf("failed to clear services: %w", err)
	}

	for _, svc := range snap.Services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bursar.services (id, owner_account, name, fee, period_secs, is_active, balance, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			svc.ID, svc.Owner, svc.Name, svc.Fee, svc.PeriodSecs, svc.IsActive, svc.Balance, svc.CreatedAt, svc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to write service %d: %w", svc.ID, err)
		}
	}
	for _, grant := range snap.Grants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bursar.access_grants (service_id, account, expires_at, updated_at)
			VALUES ($1, $2, $3, NOW())`,
			grant.ServiceID, grant.Account, grant.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to write grant for service %d: %w", grant.ServiceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the journaled state back, ordered so service ids come
// out dense for the ledger's arena.
func (j *Journal) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, owner_account, name, fee, period_secs, is_active, balance, created_at, updated_at
		FROM bursar.services
		ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("failed to load services: %w", err)
	}
	defer rows.Close() //nolint:errcheck // close is best-effort

	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.Owner, &svc.Name, &svc.Fee, &svc.PeriodSecs,
			&svc.IsActive, &svc.Balance, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return snap, fmt.Errorf("failed to scan service: %w", err)
		}
		snap.Services = append(snap.Services, svc)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to iterate services: %w", err)
	}

	grantRows, err := j.db.QueryContext(ctx, `
		SELECT service_id, account, expires_at
		FROM bursar.access_grants`)
	if err != nil {
		return snap, fmt.Errorf("failed to load access grants: %w", err)
	}
	defer grantRows.Close() //nolint:errcheck // close is best-effort

	for grantRows.Next() {
		var grant models.AccessGrant
		if err := grantRows.Scan(&grant.ServiceID, &grant.Account, &grant.ExpiresAt); err != nil {
			return snap, fmt.Errorf("failed to scan access grant: %w", err)
		}
		snap.Grants = append(snap.Grants, grant)
	}
	if err := grantRows.Err(); err != nil {
		return snap, fmt.Errorf("failed to iterate access grants: %w", err)
	}

	j.logger.WithFields(logging.Fields{
		"services": len(snap.Services),
		"grants":   len(snap.Grants),
	}).Info("Loaded ledger snapshot")
	return snap, nil
}
