package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"ibmcp/pkg/models"
)

type AccountSnapshotRepo struct {
	db *sql.DB
}

func NewAccountSnapshotRepo(db *sql.DB) *AccountSnapshotRepo {
	return &AccountSnapshotRepo{db: db}
}

// RecordBatch stores one polling cycle's account values under a single
// timestamp so a cycle can be read back as a unit.
func (r *AccountSnapshotRepo) RecordBatch(snapshots []*models.AccountSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot batch: %w", err)
	}
	defer tx.Rollback()

	takenAt := time.Now().UTC()
	for _, s := range snapshots {
		if _, err := tx.Exec(`INSERT INTO account_snapshots (account, tag, value, currency, taken_at)
			VALUES (?, ?, ?, ?, ?)`,
			s.Account, s.Tag, s.Value, s.Currency, takenAt); err != nil {
			return fmt.Errorf("failed to insert account snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recent snapshot rows for an account, one per tag.
func (r *AccountSnapshotRepo) Latest(account string) ([]*models.AccountSnapshot, error) {
	rows, err := r.db.Query(`SELECT id, account, tag, value, currency, taken_at
		FROM account_snapshots
		WHERE account = ? AND taken_at = (
			SELECT MAX(taken_at) FROM account_snapshots WHERE account = ?
		)
		ORDER BY tag`, account, account)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// History returns snapshot rows for one account tag, newest first.
func (r *AccountSnapshotRepo) History(account, tag string, limit int) ([]*models.AccountSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`SELECT id, account, tag, value, currency, taken_at
		FROM account_snapshots
		WHERE account = ? AND tag = ?
		ORDER BY taken_at DESC LIMIT ?`, account, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]*models.AccountSnapshot, error) {
	var snapshots []*models.AccountSnapshot
	for rows.Next() {
		var s models.AccountSnapshot
		if err := rows.Scan(&s.ID, &s.Account, &s.Tag, &s.Value, &s.Currency, &s.TakenAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &s)
	}
	return snapshots, rows.Err()
}
