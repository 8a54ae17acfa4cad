// Package postgres persists refresh snapshots
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/revlens/revlens/internal/metrics/domain/model"
	"github.com/revlens/revlens/internal/metrics/domain/repository"
	"github.com/revlens/revlens/internal/platform/database"
)

// SnapshotRepository stores snapshots in Postgres
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates the repository and ensures its table exists
func NewSnapshotRepository(db *database.DB) (repository.SnapshotRepository, error) {
	r := &SnapshotRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshots table: %w", err)
	}
	return r, nil
}

func (r *SnapshotRepository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS metric_snapshots (
			id UUID PRIMARY KEY,
			total_mrr NUMERIC(12,2) NOT NULL,
			mrr_at_risk NUMERIC(12,2) NOT NULL,
			unique_users_count INT NOT NULL,
			canceling_users_count INT NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Save persists one snapshot
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *model.Snapshot) error {
	query := `
		INSERT INTO metric_snapshots (
			id, total_mrr, mrr_at_risk, unique_users_count, canceling_users_count, taken_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.TotalMRR,
		snapshot.MRRAtRisk,
		snapshot.UniqueUsersCount,
		snapshot.CancelingUsersCount,
		snapshot.TakenAt,
	)
	return err
}

// Latest returns the most recent snapshot
func (r *SnapshotRepository) Latest(ctx context.Context) (*model.Snapshot, error) {
	query := `
		SELECT id, total_mrr, mrr_at_risk, unique_users_count, canceling_users_count, taken_at
		FROM metric_snapshots
		ORDER BY taken_at DESC
		LIMIT 1`

	var s model.Snapshot
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.ID, &s.TotalMRR, &s.MRRAtRisk, &s.UniqueUsersCount, &s.CancelingUsersCount, &s.TakenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoSnapshots
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns up to limit snapshots, newest first
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*model.Snapshot, error) {
	query := `
		SELECT id, total_mrr, mrr_at_risk, unique_users_count, canceling_users_count, taken_at
		FROM metric_snapshots
		ORDER BY taken_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.TotalMRR, &s.MRRAtRisk, &s.UniqueUsersCount, &s.CancelingUsersCount, &s.TakenAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &s)
	}
	return snapshots, rows.Err()
}
