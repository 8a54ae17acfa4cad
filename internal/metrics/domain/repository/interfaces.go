// Package repository defines persistence ports for the metrics module
package repository

import (
	"context"
	"errors"

	"github.com/revlens/revlens/internal/metrics/domain/model"
)

// ErrNoSnapshots is returned by Latest when no snapshot has been persisted yet
var ErrNoSnapshots = errors.New("no snapshots recorded")

// SnapshotRepository persists refresh snapshots for trend computation
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *model.Snapshot) error
	Latest(ctx context.Context) (*model.Snapshot, error)
	List(ctx context.Context, limit int) ([]*model.Snapshot, error)
}
