package store

// Package store persists monitor records. Operations are retried a bounded
// number of times internally, so callers see a final result rather than a
// transient driver hiccup.

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"xsn-monitor/internal/monitor"
)

// ErrMonitorNotFound is returned for lookups and deletes of an id that does
// not exist (any more).
var ErrMonitorNotFound = errors.New("monitor not found")

// BalancePoint is one balance snapshot, recorded when a crawl cycle changed
// a monitor's balance.
type BalancePoint struct {
	Balance    decimal.Decimal
	RecordedAt time.Time
}

// MonitorStore is the persistent collection of monitors.
type MonitorStore interface {
	FindAll(ctx context.Context) ([]monitor.Monitor, error)
	FindByOwner(ctx context.Context, ownerID int64) ([]monitor.Monitor, error)
	FindByID(ctx context.Context, id string) (*monitor.Monitor, error)

	// Insert assigns and returns the new monitor's id.
	Insert(ctx context.Context, m *monitor.Monitor) (string, error)

	// Update replaces the record with the given id. Updating an id that
	// was deleted concurrently is a no-op, not an error.
	Update(ctx context.Context, id string, m monitor.Monitor) error

	Delete(ctx context.Context, id string) error

	// DistinctOwners lists every owner id with at least one monitor.
	DistinctOwners(ctx context.Context) ([]int64, error)

	AppendBalanceHistory(ctx context.Context, monitorID string, balance decimal.Decimal, recordedAt time.Time) error
	BalanceHistory(ctx context.Context, monitorID string, limit int) ([]BalancePoint, error)
}
