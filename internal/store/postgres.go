package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xsn-monitor/internal/infra/retry"
	"xsn-monitor/internal/monitor"
)

// Postgres implements MonitorStore on a Postgres database. Row-level
// serialization through id-scoped UPDATE/DELETE statements is what keeps a
// concurrent menu delete and a crawler write from corrupting a record.
type Postgres struct {
	db        *sql.DB
	logger    *zap.Logger
	retryOpts retry.Options
}

// NewPostgres opens the store database, verifies connectivity and runs
// migrations. maxRetries bounds the internal retry of each operation.
func NewPostgres(dsn string, maxRetries int, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping store database: %w", err)
	}
	if err := InitMigration(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Postgres{
		db:     db,
		logger: logger,
		retryOpts: retry.Options{
			MaxRetries: maxRetries,
			BaseDelay:  200 * time.Millisecond,
			MaxDelay:   2 * time.Second,
		},
	}, nil
}

// withRetry runs op up to 1+maxRetries times. Driver errors are treated as
// transient; op must translate not-found cases itself before returning.
func (p *Postgres) withRetry(ctx context.Context, op func() error) error {
	return retry.Do(ctx, p.retryOpts, func() error {
		err := op()
		if err == nil || err == sql.ErrNoRows || err == ErrMonitorNotFound {
			return err
		}
		return retry.Transient(err)
	})
}

const monitorColumns = `id, owner_id, display_name, address, balance, watermark, total_transactions_seen, created_at`

func scanMonitor(row interface{ Scan(...interface{}) error }) (monitor.Monitor, error) {
	var m monitor.Monitor
	err := row.Scan(&m.ID, &m.OwnerID, &m.Name, &m.Address, &m.Balance,
		&m.Watermark, &m.TotalTransactions, &m.CreatedAt)
	return m, err
}

func (p *Postgres) queryMonitors(ctx context.Context, query string, args ...interface{}) ([]monitor.Monitor, error) {
	var monitors []monitor.Monitor
	err := p.withRetry(ctx, func() error {
		rows, err := p.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query monitors: %w", err)
		}
		defer rows.Close()

		monitors = monitors[:0]
		for rows.Next() {
			m, err := scanMonitor(rows)
			if err != nil {
				return fmt.Errorf("failed to scan monitor: %w", err)
			}
			monitors = append(monitors, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return monitors, nil
}

func (p *Postgres) FindAll(ctx context.Context) ([]monitor.Monitor, error) {
	return p.queryMonitors(ctx, `
		SELECT `+monitorColumns+` FROM monitors ORDER BY created_at
	`)
}

func (p *Postgres) FindByOwner(ctx context.Context, ownerID int64) ([]monitor.Monitor, error) {
	return p.queryMonitors(ctx, `
		SELECT `+monitorColumns+` FROM monitors WHERE owner_id = $1 ORDER BY created_at
	`, ownerID)
}

func (p *Postgres) FindByID(ctx context.Context, id string) (*monitor.Monitor, error) {
	var m monitor.Monitor
	err := p.withRetry(ctx, func() error {
		var err error
		m, err = scanMonitor(p.db.QueryRowContext(ctx, `
			SELECT `+monitorColumns+` FROM monitors WHERE id = $1
		`, id))
		if err == sql.ErrNoRows {
			return ErrMonitorNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find monitor %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) Insert(ctx context.Context, m *monitor.Monitor) (string, error) {
	id := uuid.NewString()
	err := p.withRetry(ctx, func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO monitors (id, owner_id, display_name, address, balance, watermark, total_transactions_seen)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, m.OwnerID, m.Name, m.Address, m.Balance, m.Watermark, m.TotalTransactions)
		if err != nil {
			return fmt.Errorf("failed to insert monitor: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	m.ID = id
	p.logger.Info("Inserted monitor",
		zap.String("id", id),
		zap.Int64("owner_id", m.OwnerID),
		zap.String("address", m.Address))
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, id string, m monitor.Monitor) error {
	return p.withRetry(ctx, func() error {
		_, err := p.db.ExecContext(ctx, `
			UPDATE monitors
			SET owner_id = $2, display_name = $3, address = $4, balance = $5,
			    watermark = $6, total_transactions_seen = $7
			WHERE id = $1
		`, id, m.OwnerID, m.Name, m.Address, m.Balance, m.Watermark, m.TotalTransactions)
		if err != nil {
			return fmt.Errorf("failed to update monitor %s: %w", id, err)
		}
		return nil
	})
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	return p.withRetry(ctx, func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete monitor %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read delete result: %w", err)
		}
		if affected == 0 {
			return ErrMonitorNotFound
		}
		return nil
	})
}

func (p *Postgres) DistinctOwners(ctx context.Context) ([]int64, error) {
	var owners []int64
	err := p.withRetry(ctx, func() error {
		rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM monitors`)
		if err != nil {
			return fmt.Errorf("failed to query owners: %w", err)
		}
		defer rows.Close()

		owners = owners[:0]
		for rows.Next() {
			var owner int64
			if err := rows.Scan(&owner); err != nil {
				return fmt.Errorf("failed to scan owner: %w", err)
			}
			owners = append(owners, owner)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return owners, nil
}

func (p *Postgres) AppendBalanceHistory(ctx context.Context, monitorID string, balance decimal.Decimal, recordedAt time.Time) error {
	return p.withRetry(ctx, func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO balance_history (monitor_id, balance, recorded_at)
			VALUES ($1, $2, $3)
		`, monitorID, balance, recordedAt)
		if err != nil {
			return fmt.Errorf("failed to append balance history: %w", err)
		}
		return nil
	})
}

func (p *Postgres) BalanceHistory(ctx context.Context, monitorID string, limit int) ([]BalancePoint, error) {
	if limit <= 0 {
		limit = 30
	}
	var points []BalancePoint
	err := p.withRetry(ctx, func() error {
		rows, err := p.db.QueryContext(ctx, `
			SELECT balance, recorded_at FROM balance_history
			WHERE monitor_id = $1
			ORDER BY recorded_at DESC
			LIMIT $2
		`, monitorID, limit)
		if err != nil {
			return fmt.Errorf("failed to query balance history: %w", err)
		}
		defer rows.Close()

		points = points[:0]
		for rows.Next() {
			var pt BalancePoint
			if err := rows.Scan(&pt.Balance, &pt.RecordedAt); err != nil {
				return fmt.Errorf("failed to scan balance point: %w", err)
			}
			points = append(points, pt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	// Oldest first for rendering.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
