package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"xsn-monitor/internal/monitor"
)

// ChainDB reads an address's history straight from the explorer's Postgres
// database: the `balances` table holds running received/sent totals and
// `address_transaction_details` holds one row per transaction.
type ChainDB struct {
	db *sql.DB
}

// NewChainDB opens the explorer database and verifies connectivity.
func NewChainDB(dsn string) (*ChainDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping chain database: %w", err)
	}
	return &ChainDB{db: db}, nil
}

func (c *ChainDB) GetBalance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	var received, sent decimal.Decimal
	err := c.db.QueryRowContext(ctx, `
		SELECT received, sent FROM balances WHERE address = $1
	`, address).Scan(&received, &sent)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query balance for %s: %w", address, err)
	}
	return received.Sub(sent), true, nil
}

func (c *ChainDB) GetLastWatermark(ctx context.Context, address string) (int64, error) {
	var last int64
	err := c.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(time), 0) FROM address_transaction_details WHERE address = $1
	`, address).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to query last transaction for %s: %w", address, err)
	}
	return last, nil
}

func (c *ChainDB) GetNewTransactions(ctx context.Context, address string, sinceWatermark int64) ([]monitor.Transaction, error) {
	// Strictly newer than the watermark; the boundary transaction itself
	// has already been folded.
	rows, err := c.db.QueryContext(ctx, `
		SELECT sent, received, time FROM address_transaction_details
		WHERE address = $1 AND time > $2
	`, address, sinceWatermark)
	if err != nil {
		return nil, fmt.Errorf("failed to query new transactions for %s: %w", address, err)
	}
	defer rows.Close()

	var txs []monitor.Transaction
	for rows.Next() {
		var tx monitor.Transaction
		if err := rows.Scan(&tx.Sent, &tx.Received, &tx.Time); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func (c *ChainDB) Close() error {
	return c.db.Close()
}
