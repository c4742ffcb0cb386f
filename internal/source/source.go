package source

// Package source defines the read-only transaction source contract the
// crawler and the Telegram surface consume, with two interchangeable
// variants: a direct explorer database (chaindb) and an explorer HTTP API.

import (
	"context"

	"github.com/shopspring/decimal"

	"xsn-monitor/internal/monitor"
)

// TransactionSource provides an address's confirmed balance and history.
// All methods honor ctx and report transient upstream failures as errors;
// an address unknown to the source is signalled by found=false, not by an
// error.
type TransactionSource interface {
	// GetBalance returns the address's confirmed balance. found is false
	// when the source has never seen the address.
	GetBalance(ctx context.Context, address string) (balance decimal.Decimal, found bool, err error)

	// GetLastWatermark returns the timestamp of the address's most recent
	// transaction, or 0 when it has none.
	GetLastWatermark(ctx context.Context, address string) (int64, error)

	// GetNewTransactions returns all transactions strictly newer than
	// sinceWatermark, in no particular order.
	GetNewTransactions(ctx context.Context, address string, sinceWatermark int64) ([]monitor.Transaction, error)
}
