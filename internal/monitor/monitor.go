package monitor

// Package monitor holds the domain types shared by the crawler, the store
// and the Telegram surface: a watched address (Monitor) and the
// source-provided Transaction it folds in.

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeltaPrecision is the number of fractional digits a transaction delta is
// rounded to before accumulation. Folding many small rewards must not drift.
const DeltaPrecision = 7

// DateFormat renders timestamps the way users see them in Telegram.
const DateFormat = "02/01/2006 15:04:05"

// Monitor is one persisted watch on a blockchain address for one owner.
type Monitor struct {
	ID                string
	OwnerID           int64
	Name              string
	Address           string
	Balance           decimal.Decimal
	Watermark         int64 // unix seconds of the last folded transaction, 0 = never
	TotalTransactions int64
	CreatedAt         time.Time
}

// Transaction is a single entry of an address's history as reported by a
// transaction source. Time is unix seconds.
type Transaction struct {
	Sent     decimal.Decimal
	Received decimal.Decimal
	Time     int64
}

// Delta is the signed balance change of the transaction, rounded to
// DeltaPrecision fractional digits.
func (t Transaction) Delta() decimal.Decimal {
	return t.Received.Sub(t.Sent).Round(DeltaPrecision)
}

// Apply folds tx into the monitor's balance and advances the watermark.
// A transaction at or below the current watermark has already been folded
// and is skipped entirely; this is what makes retried fetches safe.
// Reports whether the transaction was applied.
func (m *Monitor) Apply(tx Transaction) bool {
	if tx.Time <= m.Watermark {
		return false
	}
	m.Balance = m.Balance.Add(tx.Delta())
	m.Watermark = tx.Time
	m.TotalTransactions++
	return true
}

// FormatTimestamp renders a unix-seconds timestamp in UTC for user-facing
// messages.
func FormatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(DateFormat)
}
