package monitor

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDeltaRoundsToSevenDigits(t *testing.T) {
	tx := Transaction{Sent: dec("0.123456789"), Received: dec("1")}
	got := tx.Delta()
	want := dec("0.8765432")
	if !got.Equal(want) {
		t.Fatalf("delta = %s, want %s", got, want)
	}
}

func TestApplyAdvancesBalanceAndWatermark(t *testing.T) {
	m := &Monitor{Balance: dec("10"), Watermark: 100}

	applied := m.Apply(Transaction{Sent: dec("1"), Received: dec("0"), Time: 120})
	if !applied {
		t.Fatal("transaction above the watermark must be applied")
	}
	if !m.Balance.Equal(dec("9")) {
		t.Fatalf("balance = %s, want 9", m.Balance)
	}
	if m.Watermark != 120 {
		t.Fatalf("watermark = %d, want 120", m.Watermark)
	}
	if m.TotalTransactions != 1 {
		t.Fatalf("total transactions = %d, want 1", m.TotalTransactions)
	}
}

func TestApplySkipsAlreadySeenTransaction(t *testing.T) {
	m := &Monitor{Balance: dec("10"), Watermark: 100}

	applied := m.Apply(Transaction{Sent: dec("0"), Received: dec("5"), Time: 100})
	if applied {
		t.Fatal("transaction at the watermark must be skipped")
	}
	if !m.Balance.Equal(dec("10")) || m.Watermark != 100 {
		t.Fatalf("monitor mutated by duplicate: balance=%s watermark=%d", m.Balance, m.Watermark)
	}
}

func TestApplyIsIdempotentAcrossRefeed(t *testing.T) {
	m := &Monitor{Balance: dec("0"), Watermark: 0}
	txs := []Transaction{
		{Received: dec("1.5"), Time: 10},
		{Received: dec("2.5"), Time: 20},
		{Sent: dec("0.5"), Time: 30},
	}

	for _, tx := range txs {
		m.Apply(tx)
	}
	first := m.Balance

	// Simulated retry: the same batch arrives again.
	for _, tx := range txs {
		if m.Apply(tx) {
			t.Fatalf("transaction at time %d re-applied", tx.Time)
		}
	}
	if !m.Balance.Equal(first) {
		t.Fatalf("balance changed on refeed: %s -> %s", first, m.Balance)
	}
	if !first.Equal(dec("3.5")) {
		t.Fatalf("balance = %s, want 3.5", first)
	}
}

func TestWatermarkNeverRegresses(t *testing.T) {
	m := &Monitor{Watermark: 0, Balance: decimal.Zero}
	times := []int64{5, 3, 9, 9, 1, 12}
	last := int64(0)
	for _, ts := range times {
		m.Apply(Transaction{Received: dec("1"), Time: ts})
		if m.Watermark < last {
			t.Fatalf("watermark regressed from %d to %d", last, m.Watermark)
		}
		last = m.Watermark
	}
	if m.Watermark != 12 {
		t.Fatalf("watermark = %d, want 12", m.Watermark)
	}
}

func TestFormatTimestamp(t *testing.T) {
	// 2021-01-02 03:04:05 UTC
	if got := FormatTimestamp(1609556645); got != "02/01/2021 03:04:05" {
		t.Fatalf("FormatTimestamp = %q", got)
	}
}
