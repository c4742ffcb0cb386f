//go:build integration

package tests

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xsn-monitor/internal/monitor"
	"xsn-monitor/internal/store"
)

// Runs against a real database:
// TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/tests/
func openStore(t *testing.T) *store.Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	st, err := store.NewPostgres(dsn, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestIntegration_Store_MonitorLifecycle(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	m := &monitor.Monitor{
		OwnerID:   999999001,
		Name:      "integration",
		Address:   "XmJ5LfBySJYmeQMCDnsZSkMMtM8ds1FEwG",
		Balance:   decimal.NewFromFloat(12.5),
		Watermark: 100,
	}
	id, err := st.Insert(ctx, m)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer st.Delete(ctx, id)

	got, err := st.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.OwnerID != m.OwnerID || got.Name != m.Name || !got.Balance.Equal(m.Balance) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.Balance = got.Balance.Add(decimal.NewFromInt(1))
	got.Watermark = 150
	if err := st.Update(ctx, id, *got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	again, err := st.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID after update failed: %v", err)
	}
	if again.Watermark != 150 {
		t.Fatalf("expected watermark 150, got %d", again.Watermark)
	}

	if err := st.AppendBalanceHistory(ctx, id, again.Balance, time.Now()); err != nil {
		t.Fatalf("AppendBalanceHistory failed: %v", err)
	}
	points, err := st.BalanceHistory(ctx, id, 10)
	if err != nil {
		t.Fatalf("BalanceHistory failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 history point, got %d", len(points))
	}

	if err := st.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.FindByID(ctx, id); err != store.ErrMonitorNotFound {
		t.Fatalf("expected ErrMonitorNotFound after delete, got %v", err)
	}
}

func TestIntegration_Store_DistinctOwners(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	for _, addr := range []string{"XaAddrOne111111111111111111111111", "XaAddrTwo222222222222222222222222"} {
		id, err := st.Insert(ctx, &monitor.Monitor{
			OwnerID: 999999002,
			Name:    "owner-test-" + addr[:9],
			Address: addr,
			Balance: decimal.Zero,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		defer st.Delete(ctx, id)
	}

	owners, err := st.DistinctOwners(ctx)
	if err != nil {
		t.Fatalf("DistinctOwners failed: %v", err)
	}
	seen := 0
	for _, o := range owners {
		if o == 999999002 {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("expected owner 999999002 exactly once, got %d", seen)
	}
}
