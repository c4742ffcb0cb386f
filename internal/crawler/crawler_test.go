package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"xsn-monitor/internal/monitor"
	"xsn-monitor/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeSource serves canned transactions per address and can fail for
// selected addresses.
type fakeSource struct {
	txs        map[string][]monitor.Transaction
	failing    map[string]bool
	fetchCount int
}

func (f *fakeSource) GetBalance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	return decimal.Zero, true, nil
}

func (f *fakeSource) GetLastWatermark(ctx context.Context, address string) (int64, error) {
	return 0, nil
}

func (f *fakeSource) GetNewTransactions(ctx context.Context, address string, sinceWatermark int64) ([]monitor.Transaction, error) {
	f.fetchCount++
	if f.failing[address] {
		return nil, errors.New("connection reset by peer")
	}
	var out []monitor.Transaction
	for _, tx := range f.txs[address] {
		if tx.Time > sinceWatermark {
			out = append(out, tx)
		}
	}
	return out, nil
}

// fakeStore keeps monitors in memory and records update calls.
type fakeStore struct {
	monitors    []monitor.Monitor
	updates     map[string]monitor.Monitor
	history     map[string][]store.BalancePoint
	findAllErr  error
	updateCalls int
}

func newFakeStore(monitors ...monitor.Monitor) *fakeStore {
	return &fakeStore{
		monitors: monitors,
		updates:  make(map[string]monitor.Monitor),
		history:  make(map[string][]store.BalancePoint),
	}
}

func (f *fakeStore) FindAll(ctx context.Context) ([]monitor.Monitor, error) {
	if f.findAllErr != nil {
		return nil, f.findAllErr
	}
	out := make([]monitor.Monitor, len(f.monitors))
	copy(out, f.monitors)
	return out, nil
}

func (f *fakeStore) FindByOwner(ctx context.Context, ownerID int64) ([]monitor.Monitor, error) {
	var out []monitor.Monitor
	for _, m := range f.monitors {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*monitor.Monitor, error) {
	for i := range f.monitors {
		if f.monitors[i].ID == id {
			m := f.monitors[i]
			return &m, nil
		}
	}
	return nil, store.ErrMonitorNotFound
}

func (f *fakeStore) Insert(ctx context.Context, m *monitor.Monitor) (string, error) {
	id := fmt.Sprintf("m%d", len(f.monitors)+1)
	m.ID = id
	f.monitors = append(f.monitors, *m)
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, m monitor.Monitor) error {
	f.updateCalls++
	f.updates[id] = m
	for i := range f.monitors {
		if f.monitors[i].ID == id {
			f.monitors[i] = m
		}
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	for i := range f.monitors {
		if f.monitors[i].ID == id {
			f.monitors = append(f.monitors[:i], f.monitors[i+1:]...)
			return nil
		}
	}
	return store.ErrMonitorNotFound
}

func (f *fakeStore) DistinctOwners(ctx context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, m := range f.monitors {
		if !seen[m.OwnerID] {
			seen[m.OwnerID] = true
			out = append(out, m.OwnerID)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendBalanceHistory(ctx context.Context, monitorID string, balance decimal.Decimal, recordedAt time.Time) error {
	f.history[monitorID] = append(f.history[monitorID], store.BalancePoint{Balance: balance, RecordedAt: recordedAt})
	return nil
}

func (f *fakeStore) BalanceHistory(ctx context.Context, monitorID string, limit int) ([]store.BalancePoint, error) {
	return f.history[monitorID], nil
}

// fakeChannel records sent messages and can fail on demand.
type fakeChannel struct {
	sent []string
	to   []int64
	fail bool
}

func (f *fakeChannel) Send(ownerID int64, text string) error {
	if f.fail {
		return errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, text)
	f.to = append(f.to, ownerID)
	return nil
}

func newTestCrawler(st store.MonitorStore, src *fakeSource, ch *fakeChannel) *Crawler {
	return New(st, src, ch, NewStatus(), Options{
		PollInterval:   time.Second,
		HistoryEnabled: true,
	})
}

func TestCycleFoldsDescendingBatchChronologically(t *testing.T) {
	// Monitor at balance 10.0, watermark 100; the source returns the batch
	// newest first.
	st := newFakeStore(monitor.Monitor{
		ID: "m1", OwnerID: 7, Name: "pool", Address: "addr1",
		Balance: dec("10.0"), Watermark: 100,
	})
	src := &fakeSource{txs: map[string][]monitor.Transaction{
		"addr1": {
			{Sent: dec("0"), Received: dec("2.5"), Time: 150},
			{Sent: dec("1.0"), Received: dec("0"), Time: 120},
		},
	}}
	ch := &fakeChannel{}

	newTestCrawler(st, src, ch).runCycle(context.Background())

	got, ok := st.updates["m1"]
	if !ok {
		t.Fatal("monitor was not persisted")
	}
	if !got.Balance.Equal(dec("11.5")) {
		t.Fatalf("balance = %s, want 11.5", got.Balance)
	}
	if got.Watermark != 150 {
		t.Fatalf("watermark = %d, want 150", got.Watermark)
	}

	if len(ch.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(ch.sent))
	}
	// Chronological order: the time=120 debit first, then the time=150 credit.
	if ch.sent[0] != `New transaction for "pool" (01/01/1970 00:02:00): -1 XSN` {
		t.Fatalf("first notification = %q", ch.sent[0])
	}
	if ch.sent[1] != `New transaction for "pool" (01/01/1970 00:02:30): 2.5 XSN` {
		t.Fatalf("second notification = %q", ch.sent[1])
	}
	if ch.to[0] != 7 || ch.to[1] != 7 {
		t.Fatalf("notifications sent to wrong owner: %v", ch.to)
	}
}

func TestCycleLeavesFailingMonitorUntouched(t *testing.T) {
	mkMon := func(id, addr string) monitor.Monitor {
		return monitor.Monitor{ID: id, OwnerID: 1, Name: id, Address: addr, Balance: dec("5"), Watermark: 50}
	}
	st := newFakeStore(mkMon("m1", "a1"), mkMon("m2", "a2"), mkMon("m3", "a3"))
	tx := []monitor.Transaction{{Received: dec("1"), Time: 60}}
	src := &fakeSource{
		txs:     map[string][]monitor.Transaction{"a1": tx, "a3": tx},
		failing: map[string]bool{"a2": true},
	}
	ch := &fakeChannel{}

	newTestCrawler(st, src, ch).runCycle(context.Background())

	if st.updateCalls != 2 {
		t.Fatalf("expected 2 persisted writes, got %d", st.updateCalls)
	}
	if _, touched := st.updates["m2"]; touched {
		t.Fatal("failing monitor must not be persisted")
	}
	m2, _ := st.FindByID(context.Background(), "m2")
	if !m2.Balance.Equal(dec("5")) || m2.Watermark != 50 {
		t.Fatalf("failing monitor mutated: balance=%s watermark=%d", m2.Balance, m2.Watermark)
	}
}

func TestCycleIsIdempotentAcrossRetries(t *testing.T) {
	st := newFakeStore(monitor.Monitor{
		ID: "m1", OwnerID: 1, Name: "n", Address: "a1",
		Balance: dec("0"), Watermark: 0,
	})
	src := &fakeSource{txs: map[string][]monitor.Transaction{
		"a1": {
			{Received: dec("1.5"), Time: 10},
			{Received: dec("2.5"), Time: 20},
		},
	}}
	ch := &fakeChannel{}

	c := newTestCrawler(st, src, ch)
	c.runCycle(context.Background())
	c.runCycle(context.Background())

	got := st.monitors[0]
	if !got.Balance.Equal(dec("4")) {
		t.Fatalf("balance = %s, want 4 (folded exactly once)", got.Balance)
	}
	if got.Watermark != 20 {
		t.Fatalf("watermark = %d, want 20", got.Watermark)
	}
	if len(ch.sent) != 2 {
		t.Fatalf("expected 2 notifications total, got %d", len(ch.sent))
	}
	if st.updateCalls != 1 {
		t.Fatalf("second cycle must skip the write, got %d updates", st.updateCalls)
	}
}

func TestCycleZeroNewTransactionsIsSilent(t *testing.T) {
	st := newFakeStore(monitor.Monitor{
		ID: "m1", OwnerID: 1, Name: "n", Address: "a1",
		Balance: dec("3"), Watermark: 99,
	})
	src := &fakeSource{txs: map[string][]monitor.Transaction{}}
	ch := &fakeChannel{}

	newTestCrawler(st, src, ch).runCycle(context.Background())

	if len(ch.sent) != 0 {
		t.Fatalf("expected no notifications, got %d", len(ch.sent))
	}
	if st.updateCalls != 0 {
		t.Fatalf("expected no writes, got %d", st.updateCalls)
	}
}

func TestNotificationFailureDoesNotBlockPersistence(t *testing.T) {
	st := newFakeStore(monitor.Monitor{
		ID: "m1", OwnerID: 1, Name: "n", Address: "a1",
		Balance: dec("0"), Watermark: 0,
	})
	src := &fakeSource{txs: map[string][]monitor.Transaction{
		"a1": {{Received: dec("1"), Time: 10}},
	}}
	ch := &fakeChannel{fail: true}

	newTestCrawler(st, src, ch).runCycle(context.Background())

	got, ok := st.updates["m1"]
	if !ok {
		t.Fatal("monitor must be persisted even when delivery fails")
	}
	if !got.Balance.Equal(dec("1")) || got.Watermark != 10 {
		t.Fatalf("unexpected persisted state: balance=%s watermark=%d", got.Balance, got.Watermark)
	}
}

func TestMonitorListFetchFailureSkipsCycle(t *testing.T) {
	st := newFakeStore(monitor.Monitor{ID: "m1", OwnerID: 1, Address: "a1", Balance: dec("0")})
	st.findAllErr = errors.New("store is down")
	src := &fakeSource{txs: map[string][]monitor.Transaction{
		"a1": {{Received: dec("1"), Time: 10}},
	}}
	ch := &fakeChannel{}

	c := newTestCrawler(st, src, ch)
	c.runCycle(context.Background())

	if src.fetchCount != 0 {
		t.Fatal("no monitor may be processed when the list fetch fails")
	}
	if got := c.status.Snapshot().LastChecked; !got.IsZero() {
		t.Fatal("last checked must not advance on a skipped cycle")
	}
}

func TestCycleRecordsLastCheckedAndHistory(t *testing.T) {
	st := newFakeStore(monitor.Monitor{
		ID: "m1", OwnerID: 1, Name: "n", Address: "a1",
		Balance: dec("0"), Watermark: 0,
	})
	src := &fakeSource{txs: map[string][]monitor.Transaction{
		"a1": {{Received: dec("2"), Time: 5}},
	}}
	ch := &fakeChannel{}

	c := newTestCrawler(st, src, ch)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.runCycle(context.Background())

	if got := c.status.Snapshot().LastChecked; !got.Equal(fixed) {
		t.Fatalf("last checked = %v, want %v", got, fixed)
	}
	points := st.history["m1"]
	if len(points) != 1 || !points[0].Balance.Equal(dec("2")) {
		t.Fatalf("unexpected balance history: %+v", points)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{}
	ch := &fakeChannel{}
	c := New(st, src, ch, NewStatus(), Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("crawler did not stop after cancellation")
	}
}
