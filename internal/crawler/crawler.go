package crawler

// Package crawler implements the reconciliation loop: poll the transaction
// source for every monitor, fold new transactions into balances exactly
// once, persist the advanced watermark and notify owners in chronological
// order.

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/monitor"
	"xsn-monitor/internal/notify"
	"xsn-monitor/internal/source"
	"xsn-monitor/internal/store"
)

const newTransactionMessage = `New transaction for "%s" (%s): %s XSN`

// Options configure the crawl cadence.
type Options struct {
	// PollInterval is the sleep between full cycles.
	PollInterval time.Duration
	// MonitorDelay paces monitors within a cycle so notifications stay
	// under the channel's rate limits.
	MonitorDelay time.Duration
	// HistoryEnabled controls balance history snapshots after each
	// balance-changing cycle.
	HistoryEnabled bool
}

// Crawler runs the poll loop. Exactly one instance may run against a store;
// a second instance would double-send notifications.
type Crawler struct {
	store   store.MonitorStore
	source  source.TransactionSource
	channel notify.Channel
	status  *Status
	opts    Options

	now func() time.Time
}

func New(st store.MonitorStore, src source.TransactionSource, ch notify.Channel, status *Status, opts Options) *Crawler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	return &Crawler{
		store:   st,
		source:  src,
		channel: ch,
		status:  status,
		opts:    opts,
		now:     time.Now,
	}
}

// Run executes crawl cycles until ctx is cancelled. Cancellation is checked
// at cycle boundaries only, so shutdown latency is bounded by one cycle.
func (c *Crawler) Run(ctx context.Context) {
	log.LogInfo("Starting reconciliation crawler",
		zap.Duration("poll_interval", c.opts.PollInterval),
		zap.Duration("monitor_delay", c.opts.MonitorDelay))

	for {
		if ctx.Err() != nil {
			log.LogInfo("Crawler stopped")
			return
		}

		c.runCycle(ctx)

		select {
		case <-ctx.Done():
			log.LogInfo("Crawler stopped")
			return
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// runCycle processes the full monitor set once. A failure to fetch the
// monitor list skips the whole cycle; per-monitor failures only skip that
// monitor.
func (c *Crawler) runCycle(ctx context.Context) {
	monitors, err := c.store.FindAll(ctx)
	if err != nil {
		log.LogError("Failed to fetch monitor list, skipping cycle", zap.Error(err))
		return
	}

	for i := range monitors {
		c.processMonitor(ctx, &monitors[i])
		if c.opts.MonitorDelay > 0 {
			time.Sleep(c.opts.MonitorDelay)
		}
	}

	c.status.setLastChecked(c.now())
}

// processMonitor reconciles one monitor: all or nothing. If the source
// lookup fails the record is left untouched until the next cycle.
func (c *Crawler) processMonitor(ctx context.Context, m *monitor.Monitor) {
	txs, err := c.source.GetNewTransactions(ctx, m.Address, m.Watermark)
	if err != nil {
		log.LogWarn("Failed to fetch new transactions, skipping monitor",
			zap.String("monitor_id", m.ID),
			zap.String("address", m.Address),
			zap.Error(err))
		return
	}

	if len(txs) == 0 {
		return
	}

	// The source does not guarantee an order; owners must be notified
	// oldest to newest.
	sort.Slice(txs, func(i, j int) bool { return txs[i].Time < txs[j].Time })

	applied := 0
	for _, tx := range txs {
		if !m.Apply(tx) {
			// At or below the watermark: already folded in an earlier
			// cycle, never re-applied.
			continue
		}
		applied++

		text := fmt.Sprintf(newTransactionMessage, m.Name, monitor.FormatTimestamp(tx.Time), tx.Delta())
		if err := c.channel.Send(m.OwnerID, text); err != nil {
			// Delivery failure must never block persistence.
			log.LogWarn("Notification delivery failed",
				zap.String("monitor_id", m.ID),
				zap.Int64("owner_id", m.OwnerID),
				zap.Error(err))
		}
	}

	if applied == 0 {
		return
	}

	if err := c.store.Update(ctx, m.ID, *m); err != nil {
		log.LogError("Failed to persist monitor",
			zap.String("monitor_id", m.ID),
			zap.Error(err))
		return
	}

	log.LogInfo("Reconciled monitor",
		zap.String("monitor_id", m.ID),
		zap.Int("new_transactions", applied),
		zap.Int64("watermark", m.Watermark))

	if c.opts.HistoryEnabled {
		if err := c.store.AppendBalanceHistory(ctx, m.ID, m.Balance, c.now()); err != nil {
			log.LogWarn("Failed to record balance history",
				zap.String("monitor_id", m.ID),
				zap.Error(err))
		}
	}
}
