package service

// Package service implements the command-facing monitor operations: create
// after address validation, list, delete. The crawler owns balance and
// watermark mutation; this layer never touches them after creation.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"xsn-monitor/internal/crawler"
	"xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/monitor"
	"xsn-monitor/internal/source"
	"xsn-monitor/internal/store"
)

var (
	// ErrInvalidName rejects empty names and names containing the quote
	// delimiter used by the add-monitor prompt protocol.
	ErrInvalidName = errors.New("invalid monitor name")

	// ErrInvalidAddress means the transaction source has never seen the
	// address. Permanent for that address; never retried.
	ErrInvalidAddress = errors.New("invalid address")
)

type MonitorService struct {
	store  store.MonitorStore
	source source.TransactionSource
	status *crawler.Status
}

func New(st store.MonitorStore, src source.TransactionSource, status *crawler.Status) *MonitorService {
	return &MonitorService{store: st, source: src, status: status}
}

// ValidateName checks a user-chosen monitor name against the naming prompt
// protocol, which wraps the name in double quotes.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, `"`) {
		return ErrInvalidName
	}
	return nil
}

// Create validates the address against the source, seeds the monitor with
// the current balance and watermark, and persists it.
func (s *MonitorService) Create(ctx context.Context, ownerID int64, name, address string) (*monitor.Monitor, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	balance, found, err := s.source.GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to validate address: %w", err)
	}
	if !found {
		return nil, ErrInvalidAddress
	}

	watermark, err := s.source.GetLastWatermark(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read last transaction: %w", err)
	}

	m := &monitor.Monitor{
		OwnerID:   ownerID,
		Name:      name,
		Address:   address,
		Balance:   balance,
		Watermark: watermark,
	}

	if _, err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store monitor: %w", err)
	}

	s.status.MonitorAdded(ownerID)
	log.LogSuccess("Monitor created",
		zap.String("id", m.ID),
		zap.Int64("owner_id", ownerID),
		zap.String("address", address))
	return m, nil
}

// List returns the owner's monitors.
func (s *MonitorService) List(ctx context.Context, ownerID int64) ([]monitor.Monitor, error) {
	return s.store.FindByOwner(ctx, ownerID)
}

// Get looks a monitor up by id.
func (s *MonitorService) Get(ctx context.Context, id string) (*monitor.Monitor, error) {
	return s.store.FindByID(ctx, id)
}

// Delete removes a monitor by id. store.ErrMonitorNotFound is returned when
// it was already deleted.
func (s *MonitorService) Delete(ctx context.Context, id string) error {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.status.MonitorRemoved(m.OwnerID)
	log.LogInfo("Monitor deleted", zap.String("id", id), zap.Int64("owner_id", m.OwnerID))
	return nil
}

// Stats exposes the crawler-owned counters to the menu and the status API.
func (s *MonitorService) Stats() crawler.Stats {
	return s.status.Snapshot()
}

// BalanceHistory returns recent balance snapshots for charting, oldest
// first.
func (s *MonitorService) BalanceHistory(ctx context.Context, monitorID string, limit int) ([]store.BalancePoint, error) {
	return s.store.BalanceHistory(ctx, monitorID, limit)
}
