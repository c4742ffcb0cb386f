package crawler

import (
	"sync"
	"time"

	"xsn-monitor/internal/monitor"
)

// Stats is a point-in-time view of the bot's bookkeeping.
type Stats struct {
	LastChecked  time.Time `json:"last_checked"`
	MonitorCount int       `json:"monitor_count"`
	OwnerCount   int       `json:"owner_count"`
}

// Status holds process-wide state owned by the crawler: the time the monitor
// set was last fully checked and per-owner monitor counts. The menu and the
// status endpoint read it through Snapshot.
type Status struct {
	mu            sync.RWMutex
	lastChecked   time.Time
	ownerMonitors map[int64]int
	monitorCount  int
}

func NewStatus() *Status {
	return &Status{ownerMonitors: make(map[int64]int)}
}

// InitFromMonitors seeds the counters from the persisted monitor set.
// Called once at startup.
func (s *Status) InitFromMonitors(monitors []monitor.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerMonitors = make(map[int64]int, len(monitors))
	s.monitorCount = len(monitors)
	for _, m := range monitors {
		s.ownerMonitors[m.OwnerID]++
	}
}

// MonitorAdded records a newly created monitor for owner.
func (s *Status) MonitorAdded(owner int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerMonitors[owner]++
	s.monitorCount++
}

// MonitorRemoved records a deleted monitor; an owner with no monitors left
// drops out of the owner count.
func (s *Status) MonitorRemoved(owner int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.ownerMonitors[owner]; ok {
		if n <= 1 {
			delete(s.ownerMonitors, owner)
		} else {
			s.ownerMonitors[owner] = n - 1
		}
	}
	if s.monitorCount > 0 {
		s.monitorCount--
	}
}

func (s *Status) setLastChecked(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastChecked = t
}

// Snapshot returns a consistent copy of the counters.
func (s *Status) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		LastChecked:  s.lastChecked,
		MonitorCount: s.monitorCount,
		OwnerCount:   len(s.ownerMonitors),
	}
}
