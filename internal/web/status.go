package web

import (
	"sort"
	"sync"
	"time"
)

// Provider returns a JSON-serializable snapshot of one service.
type Provider func() any

// Status aggregates service snapshots for the status endpoint. Services are
// registered once at startup; Snapshot may be called from any goroutine.
type Status struct {
	start time.Time

	mu        sync.RWMutex
	providers map[string]Provider
}

func NewStatus() *Status {
	return &Status{
		start:     time.Now().UTC(),
		providers: map[string]Provider{},
	}
}

func (s *Status) Register(name string, p Provider) {
	if name == "" || p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[name] = p
}

func (s *Status) Snapshot(nowUTC time.Time) map[string]any {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	providers := make([]Provider, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		providers = append(providers, s.providers[name])
	}
	s.mu.RUnlock()

	out := map[string]any{
		"service":    "gpsbridge",
		"now_utc":    nowUTC.UTC().Format(time.RFC3339Nano),
		"uptime_sec": int64(nowUTC.Sub(s.start).Seconds()),
	}
	for i, name := range names {
		out[name] = providers[i]()
	}
	return out
}
