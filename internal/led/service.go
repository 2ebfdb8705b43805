package led

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// lineDriver is a claimed digital output line.
type lineDriver interface {
	SetValue(v int) error
	Close() error
}

// openLineFn is swapped out in tests.
var openLineFn = openLine

type Config struct {
	Enable bool

	// Pin is the GPIO line number (chip-relative offset or, on boards with
	// named lines, the number in "GPIOn").
	Pin int
	// Period is the time between toggles. Defaults to 500ms.
	Period time.Duration
}

type Snapshot struct {
	Enabled bool   `json:"enabled"`
	Pin     int    `json:"pin,omitempty"`
	Period  string `json:"period,omitempty"`

	Level   int    `json:"level"`
	Toggles uint64 `json:"toggles"`

	LastError string `json:"last_error,omitempty"`
}

// Service claims one GPIO output line at startup and toggles it at a fixed
// period for the life of the process. The line claim is exclusive; a claim
// failure is a configuration mistake and is surfaced from Start.
type Service struct {
	cfg Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	drv     lineDriver
	level   int
	toggles uint64
	lastErr string
}

func New(cfg Config) *Service {
	if cfg.Period <= 0 {
		cfg.Period = 500 * time.Millisecond
	}
	return &Service{cfg: cfg}
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("led: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.Pin < 0 {
		return fmt.Errorf("led: invalid pin %d", s.cfg.Pin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	drv, err := openLineFn(s.cfg.Pin)
	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.drv = drv

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("led indicator enabled pin=%d period=%s", s.cfg.Pin, s.cfg.Period)
		s.blinkLoop(childCtx, drv)
	}()
	return nil
}

func (s *Service) blinkLoop(ctx context.Context, drv lineDriver) {
	t := time.NewTicker(s.cfg.Period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			s.level ^= 1
			level := s.level
			s.toggles++
			s.mu.Unlock()

			if err := drv.SetValue(level); err != nil {
				s.mu.Lock()
				s.lastErr = fmt.Sprintf("led: set value failed: %v", err)
				s.mu.Unlock()
			}
		}
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Enabled:   s.cfg.Enable && s.drv != nil,
		Pin:       s.cfg.Pin,
		Level:     s.level,
		Toggles:   s.toggles,
		LastError: s.lastErr,
	}
	if s.cfg.Enable {
		snap.Period = s.cfg.Period.String()
	}
	return snap
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	drv := s.drv
	s.drv = nil
	s.mu.Unlock()
	if drv != nil {
		// Leave the line low on shutdown.
		_ = drv.SetValue(0)
		_ = drv.Close()
	}
}
