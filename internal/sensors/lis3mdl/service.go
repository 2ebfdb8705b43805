package lis3mdl

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gpsbridge/internal/i2c"
)

type Config struct {
	Enable bool

	// Bus is the I2C bus device path, e.g. /dev/i2c-1.
	Bus string
	// Addr defaults to the SA1-low address.
	Addr uint16
	// Interval is the poll period. Defaults to 1s.
	Interval time.Duration
}

type Snapshot struct {
	Enabled bool `json:"enabled"`

	Valid  bool    `json:"valid"`
	XGauss float64 `json:"x_gauss,omitempty"`
	YGauss float64 `json:"y_gauss,omitempty"`
	ZGauss float64 `json:"z_gauss,omitempty"`
	TempC  float64 `json:"temp_c,omitempty"`

	LastReadUTC string `json:"last_read_utc,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Service polls the magnetometer and publishes the latest sample. Best
// effort: a missing or flaky sensor never takes the daemon down.
type Service struct {
	cfg Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	bus  *i2c.Bus
	snap Snapshot
}

func NewService(cfg Config) *Service {
	if cfg.Addr == 0 {
		cfg.Addr = addrDefault
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	s := &Service{cfg: cfg}
	s.snap = Snapshot{Enabled: cfg.Enable}
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("lis3mdl: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.Bus == "" {
		return fmt.Errorf("lis3mdl: bus path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	bus, err := i2c.Open(s.cfg.Bus)
	if err != nil {
		s.snap.LastError = fmt.Sprintf("lis3mdl: open %s: %v", s.cfg.Bus, err)
		return fmt.Errorf("lis3mdl: open %s: %w", s.cfg.Bus, err)
	}
	dev, err := New(bus.Dev(s.cfg.Addr))
	if err != nil {
		_ = bus.Close()
		s.snap.LastError = err.Error()
		return err
	}
	s.bus = bus

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("magnetometer enabled bus=%s addr=0x%02X interval=%s", s.cfg.Bus, s.cfg.Addr, s.cfg.Interval)
		s.pollLoop(childCtx, dev)
	}()
	return nil
}

func (s *Service) pollLoop(ctx context.Context, dev *Device) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ready, err := dev.DataReady()
			if err != nil {
				s.setErr(err.Error())
				continue
			}
			if !ready {
				continue
			}
			sample, err := dev.Read()
			if err != nil {
				s.setErr(err.Error())
				continue
			}
			s.mu.Lock()
			s.snap = Snapshot{
				Enabled:     true,
				Valid:       true,
				XGauss:      sample.X,
				YGauss:      sample.Y,
				ZGauss:      sample.Z,
				TempC:       sample.TempC,
				LastReadUTC: time.Now().UTC().Format(time.RFC3339Nano),
			}
			s.mu.Unlock()
		}
	}
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	s.snap.LastError = msg
	s.mu.Unlock()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
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
	bus := s.bus
	s.bus = nil
	s.mu.Unlock()
	if bus != nil {
		_ = bus.Close()
	}
}
