package gps

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gpsbridge/internal/ubx"
)

// openSerialFn is swapped out in tests.
var openSerialFn = func(path string, baud int) (io.ReadWriteCloser, error) {
	return openSerial(path, baud)
}

type Config struct {
	Enable bool

	// Device is the serial device path. Empty means auto-detect
	// (/dev/ttyACM*, /dev/ttyUSB*).
	Device string
	// Baud defaults to 38400, the rate the receiver is configured for.
	Baud int

	// Protocol selects the receiver's output stream: "nmea" (default) for
	// ASCII sentences or "ubx" for binary NAV-PVT.
	Protocol string

	// StatusInterval controls how often a status line is logged while the
	// receiver is silent. Defaults to 5s.
	StatusInterval time.Duration
}

// Fix is a position solution extracted by the passive observer.
type Fix struct {
	Time       time.Time
	LatDeg     float64
	LonDeg     float64
	AltM       float64
	SpeedMS    float64
	Satellites int
}

type Snapshot struct {
	Enabled  bool   `json:"enabled"`
	Device   string `json:"device,omitempty"`
	Baud     int    `json:"baud,omitempty"`
	Protocol string `json:"protocol,omitempty"`

	ConfigSent   bool   `json:"config_sent"`
	RelayedBytes uint64 `json:"relayed_bytes"`

	Valid      bool     `json:"valid"`
	LatDeg     float64  `json:"lat_deg,omitempty"`
	LonDeg     float64  `json:"lon_deg,omitempty"`
	AltM       *float64 `json:"alt_m,omitempty"`
	SpeedMS    *float64 `json:"speed_ms,omitempty"`
	Satellites *int     `json:"satellites,omitempty"`
	LastFixUTC string   `json:"last_fix_utc,omitempty"`

	LastError string `json:"last_error,omitempty"`
}

// Service owns the serial device from Start to Close and relays its byte
// stream to the trace sink.
type Service struct {
	cfg  Config
	sink io.Writer

	// OnFix, when set before Start, is called from the relay goroutine for
	// every new valid position solution.
	OnFix func(Fix)

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last     atomic.Value // Snapshot
	relayed  atomic.Uint64
	lastData atomic.Int64 // unix nanos of last received byte

	mu     sync.Mutex
	closer io.Closer
}

func New(cfg Config, sink io.Writer) *Service {
	s := &Service{cfg: cfg, sink: sink}
	proto := normalizeProtocol(cfg.Protocol)
	s.last.Store(Snapshot{Enabled: cfg.Enable, Device: cfg.Device, Baud: cfg.Baud, Protocol: proto})
	return s
}

func normalizeProtocol(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "nmea"
	}
	return p
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.sink == nil {
		return fmt.Errorf("gps: trace sink is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	proto := normalizeProtocol(s.cfg.Protocol)
	if proto != "nmea" && proto != "ubx" {
		return fmt.Errorf("gps: unknown protocol %q", proto)
	}

	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			err := fmt.Errorf("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			s.setErrorLocked(err.Error())
			return err
		}
	}

	baud := s.cfg.Baud
	if baud == 0 {
		baud = 38400
	}

	f, err := openSerialFn(device, baud)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, baud, err))
		return err
	}
	s.closer = f

	// The receiver configuration goes out exactly once, before the first
	// read. No acknowledgment is awaited; if the receiver rejects it the
	// only symptom is silence.
	if err := sendConfig(f, baud, proto); err != nil {
		_ = f.Close()
		s.closer = nil
		s.setErrorLocked(err.Error())
		return err
	}

	s.last.Store(Snapshot{Enabled: true, Device: device, Baud: baud, Protocol: proto, ConfigSent: true})

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = f.Close() }()
		log.Printf("gps bridge enabled device=%s baud=%d protocol=%s", device, baud, proto)
		s.relayLoop(childCtx, f, device, baud, proto)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.statusLoop(childCtx)
	}()

	return nil
}

func sendConfig(w io.Writer, baud int, proto string) error {
	out := ubx.ProtoNMEA
	if proto == "ubx" {
		out = ubx.ProtoUBX
	}
	frame, err := ubx.PortConfig(baud, out)
	if err != nil {
		return fmt.Errorf("gps: build port config: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("gps: write port config: %w", err)
	}
	if out == ubx.ProtoUBX {
		frame, err := ubx.EnableNavPVT()
		if err != nil {
			return fmt.Errorf("gps: build nav-pvt enable: %w", err)
		}
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("gps: write nav-pvt enable: %w", err)
		}
	}
	return nil
}

func (s *Service) relayLoop(ctx context.Context, f io.Reader, device string, baud int, proto string) {
	var obs observer
	if proto == "ubx" {
		obs = newUBXObserver()
	} else {
		obs = newNMEAObserver()
	}

	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			// Relay first, byte-exact and in order. The observer works on
			// the same chunk afterwards and never alters it.
			_, _ = s.sink.Write(chunk)
			s.relayed.Add(uint64(n))
			s.lastData.Store(time.Now().UnixNano())

			if fix, updated := obs.observe(chunk); updated {
				s.publish(device, baud, proto, obs)
				if fix != nil && s.OnFix != nil {
					s.OnFix(*fix)
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				s.setError(fmt.Sprintf("gps read stopped: %v", err))
			}
			return
		}
	}
}

func (s *Service) publish(device string, baud int, proto string, obs observer) {
	snap := obs.snapshot()
	snap.Enabled = true
	snap.Device = device
	snap.Baud = baud
	snap.Protocol = proto
	snap.ConfigSent = true
	snap.RelayedBytes = s.relayed.Load()
	s.last.Store(snap)
}

// statusLoop logs a periodic liveness line while the receiver is silent.
func (s *Service) statusLoop(ctx context.Context) {
	interval := s.cfg.StatusInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			last := s.lastData.Load()
			if last != 0 && time.Since(time.Unix(0, last)) < interval {
				continue
			}
			snap := s.Snapshot()
			if snap.Valid && snap.Satellites != nil {
				log.Printf("gps status: fix held, satellites=%d, no data for %s", *snap.Satellites, interval)
			} else {
				log.Printf("gps status: searching for satellites")
			}
		}
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	snap := v.(Snapshot)
	if r := s.relayed.Load(); r > snap.RelayedBytes {
		snap.RelayedBytes = r
	}
	return snap
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg)
}

func (s *Service) setErrorLocked(msg string) {
	cur := s.Snapshot()
	cur.LastError = msg
	s.last.Store(cur)
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
