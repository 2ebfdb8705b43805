package record

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Entry is one recorded position fix. Entries are appended to the log as a
// stream of CBOR maps; the file needs no framing beyond CBOR itself.
type Entry struct {
	Seq         uint64    `cbor:"seq"`
	CapturedUTC time.Time `cbor:"captured_utc"`

	FixUTC     time.Time `cbor:"fix_utc,omitempty"`
	LatDeg     float64   `cbor:"lat_deg"`
	LonDeg     float64   `cbor:"lon_deg"`
	AltM       float64   `cbor:"alt_m,omitempty"`
	SpeedMS    float64   `cbor:"speed_ms,omitempty"`
	Satellites int       `cbor:"satellites,omitempty"`
}

// Recorder appends fixes to a CBOR log file. Safe for concurrent use.
// The sequence number restarts at 1 for each recorder; CapturedUTC orders
// entries across runs.
type Recorder struct {
	mu   sync.Mutex
	f    *os.File
	enc  *cbor.Encoder
	seq  uint64
	path string
}

func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		return nil, fmt.Errorf("record: path is required")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	return &Recorder{f: f, enc: cbor.NewEncoder(f), path: path}, nil
}

func (r *Recorder) Append(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return fmt.Errorf("record: recorder is closed")
	}
	r.seq++
	e.Seq = r.seq
	if e.CapturedUTC.IsZero() {
		e.CapturedUTC = time.Now().UTC()
	}
	if err := r.enc.Encode(e); err != nil {
		return fmt.Errorf("record: append: %w", err)
	}
	return nil
}

// Count reports how many entries this recorder has appended.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// ReadAll decodes every entry from a recorded log.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	defer f.Close()

	dec := cbor.NewDecoder(f)
	var out []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("record: decode entry %d: %w", len(out), err)
		}
		out = append(out, e)
	}
}
