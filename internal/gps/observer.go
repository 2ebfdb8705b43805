package gps

import (
	"time"

	"gpsbridge/internal/ubx"
)

// observer watches a copy of the relayed stream and maintains the position
// snapshot. Observers are passive: they never modify the stream and their
// failures never reach the relay.
type observer interface {
	// observe consumes one relayed chunk. It returns the newest valid fix
	// found in the chunk (nil when none) and whether the snapshot changed.
	observe(chunk []byte) (*Fix, bool)
	snapshot() Snapshot
}

// maxSentenceLen bounds NMEA line assembly; NMEA 0183 caps sentences at 82
// characters, anything much longer is noise.
const maxSentenceLen = 256

type nmeaObserver struct {
	line  []byte
	state nmeaState
}

func newNMEAObserver() *nmeaObserver {
	return &nmeaObserver{line: make([]byte, 0, maxSentenceLen)}
}

func (o *nmeaObserver) observe(chunk []byte) (*Fix, bool) {
	var fix *Fix
	updated := false
	for _, b := range chunk {
		if b != '\n' {
			if len(o.line) < maxSentenceLen {
				o.line = append(o.line, b)
			}
			continue
		}
		line := string(o.line)
		o.line = o.line[:0]

		sent, err := parseNMEASentence(line)
		if err != nil {
			// Noise between sentences is expected; keep the last error only.
			o.state.lastErr = err.Error()
			continue
		}
		if newFix, ok := o.state.apply(time.Now().UTC(), sent); ok {
			updated = true
			if newFix != nil {
				fix = newFix
			}
		}
	}
	return fix, updated
}

func (o *nmeaObserver) snapshot() Snapshot {
	return o.state.snapshot()
}

type ubxObserver struct {
	parser ubx.Parser

	valid      bool
	lat, lon   float64
	altM       float64
	altOK      bool
	speedMS    float64
	speedOK    bool
	satellites int
	satsOK     bool
	lastFix    time.Time
	lastErr    string
}

func newUBXObserver() *ubxObserver {
	return &ubxObserver{}
}

func (o *ubxObserver) observe(chunk []byte) (*Fix, bool) {
	var fix *Fix
	updated := false
	for _, b := range chunk {
		frame, ok := o.parser.Feed(b)
		if !ok {
			continue
		}
		if frame.Class != ubx.ClassNAV || frame.ID != ubx.IDNavPVT {
			continue
		}
		pvt, err := ubx.DecodeNavPVT(frame)
		if err != nil {
			o.lastErr = err.Error()
			updated = true
			continue
		}

		o.satellites = int(pvt.Satellites)
		o.satsOK = true
		updated = true
		if !pvt.Valid {
			continue
		}

		o.valid = true
		o.lat = pvt.LatDeg()
		o.lon = pvt.LonDeg()
		o.altM = pvt.AltM()
		o.altOK = true
		o.speedMS = pvt.SpeedMS()
		o.speedOK = true
		o.lastFix = pvt.Time()
		if o.lastFix.IsZero() {
			o.lastFix = time.Now().UTC()
		}
		fix = &Fix{
			Time:       o.lastFix,
			LatDeg:     o.lat,
			LonDeg:     o.lon,
			AltM:       o.altM,
			SpeedMS:    o.speedMS,
			Satellites: o.satellites,
		}
	}
	return fix, updated
}

func (o *ubxObserver) snapshot() Snapshot {
	out := Snapshot{
		Valid:  o.valid,
		LatDeg: o.lat,
		LonDeg: o.lon,
	}
	if o.altOK {
		v := o.altM
		out.AltM = &v
	}
	if o.speedOK {
		v := o.speedMS
		out.SpeedMS = &v
	}
	if o.satsOK {
		v := o.satellites
		out.Satellites = &v
	}
	if !o.lastFix.IsZero() {
		out.LastFixUTC = o.lastFix.UTC().Format(time.RFC3339Nano)
	}
	out.LastError = o.lastErr
	return out
}
