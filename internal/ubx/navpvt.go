package ubx

import (
	"encoding/binary"
	"fmt"
	"time"
)

// NavPVT is the decoded UBX-NAV-PVT navigation solution.
//
// Raw units follow the receiver: coordinates in 1e-7 degrees, heights and
// accuracies in millimeters, speed in millimeters per second.
type NavPVT struct {
	Valid bool // 3D fix with gnssFixOK set

	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
	Nano   int32

	FixType    uint8
	Satellites uint8

	Lon       int32
	Lat       int32
	HeightMSL int32
	HAcc      uint32
	VAcc      uint32
	Speed     int32
}

const navPVTMinLen = 84

// fix type 3 = 3D fix; flags bit 0 = gnssFixOK.
const (
	fixType3D     = 3
	flagGnssFixOK = 0x01
)

// DecodeNavPVT decodes a NAV-PVT payload. The frame must already be
// checksum-verified.
func DecodeNavPVT(f Frame) (NavPVT, error) {
	if f.Class != ClassNAV || f.ID != IDNavPVT {
		return NavPVT{}, fmt.Errorf("ubx: not NAV-PVT (class=0x%02X id=0x%02X)", f.Class, f.ID)
	}
	p := f.Payload
	if len(p) < navPVTMinLen {
		return NavPVT{}, fmt.Errorf("ubx: NAV-PVT payload %d bytes, want >= %d", len(p), navPVTMinLen)
	}

	le := binary.LittleEndian
	fixType := p[20]
	flags := p[21]

	return NavPVT{
		Valid:      fixType >= fixType3D && flags&flagGnssFixOK != 0,
		Year:       le.Uint16(p[4:6]),
		Month:      p[6],
		Day:        p[7],
		Hour:       p[8],
		Minute:     p[9],
		Second:     p[10],
		Nano:       int32(le.Uint32(p[16:20])),
		FixType:    fixType,
		Satellites: p[23],
		Lon:        int32(le.Uint32(p[24:28])),
		Lat:        int32(le.Uint32(p[28:32])),
		HeightMSL:  int32(le.Uint32(p[36:40])),
		HAcc:       le.Uint32(p[40:44]),
		VAcc:       le.Uint32(p[44:48]),
		Speed:      int32(le.Uint32(p[60:64])),
	}, nil
}

// LatDeg returns latitude in degrees.
func (n NavPVT) LatDeg() float64 { return float64(n.Lat) / 1e7 }

// LonDeg returns longitude in degrees.
func (n NavPVT) LonDeg() float64 { return float64(n.Lon) / 1e7 }

// AltM returns height above mean sea level in meters.
func (n NavPVT) AltM() float64 { return float64(n.HeightMSL) / 1000.0 }

// SpeedMS returns ground speed in meters per second.
func (n NavPVT) SpeedMS() float64 { return float64(n.Speed) / 1000.0 }

// HAccM returns horizontal accuracy in meters.
func (n NavPVT) HAccM() float64 { return float64(n.HAcc) / 1000.0 }

// Time returns the UTC timestamp of the solution, or the zero time when the
// date fields are unset.
func (n NavPVT) Time() time.Time {
	if n.Year == 0 {
		return time.Time{}
	}
	return time.Date(int(n.Year), time.Month(n.Month), int(n.Day),
		int(n.Hour), int(n.Minute), int(n.Second), int(n.Nano), time.UTC)
}
