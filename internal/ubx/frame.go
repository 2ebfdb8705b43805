package ubx

import "fmt"

// u-blox UBX framing:
//
//	sync1 sync2 class id len_lo len_hi payload... ck_a ck_b
//
// The checksum is the 8-bit Fletcher algorithm over class..payload.

const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Message classes and IDs used by this module.
const (
	ClassNAV = 0x01
	ClassCFG = 0x06

	IDNavPVT = 0x07
	IDCfgPrt = 0x00
	IDCfgMsg = 0x01
)

// MaxPayload bounds accepted payload sizes. The receiver messages we care
// about are all well under this; anything larger is treated as stream noise.
const MaxPayload = 256

type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
}

// Checksum returns the Fletcher checksum over class, id, length and payload.
func Checksum(class, id byte, payload []byte) (ckA, ckB byte) {
	add := func(b byte) {
		ckA += b
		ckB += ckA
	}
	add(class)
	add(id)
	add(byte(len(payload)))
	add(byte(len(payload) >> 8))
	for _, b := range payload {
		add(b)
	}
	return ckA, ckB
}

// Encode serializes the frame with sync chars and checksum.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("ubx: payload %d exceeds max %d", len(f.Payload), MaxPayload)
	}
	out := make([]byte, 0, 8+len(f.Payload))
	out = append(out, Sync1, Sync2, f.Class, f.ID, byte(len(f.Payload)), byte(len(f.Payload)>>8))
	out = append(out, f.Payload...)
	ckA, ckB := Checksum(f.Class, f.ID, f.Payload)
	out = append(out, ckA, ckB)
	return out, nil
}

// Output protocol selection for PortConfig.
type Protocol int

const (
	// ProtoNMEA makes the receiver emit ASCII NMEA sentences.
	ProtoNMEA Protocol = iota
	// ProtoUBX makes the receiver emit binary UBX messages only.
	ProtoUBX
)

// CFG-PRT proto mask bits.
const (
	protoMaskUBX  = 0x0001
	protoMaskNMEA = 0x0002
)

// PortConfig builds the CFG-PRT frame for UART1: 8N1, the given baud rate,
// no flow control, UBX+NMEA accepted on input, and the selected protocol on
// output. This is the one fixed command the bridge sends at startup.
func PortConfig(baud int, out Protocol) ([]byte, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("ubx: invalid baud %d", baud)
	}
	outMask := uint16(protoMaskNMEA)
	if out == ProtoUBX {
		outMask = protoMaskUBX
	}

	p := make([]byte, 20)
	p[0] = 0x01 // port ID: UART1
	// p[1] reserved, p[2:4] txReady: disabled.
	// mode: 8 data bits, no parity, 1 stop bit (0x000008D0).
	p[4] = 0xD0
	p[5] = 0x08
	// baud, little endian.
	p[8] = byte(baud)
	p[9] = byte(baud >> 8)
	p[10] = byte(baud >> 16)
	p[11] = byte(baud >> 24)
	// inProtoMask: accept UBX and NMEA.
	p[12] = protoMaskUBX | protoMaskNMEA
	// outProtoMask.
	p[14] = byte(outMask)
	p[15] = byte(outMask >> 8)

	return Frame{Class: ClassCFG, ID: IDCfgPrt, Payload: p}.Encode()
}

// EnableNavPVT builds the CFG-MSG frame enabling NAV-PVT output on every
// navigation solution.
func EnableNavPVT() ([]byte, error) {
	return Frame{Class: ClassCFG, ID: IDCfgMsg, Payload: []byte{ClassNAV, IDNavPVT, 1}}.Encode()
}
