package ubx

// Parser is a streaming UBX frame scanner. Feed it one byte at a time; it
// returns a complete checksum-verified frame when one ends on that byte.
//
// Anything that is not a well-formed UBX frame (NMEA text, noise, oversize
// lengths, bad checksums) is silently skipped and the parser re-syncs on the
// next 0xB5 0x62 pair.
type Parser struct {
	state   parseState
	class   byte
	id      byte
	length  int
	payload []byte

	ckA, ckB byte

	badChecksums uint64
}

type parseState int

const (
	stateSync1 parseState = iota
	stateSync2
	stateClass
	stateID
	stateLenLo
	stateLenHi
	statePayload
	stateCkA
	stateCkB
)

// BadChecksums reports how many frames were discarded for checksum mismatch.
func (p *Parser) BadChecksums() uint64 { return p.badChecksums }

func (p *Parser) reset() {
	p.state = stateSync1
	p.payload = p.payload[:0]
	p.ckA, p.ckB = 0, 0
}

func (p *Parser) sum(b byte) {
	p.ckA += b
	p.ckB += p.ckA
}

// Feed advances the parser by one byte. The returned frame's payload is only
// valid until the next call to Feed.
func (p *Parser) Feed(b byte) (Frame, bool) {
	switch p.state {
	case stateSync1:
		if b == Sync1 {
			p.state = stateSync2
		}
	case stateSync2:
		switch b {
		case Sync2:
			p.state = stateClass
			p.ckA, p.ckB = 0, 0
		case Sync1:
			// Repeated sync1; still waiting for sync2.
		default:
			p.reset()
		}
	case stateClass:
		p.class = b
		p.sum(b)
		p.state = stateID
	case stateID:
		p.id = b
		p.sum(b)
		p.state = stateLenLo
	case stateLenLo:
		p.length = int(b)
		p.sum(b)
		p.state = stateLenHi
	case stateLenHi:
		p.length |= int(b) << 8
		p.sum(b)
		switch {
		case p.length == 0:
			p.state = stateCkA
		case p.length <= MaxPayload:
			p.payload = p.payload[:0]
			p.state = statePayload
		default:
			p.reset()
		}
	case statePayload:
		p.payload = append(p.payload, b)
		p.sum(b)
		if len(p.payload) == p.length {
			p.state = stateCkA
		}
	case stateCkA:
		if b != p.ckA {
			p.badChecksums++
			p.reset()
			break
		}
		p.state = stateCkB
	case stateCkB:
		ok := b == p.ckB
		if !ok {
			p.badChecksums++
			p.reset()
			break
		}
		f := Frame{Class: p.class, ID: p.id, Payload: p.payload}
		p.reset()
		return f, true
	}
	return Frame{}, false
}
