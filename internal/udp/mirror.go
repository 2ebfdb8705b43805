package udp

import (
	"fmt"
	"net"
	"sync"
)

// Mirror duplicates the trace byte flow to a UDP destination, one datagram
// per chunk. Chunks larger than the datagram limit are split; ordering within
// a chunk is preserved by sending the pieces sequentially.
//
// Delivery is fire-and-forget, matching the trace channel's no-backpressure
// contract.
type Mirror struct {
	dest    string
	maxSize int

	mu        sync.Mutex
	conn      *net.UDPConn
	datagrams uint64
	lastErr   string
}

const defaultMaxDatagram = 1024

func NewMirror(dest string) (*Mirror, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", dest, err)
	}
	return &Mirror{dest: dest, maxSize: defaultMaxDatagram, conn: conn}, nil
}

// Write implements io.Writer.
func (m *Mirror) Write(p []byte) (int, error) {
	total := len(p)
	if total == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return total, nil
	}
	for len(p) > 0 {
		n := len(p)
		if n > m.maxSize {
			n = m.maxSize
		}
		if _, err := m.conn.Write(p[:n]); err != nil {
			m.lastErr = err.Error()
			return total, nil
		}
		m.datagrams++
		p = p[n:]
	}
	return total, nil
}

type Snapshot struct {
	Dest      string `json:"dest"`
	Datagrams uint64 `json:"datagrams"`
	LastError string `json:"last_error,omitempty"`
}

func (m *Mirror) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Dest: m.dest, Datagrams: m.datagrams, LastError: m.lastErr}
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
