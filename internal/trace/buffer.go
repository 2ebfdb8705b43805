package trace

import (
	"sync"
)

// Buffer is the host-side trace channel: a byte-stream ring retaining the
// most recent bytes relayed from the receiver, with live fan-out to
// subscribers (the TCP viewer server).
//
// Write never blocks and never fails; a subscriber that cannot keep up is
// dropped rather than allowed to stall the relay.
type Buffer struct {
	mu      sync.Mutex
	max     int
	data    []byte
	written uint64
	trimmed uint64

	subs    map[int]*subscriber
	nextSub int
}

type subscriber struct {
	ch     chan []byte
	closed bool
}

const defaultMaxBytes = 64 * 1024

func NewBuffer(maxBytes int) *Buffer {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Buffer{max: maxBytes, subs: map[int]*subscriber{}}
}

// Write implements io.Writer. The chunk is appended to the ring and fanned
// out to live subscribers.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.written += uint64(len(p))
	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = b.data[over:]
		b.trimmed += uint64(over)
	}

	for id, s := range b.subs {
		if s.closed {
			continue
		}
		cp := append([]byte(nil), p...)
		select {
		case s.ch <- cp:
		default:
			// Subscriber is not draining; cut it loose.
			s.closed = true
			close(s.ch)
			delete(b.subs, id)
		}
	}
	return len(p), nil
}

// Tail returns a copy of up to n most recent bytes.
func (b *Buffer) Tail(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.data) {
		n = len(b.data)
	}
	return append([]byte(nil), b.data[len(b.data)-n:]...)
}

// Subscribe registers a live-flow subscriber. The returned channel is closed
// when the subscriber falls behind or cancel is called. depth is the channel
// buffer in chunks.
func (b *Buffer) Subscribe(depth int) (<-chan []byte, func()) {
	if depth <= 0 {
		depth = 64
	}
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	s := &subscriber{ch: make(chan []byte, depth)}
	b.subs[id] = s
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.subs[id]; ok && cur == s && !s.closed {
			s.closed = true
			close(s.ch)
			delete(b.subs, id)
		}
	}
	return s.ch, cancel
}

type Snapshot struct {
	WrittenBytes uint64 `json:"written_bytes"`
	TrimmedBytes uint64 `json:"trimmed_bytes"`
	BufferedLen  int    `json:"buffered_len"`
	Subscribers  int    `json:"subscribers"`
}

func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		WrittenBytes: b.written,
		TrimmedBytes: b.trimmed,
		BufferedLen:  len(b.data),
		Subscribers:  len(b.subs),
	}
}
