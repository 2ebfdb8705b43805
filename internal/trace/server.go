package trace

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

// Server streams the live trace flow over TCP to any connected viewer,
// one-directional (bridge to viewer). Anything a client sends is discarded.
//
// New connections first receive a tail of the recent buffer so a viewer
// attaching mid-stream gets context, then the live flow.
type Server struct {
	buf        *Buffer
	replayTail int

	ln net.Listener
	wg sync.WaitGroup

	cancel context.CancelFunc

	mu       sync.Mutex
	accepted uint64
}

const defaultReplayTail = 4096

func NewServer(listenAddr string, buf *Buffer) (*Server, error) {
	if buf == nil {
		return nil, fmt.Errorf("trace: buffer is nil")
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("trace: listen %s: %w", listenAddr, err)
	}
	return &Server{buf: buf, replayTail: defaultReplayTail, ln: ln}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

func (s *Server) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				if runCtx.Err() == nil {
					log.Printf("trace accept failed: %v", err)
				}
				return
			}
			s.mu.Lock()
			s.accepted++
			s.mu.Unlock()

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serveConn(runCtx, conn)
			}()
		}
	}()

	go func() {
		<-runCtx.Done()
		_ = s.ln.Close()
	}()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	// Discard anything the viewer sends; the channel is one-directional.
	go func() {
		_, _ = io.Copy(io.Discard, conn)
	}()

	ch, cancel := s.buf.Subscribe(256)
	defer cancel()

	if tail := s.buf.Tail(s.replayTail); len(tail) > 0 {
		if err := writeFull(conn, tail); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-ch:
			if !ok {
				// Fell behind and was dropped by the buffer.
				return
			}
			if err := writeFull(conn, chunk); err != nil {
				return
			}
		}
	}
}

func writeFull(conn net.Conn, p []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := conn.Write(p)
	return err
}

func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.ln.Close()
	s.wg.Wait()
}
