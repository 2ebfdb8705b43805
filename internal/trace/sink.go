package trace

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
)

// Sink pipes the trace flow into an external consumer process (for example a
// logger or an NMEA tool reading stdin). The process is restarted with
// backoff when it exits; bytes arriving while it is down are dropped, not
// queued.
type Sink struct {
	name string
	args []string

	backoffInitial time.Duration
	backoffMax     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	stdin        io.WriteCloser
	pid          int
	droppedBytes uint64
	lastErr      string
}

func NewSink(command string) (*Sink, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("trace: sink command is empty")
	}
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("trace: sink command parse failed: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("trace: sink command is empty")
	}
	return &Sink{
		name:           args[0],
		args:           args,
		backoffInitial: 250 * time.Millisecond,
		backoffMax:     10 * time.Second,
	}, nil
}

func (s *Sink) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(runCtx)
	}()
}

func (s *Sink) runLoop(ctx context.Context) {
	backoff := s.backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.setErr(err.Error())
			log.Printf("trace sink %s exited: %v", s.name, err)
		} else {
			// A clean exit resets backoff.
			backoff = s.backoffInitial
			log.Printf("trace sink %s exited", s.name)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < s.backoffMax {
			backoff *= 2
			if backoff > s.backoffMax {
				backoff = s.backoffMax
			}
		}
	}
}

func (s *Sink) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	s.mu.Lock()
	s.stdin = stdin
	s.pid = cmd.Process.Pid
	s.lastErr = ""
	s.mu.Unlock()

	err = cmd.Wait()

	s.mu.Lock()
	s.stdin = nil
	s.pid = 0
	s.mu.Unlock()
	_ = stdin.Close()

	return err
}

func (s *Sink) setErr(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Write implements io.Writer. It never blocks the relay on a dead consumer.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	stdin := s.stdin
	if stdin == nil {
		s.droppedBytes += uint64(len(p))
		s.mu.Unlock()
		return len(p), nil
	}
	s.mu.Unlock()

	if _, err := stdin.Write(p); err != nil {
		s.mu.Lock()
		s.droppedBytes += uint64(len(p))
		s.lastErr = err.Error()
		if s.stdin == stdin {
			s.stdin = nil
		}
		s.mu.Unlock()
	}
	return len(p), nil
}

type SinkSnapshot struct {
	Command      string `json:"command"`
	Running      bool   `json:"running"`
	PID          int    `json:"pid,omitempty"`
	DroppedBytes uint64 `json:"dropped_bytes"`
	LastError    string `json:"last_error,omitempty"`
}

func (s *Sink) Snapshot() SinkSnapshot {
	if s == nil {
		return SinkSnapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return SinkSnapshot{
		Command:      strings.Join(s.args, " "),
		Running:      s.stdin != nil,
		PID:          s.pid,
		DroppedBytes: s.droppedBytes,
		LastError:    s.lastErr,
	}
}

func (s *Sink) Close() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
