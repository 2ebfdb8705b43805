package led

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeLine struct {
	mu     sync.Mutex
	values []int
	setErr error
	closed bool
}

func (l *fakeLine) SetValue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.setErr != nil {
		return l.setErr
	}
	l.values = append(l.values, v)
	return nil
}

func (l *fakeLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLine) snapshotValues() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.values...)
}

func withFakeLine(t *testing.T, line *fakeLine, openErr error) {
	t.Helper()
	orig := openLineFn
	openLineFn = func(pin int) (lineDriver, error) {
		if openErr != nil {
			return nil, openErr
		}
		return line, nil
	}
	t.Cleanup(func() { openLineFn = orig })
}

func TestService_AlternatesBetweenTwoLevels(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	svc := New(Config{Enable: true, Pin: 5, Period: 5 * time.Millisecond})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(line.snapshotValues()) < 6 {
		if time.Now().After(deadline) {
			t.Fatalf("not enough toggles: %v", line.snapshotValues())
		}
		time.Sleep(5 * time.Millisecond)
	}
	svc.Close()

	values := line.snapshotValues()
	// Shutdown appends a final 0; the toggle sequence before it must strictly
	// alternate starting at 1.
	values = values[:len(values)-1]
	for i, v := range values {
		want := (i + 1) % 2
		if v != want {
			t.Fatalf("values[%d]=%d want %d (seq %v)", i, v, want, values)
		}
	}

	snap := svc.Snapshot()
	if snap.Toggles < 6 {
		t.Fatalf("toggles=%d want >= 6", snap.Toggles)
	}
	if !line.closed {
		t.Fatalf("line not released on Close")
	}
}

func TestService_ClaimFailureSurfacesFromStart(t *testing.T) {
	withFakeLine(t, nil, errors.New("line busy"))

	svc := New(Config{Enable: true, Pin: 5})
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if svc.Snapshot().LastError == "" {
		t.Fatalf("expected snapshot error")
	}
}

func TestService_DisabledIsNoop(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	svc := New(Config{Enable: false, Pin: 5, Period: time.Millisecond})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	svc.Close()
	if got := line.snapshotValues(); len(got) != 0 {
		t.Fatalf("disabled service drove the line: %v", got)
	}
}

func TestService_SetValueErrorRecorded(t *testing.T) {
	line := &fakeLine{setErr: errors.New("io error")}
	withFakeLine(t, line, nil)

	svc := New(Config{Enable: true, Pin: 5, Period: time.Millisecond})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Close()

	deadline := time.Now().Add(2 * time.Second)
	for svc.Snapshot().LastError == "" {
		if time.Now().After(deadline) {
			t.Fatalf("error never recorded")
		}
		time.Sleep(time.Millisecond)
	}
}
