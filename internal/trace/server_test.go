package trace

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestServer_StreamsLiveFlowToViewer(t *testing.T) {
	buf := NewBuffer(0)
	srv, err := NewServer("127.0.0.1:0", buf)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the subscriber so the write below
	// reaches the live flow rather than only the tail replay.
	deadline := time.Now().Add(2 * time.Second)
	for buf.Snapshot().Subscribers == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := []byte("$GPGGA,...*47\r\n")
	_, _ = buf.Write(want)

	got := make([]byte, 0, len(want))
	rd := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(got) < len(want) {
		n, err := conn.Read(rd)
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, got)
		}
		got = append(got, rd[:n]...)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("viewer got %q want %q", got, want)
	}
}

func TestServer_ReplaysTailToNewViewer(t *testing.T) {
	buf := NewBuffer(0)
	_, _ = buf.Write([]byte("earlier bytes"))

	srv, err := NewServer("127.0.0.1:0", buf)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got := make([]byte, len("earlier bytes"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "earlier bytes" {
		t.Fatalf("viewer got %q", got)
	}
}

func TestServer_DiscardsViewerInput(t *testing.T) {
	buf := NewBuffer(0)
	srv, err := NewServer("127.0.0.1:0", buf)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Input from the viewer must not end up in the trace buffer.
	if _, err := conn.Write([]byte("should be ignored")); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := buf.Tail(0); len(got) != 0 {
		t.Fatalf("buffer got %q, want empty", got)
	}
}
