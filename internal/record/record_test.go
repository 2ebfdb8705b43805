package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorder_AppendAssignsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixes.cbor")
	r, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	defer r.Close()

	for i := 0; i < 3; i++ {
		if err := r.Append(Entry{LatDeg: 48.1 + float64(i), LonDeg: 11.5}); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}
	if got := r.Count(); got != 3 {
		t.Fatalf("count=%d want 3", got)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries=%d want 3", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Fatalf("entries[%d].Seq=%d want %d", i, e.Seq, i+1)
		}
		if e.CapturedUTC.IsZero() {
			t.Fatalf("entries[%d] missing capture time", i)
		}
	}
	if entries[2].LatDeg < 50.09 || entries[2].LatDeg > 50.11 {
		t.Fatalf("lat=%f", entries[2].LatDeg)
	}
}

func TestRecorder_AppendAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixes.cbor")

	r1, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	fixTime := time.Date(2024, 6, 15, 12, 34, 56, 0, time.UTC)
	if err := r1.Append(Entry{FixUTC: fixTime, LatDeg: 1, LonDeg: 2, Satellites: 9}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	_ = r1.Close()

	r2, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder() reopen error: %v", err)
	}
	if err := r2.Append(Entry{LatDeg: 3, LonDeg: 4}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	_ = r2.Close()

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	if !entries[0].FixUTC.Equal(fixTime) {
		t.Fatalf("fix time=%v want %v", entries[0].FixUTC, fixTime)
	}
	if entries[0].Satellites != 9 {
		t.Fatalf("satellites=%d want 9", entries[0].Satellites)
	}
}

func TestRecorder_ClosedRejectsAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixes.cbor")
	r, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	_ = r.Close()
	if err := r.Append(Entry{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadAll_TruncatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixes.cbor")
	r, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	if err := r.Append(Entry{LatDeg: 1, LonDeg: 2}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	_ = r.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(path, b[:len(b)-2], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if _, err := ReadAll(path); err == nil {
		t.Fatalf("expected error on truncated log")
	}
}
