package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Baud != 38400 {
		t.Fatalf("baud=%d want 38400", cfg.GPS.Baud)
	}
	if cfg.GPS.Protocol != "nmea" {
		t.Fatalf("protocol=%q want nmea", cfg.GPS.Protocol)
	}
	if cfg.GPS.StatusInterval != 5*time.Second {
		t.Fatalf("status_interval=%s want 5s", cfg.GPS.StatusInterval)
	}
	if cfg.LED.Period != 500*time.Millisecond {
		t.Fatalf("period=%s want 500ms", cfg.LED.Period)
	}
	if cfg.Trace.BufferKiB != 64 {
		t.Fatalf("buffer_kib=%d want 64", cfg.Trace.BufferKiB)
	}
	if cfg.Mag.Interval != time.Second {
		t.Fatalf("mag interval=%s want 1s", cfg.Mag.Interval)
	}
}

func TestLoad_BadProtocolRejected(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  protocol: sirf\n")
	_, err := Load(path)
	requireErrEq(t, err, "gps.protocol must be \"nmea\" or \"ubx\"")
}

func TestLoad_RecordRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "record:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "record.path is required when record.enable is true")
}

func TestLoad_MagRequiresBus(t *testing.T) {
	path := writeTempConfig(t, "mag:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "mag.bus is required when mag.enable is true")
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeTempConfig(t, `
gps:
  enable: true
  device: /dev/ttyACM0
  baud: 38400
  protocol: ubx
led:
  enable: true
  pin: 17
  period: 250ms
trace:
  buffer_kib: 128
  listen: 127.0.0.1:9100
  mirror: 127.0.0.1:9101
  sink: "tee /tmp/gps.log"
record:
  enable: true
  path: /var/lib/gpsbridge/fixes.cbor
mag:
  enable: true
  bus: /dev/i2c-1
web:
  listen: 127.0.0.1:8080
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Protocol != "ubx" || cfg.GPS.Device != "/dev/ttyACM0" {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
	if cfg.LED.Pin != 17 || cfg.LED.Period != 250*time.Millisecond {
		t.Fatalf("led=%+v", cfg.LED)
	}
	if cfg.Trace.Listen != "127.0.0.1:9100" || cfg.Trace.Sink != "tee /tmp/gps.log" {
		t.Fatalf("trace=%+v", cfg.Trace)
	}
	if cfg.Web.Listen != "127.0.0.1:8080" {
		t.Fatalf("web=%+v", cfg.Web)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
