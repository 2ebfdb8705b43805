package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gpsbridge/internal/trace"
)

func TestStatusEndpoint_IncludesRegisteredProviders(t *testing.T) {
	status := NewStatus()
	status.Register("gps", func() any {
		return map[string]any{"valid": true, "satellites": 8}
	})
	status.Register("led", func() any {
		return map[string]any{"enabled": false}
	})

	srv := httptest.NewServer(Handler(status, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != "gpsbridge" {
		t.Fatalf("service=%v", body["service"])
	}
	gpsAny, ok := body["gps"].(map[string]any)
	if !ok {
		t.Fatalf("gps snapshot missing: %v", body)
	}
	if gpsAny["valid"] != true {
		t.Fatalf("gps=%v", gpsAny)
	}
	if _, ok := body["led"]; !ok {
		t.Fatalf("led snapshot missing")
	}
}

func TestStatusEndpoint_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(Handler(NewStatus(), nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want 405", resp.StatusCode)
	}
}

func TestTraceEndpoint_ReturnsTailBytes(t *testing.T) {
	buf := trace.NewBuffer(0)
	_, _ = buf.Write([]byte("$GPGGA,...*47\r\n"))

	srv := httptest.NewServer(Handler(NewStatus(), buf))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/trace?tail=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	if got := string(body[:n]); got != "*47\r\n" {
		t.Fatalf("tail=%q want %q", got, "*47\r\n")
	}
}

func TestTraceEndpoint_JSONFormat(t *testing.T) {
	buf := trace.NewBuffer(0)
	_, _ = buf.Write([]byte("hello"))

	srv := httptest.NewServer(Handler(NewStatus(), buf))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/trace?format=json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		WrittenBytes uint64 `json:"written_bytes"`
		Tail         string `json:"tail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.WrittenBytes != 5 || body.Tail != "hello" {
		t.Fatalf("body=%+v", body)
	}
}

func TestTraceEndpoint_BadTailRejected(t *testing.T) {
	srv := httptest.NewServer(Handler(NewStatus(), trace.NewBuffer(0)))
	defer srv.Close()

	for _, q := range []string{"tail=0", "tail=-1", "tail=abc", "tail=9999999"} {
		resp, err := http.Get(srv.URL + "/api/trace?" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, resp.StatusCode)
		}
	}
}

func TestTraceEndpoint_UnavailableWithoutBuffer(t *testing.T) {
	srv := httptest.NewServer(Handler(NewStatus(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/trace")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}
