package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freePort reserves an ephemeral port and releases it for the server to bind.
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestNewServer_Timeouts(t *testing.T) {
	s := NewServer(":8080", http.NewServeMux(), discardLogger())

	if s.server.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", s.server.Addr, ":8080")
	}
	if s.server.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("ReadHeaderTimeout = %v, want 10s", s.server.ReadHeaderTimeout)
	}
	if s.server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", s.server.ReadTimeout)
	}
	if s.server.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", s.server.WriteTimeout)
	}
	if s.server.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", s.server.IdleTimeout)
	}
}

func TestNewServer_NilLoggerFallsBack(t *testing.T) {
	s := NewServer(":8080", http.NewServeMux(), nil)
	if s.logger == nil {
		t.Error("nil logger must fall back to slog.Default()")
	}
}

func TestServer_StartAndStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	s := NewServer(freePort(t), mux, discardLogger())

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start() }()

	// Wait for the listener to come up.
	url := fmt.Sprintf("http://%s/healthz", s.server.Addr)
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became reachable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := s.Stop(time.Second); err != nil {
		t.Errorf("Stop error: %v", err)
	}
	if err := <-startErr; err != nil {
		t.Errorf("graceful stop must not surface an error from Start, got %v", err)
	}
}

// A request still in flight when the shutdown deadline passes must not make
// Stop hang; the server is force-closed instead.
func TestServer_StopForcesCloseAfterDeadline(t *testing.T) {
	inHandler := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/run/current", func(w http.ResponseWriter, r *http.Request) {
		close(inHandler)
		time.Sleep(2 * time.Second)
	})
	s := NewServer(freePort(t), mux, discardLogger())
	go s.Start()

	// Wait for the listener to come up.
	for i := 0; i < 50; i++ {
		conn, err := net.Dial("tcp", s.server.Addr)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	url := fmt.Sprintf("http://%s/run/current", s.server.Addr)
	go func() {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-inHandler:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}

	done := make(chan error, 1)
	go func() { done <- s.Stop(50 * time.Millisecond) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop hung past its deadline")
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	snapshot := map[string]any{"run": "nightly", "records": 120}

	if err := WriteJSON(rec, http.StatusOK, snapshot); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got["run"] != "nightly" {
		t.Errorf("run = %v, want %q", got["run"], "nightly")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, errors.New("no snapshot for run"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Error != "no snapshot for run" {
		t.Errorf("error = %q, want %q", resp.Error, "no snapshot for run")
	}
}

func TestWriteErrorMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorMessage(rec, http.StatusBadRequest, "missing run parameter")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Error != "missing run parameter" {
		t.Errorf("error = %q, want %q", resp.Error, "missing run parameter")
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "OK")
	}
}

func TestHealthHandlerWithCheck(t *testing.T) {
	tests := []struct {
		name       string
		check      func() error
		wantStatus int
	}{
		{"healthy", func() error { return nil }, http.StatusOK},
		{"store unreachable", func() error { return errors.New("redis: connection refused") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandlerWithCheck(tt.check).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				var resp ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decoding body: %v", err)
				}
				if resp.Error == "" {
					t.Error("unhealthy response must carry the check error")
				}
			}
		})
	}
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorMessage(w, http.StatusNotFound, "no snapshot for run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run/current", nil))

	out := buf.String()
	for _, want := range []string{"method=GET", "path=/run/current", "status=404", "duration_ms="} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

// A handler that never calls WriteHeader is logged as a 200.
func TestLoggingMiddleware_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("log line missing default status: %s", buf.String())
	}
}

func TestLoggingMiddleware_NilLogger(t *testing.T) {
	handler := LoggingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRecoveryMiddleware_ConvertsPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("snapshot store returned garbage")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run/current", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Error != "internal server error" {
		t.Errorf("error = %q, want %q", resp.Error, "internal server error")
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}

func TestRecoveryMiddleware_PassThrough(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"run": "nightly"})
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run/current", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRecoveryMiddleware_NilLogger(t *testing.T) {
	handler := RecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run/current", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// The stack the harvester actually runs: logging wrapped around recovery
// wrapped around a snapshot route. A panic inside the route comes back as a
// 500 and is logged with that status.
func TestMiddleware_SnapshotRouteStack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/run/current", func(w http.ResponseWriter, r *http.Request) {
		run := r.URL.Query().Get("run")
		if run == "" {
			panic("nil snapshot dereference")
		}
		WriteJSON(w, http.StatusOK, map[string]any{"run": run, "records": 42})
	})
	handler := LoggingMiddleware(logger)(RecoveryMiddleware(logger)(mux))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run/current?run=nightly", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run/current", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "status=500") {
		t.Errorf("logging middleware missed the recovered status: %s", buf.String())
	}
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusTeapot {
		t.Errorf("captured status = %d, want %d", rw.statusCode, http.StatusTeapot)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("underlying status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
