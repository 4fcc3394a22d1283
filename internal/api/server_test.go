package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/storefleet/internal/engine"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestServer(storeCount func() int) (*Server, *engine.State) {
	state := engine.NewState()
	return NewServer("worker-1", "1.2.3", "s3cret", state, storeCount, nopLogger{}), state
}

func authed(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(authHeader, "Bearer s3cret")
	return req
}

func TestStatusRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(nil)
	h := srv.Routes()

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/status", nil),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/status", nil)
			r.Header.Set(authHeader, "Bearer wrong")
			return r
		}(),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/status", nil)
			r.Header.Set(authHeader, "s3cret") // missing Bearer prefix
			return r
		}(),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("code = %d, want 401", rec.Code)
		}
	}
}

func TestStatusReportsLoopState(t *testing.T) {
	srv, state := newTestServer(func() int { return 7 })
	state.SetRunning(true)
	state.SetLastResponse("iteration finished")

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, authed(http.MethodGet, "/status"))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running || resp.LastResponse != "iteration finished" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Stores == nil || *resp.Stores != 7 {
		t.Fatalf("stores = %v", resp.Stores)
	}
	if resp.Service != "worker-1" || resp.Version != "1.2.3" {
		t.Fatalf("identity = %q %q", resp.Service, resp.Version)
	}
}

func TestStopSignalsTheLoop(t *testing.T) {
	srv, state := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, authed(http.MethodPost, "/stop"))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	select {
	case <-state.StopRequested():
	default:
		t.Fatal("stop channel not closed")
	}
}

func TestStartRefusedWhileRunning(t *testing.T) {
	srv, state := newTestServer(nil)
	state.SetRunning(true)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, authed(http.MethodPost, "/start"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestStartRearmsAfterStop(t *testing.T) {
	srv, state := newTestServer(nil)
	h := srv.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/stop"))
	state.SetRunning(false)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/start"))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if state.Stopped() {
		t.Fatal("stop flag should be cleared")
	}
	select {
	case <-state.StopRequested():
		t.Fatal("stop channel should be rearmed")
	default:
	}
}

func TestHealthIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
}
