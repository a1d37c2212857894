package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parkside-labs/gatehouse/pkg/admission"
	"parkside-labs/gatehouse/pkg/admission/store"
	"parkside-labs/gatehouse/pkg/config"
	"parkside-labs/gatehouse/pkg/estimate"
)

// echoResponder replies with the message it was given and charges a fixed
// unit count.
type echoResponder struct {
	units uint64
}

func (e *echoResponder) Respond(_ context.Context, req ChatRequest) (ChatResponse, error) {
	return ChatResponse{Reply: "echo: " + req.Message, Units: e.units}, nil
}

type failingResponder struct{}

func (failingResponder) Respond(context.Context, ChatRequest) (ChatResponse, error) {
	return ChatResponse{}, fmt.Errorf("downstream unavailable")
}

func newTestServer(limits store.Limits, responder Responder) *Server {
	gate := admission.NewGate(store.New(limits), estimate.NewCharEstimator(4.0), nil, nil)
	cfg := &config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second}
	return NewServer(cfg, gate, responder, nil, nil)
}

func defaultLimits() store.Limits {
	return store.Limits{
		RequestLimit: 10, RequestWindow: time.Hour,
		UsageLimit: 5000, UsageWindow: 24 * time.Hour,
		SessionLimit: 3,
	}
}

func chatRequest(message, ip, session string) *http.Request {
	body := fmt.Sprintf(`{"message":%q}`, message)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("X-Real-IP", ip)
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	return req
}

func TestServer_ChatRoundTrip(t *testing.T) {
	srv := newTestServer(defaultLimits(), &echoResponder{units: 5})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest("hello", "203.0.113.7", "sess-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["reply"] != "echo: hello" {
		t.Errorf("reply = %q, want echoed message", resp["reply"])
	}
	if resp["sessionId"] != "sess-1" {
		t.Errorf("sessionId = %q, want sess-1", resp["sessionId"])
	}
}

func TestServer_ChatValidation(t *testing.T) {
	srv := newTestServer(defaultLimits(), &echoResponder{})
	handler := srv.Handler()

	// Missing message.
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("X-Real-IP", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}

	// Wrong method.
	req = httptest.NewRequest(http.MethodGet, "/v1/chat", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestServer_ResponderFailureIs502(t *testing.T) {
	srv := newTestServer(defaultLimits(), failingResponder{})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest("hello", "203.0.113.7", "sess-1"))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestServer_SessionCapAndRelease(t *testing.T) {
	limits := defaultLimits()
	limits.SessionLimit = 2
	srv := newTestServer(limits, &echoResponder{})
	handler := srv.Handler()

	send := func(session string) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, chatRequest("hi", "203.0.113.7", session))
		return rec.Code
	}

	if code := send("sess-1"); code != http.StatusOK {
		t.Fatalf("sess-1 status = %d, want 200", code)
	}
	if code := send("sess-2"); code != http.StatusOK {
		t.Fatalf("sess-2 status = %d, want 200", code)
	}
	if code := send("sess-3"); code != http.StatusTooManyRequests {
		t.Fatalf("sess-3 status = %d, want 429", code)
	}

	// Release a slot over HTTP, then the third session fits.
	rel := httptest.NewRequest(http.MethodDelete, "/v1/sessions", nil)
	rel.Header.Set("X-Real-IP", "203.0.113.7")
	rel.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rel)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("release status = %d, want 204", rec.Code)
	}

	if code := send("sess-3"); code != http.StatusOK {
		t.Errorf("sess-3 after release status = %d, want 200", code)
	}
}

func TestServer_ReleaseRequiresSessionHeader(t *testing.T) {
	srv := newTestServer(defaultLimits(), &echoResponder{})
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(defaultLimits(), &echoResponder{})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServer_MetricsDisabledWithoutCollector(t *testing.T) {
	srv := newTestServer(defaultLimits(), &echoResponder{})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when metrics are disabled", rec.Code)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv := newTestServer(defaultLimits(), &echoResponder{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	// Give the listener a moment, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned %v after cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}
