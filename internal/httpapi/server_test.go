package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	v1client "github.com/alxayo/go-v1proto/internal/v1/client"
	"github.com/alxayo/go-v1proto/internal/v1/transport"
)

type fakePair struct {
	mu     sync.Mutex
	sent   [][]byte
	in     chan []byte
	closed bool
}

var _ transport.Pair = (*fakePair)(nil)

func newFakePair() *fakePair { return &fakePair{in: make(chan []byte, 16)} }

func (f *fakePair) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakePair) Recv(buf []byte) (int, error) {
	data, ok := <-f.in
	if !ok {
		return 0, nil
	}
	return copy(buf, data), nil
}

func (f *fakePair) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.in)
	return nil
}

func newTestClient(t *testing.T) *v1client.Client {
	t.Helper()
	p := newFakePair()
	c, err := v1client.New(0xC6, p, []transport.Pair{p}, nil)
	if err != nil {
		t.Fatalf("v1client.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHealthzReportsOK(t *testing.T) {
	s := New(newTestClient(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusReportsConnectionState(t *testing.T) {
	s := New(newTestClient(t))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Host != "0xc6" {
		t.Fatalf("unexpected host: %s", body.Host)
	}
	if body.RawHandlers == nil {
		t.Fatalf("expected raw handlers to be a non-nil (possibly empty) list")
	}
	foundAction, foundSubscriber := false, false
	for _, name := range body.RawHandlers {
		switch name {
		case "v1::ActionDispatcher":
			foundAction = true
		case "v1::Subscriber":
			foundSubscriber = true
		}
	}
	if !foundAction || !foundSubscriber {
		t.Fatalf("expected both raw handlers registered, got %v", body.RawHandlers)
	}
}
