package poll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/command"
)

type captureSubmitter struct {
	mu      sync.Mutex
	updates []command.StateUpdate
}

func (c *captureSubmitter) Submit(_ context.Context, u command.StateUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return nil
}

func TestRound_SubmitsNormalizedUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_freezed": true, "message": "Pay EMI"}`))
	}))
	defer srv.Close()

	sink := &captureSubmitter{}
	p := NewPoller(newTestClient(t, srv.URL), sink, nil, time.Minute, zerolog.Nop())
	p.round(context.Background())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(sink.updates))
	}
	u := sink.updates[0]
	if u.Source != command.SourcePoll {
		t.Errorf("Source = %q, want poll", u.Source)
	}
	if u.Locked == nil || !*u.Locked {
		t.Errorf("Locked = %v, want true", u.Locked)
	}
	if u.Message == nil || *u.Message != "Pay EMI" {
		t.Errorf("Message = %v", u.Message)
	}
}

func TestRound_RetriesTransientFailure(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sink := &captureSubmitter{}
	p := NewPoller(newTestClient(t, srv.URL), sink, nil, time.Minute, zerolog.Nop())
	p.round(context.Background())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.updates) != 1 {
		t.Fatalf("updates = %d, want 1 after retry", len(sink.updates))
	}
}

func TestRound_RejectionStopsRetries(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sink := &captureSubmitter{}
	p := NewPoller(newTestClient(t, srv.URL), sink, nil, time.Minute, zerolog.Nop())
	p.round(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, 403 must not be retried", calls)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.updates) != 0 {
		t.Errorf("updates = %d, want none", len(sink.updates))
	}
}
