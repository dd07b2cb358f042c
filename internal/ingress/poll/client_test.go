package poll

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"device-protect/agent/internal/security"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	key, err := security.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tokens := security.NewTokenIssuer(key, "dev-1", "iss", "aud", time.Minute)
	return NewClient(baseURL, "dev-1", 3, tokens, 5*time.Second)
}

func TestFetch_SendsIdentityAndBearer(t *testing.T) {
	var gotPath, gotAuth, gotDevice, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDevice = r.URL.Query().Get("device_id")
		gotVersion = r.URL.Query().Get("app_version")
		w.Write([]byte(`{"is_freezed": false}`))
	}))
	defer srv.Close()

	body, err := newTestClient(t, srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != `{"is_freezed": false}` {
		t.Errorf("body = %q", body)
	}
	if gotPath != "/status" {
		t.Errorf("path = %q, want /status", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotDevice != "dev-1" || gotVersion != "3" {
		t.Errorf("identity = %q/%q", gotDevice, gotVersion)
	}
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch succeeded on 401")
	}
	var perm *backoff.PermanentError
	if !errors.As(err, &perm) {
		t.Errorf("err = %v (%T), want backoff.Permanent", err, err)
	}
}

func TestFetch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch succeeded on 502")
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		t.Errorf("502 marked permanent: %v", err)
	}
}
