package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/savify/savify/pkg/model"
)

func fastConfig(hooks ...Hook) *Config {
	return &Config{Hooks: hooks, MaxRetries: 1, RetryDelay: 10 * time.Millisecond}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(nil)
	if cfg.MaxRetries != 2 {
		t.Errorf("expected MaxRetries 2, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("expected RetryDelay 1s, got %v", cfg.RetryDelay)
	}
}

func TestClientAppend(t *testing.T) {
	var received Event
	var eventHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventHeader = r.Header.Get(HeaderEvent)
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(fastConfig(Hook{URL: server.URL}), "ws-1", "/w")
	err := client.Append(model.EventTypeCommit, "/w/notes.txt", "abcdefghij0123456789", "deadbeef", map[string]any{"label": "Version 2"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if eventHeader != "commit" {
		t.Errorf("expected event header commit, got %q", eventHeader)
	}
	if received.Event != model.EventTypeCommit {
		t.Errorf("expected commit event, got %q", received.Event)
	}
	if received.WorkspaceID != "ws-1" || received.Root != "/w" {
		t.Errorf("workspace identity not stamped: %+v", received)
	}
	if received.Path != "/w/notes.txt" || received.SnapshotID != "deadbeef" {
		t.Errorf("unexpected payload: %+v", received)
	}
	if received.Details["label"] != "Version 2" {
		t.Errorf("details not forwarded: %v", received.Details)
	}
	if received.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestClientSignature(t *testing.T) {
	var signature string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(HeaderSignature)
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	client := NewClient(fastConfig(Hook{URL: server.URL, Secret: "s3cret"}), "", "")
	if err := client.Append(model.EventTypeTrack, "/w/a", "", "", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if want := Sign(body, "s3cret"); signature != want {
		t.Errorf("signature %q, want %q", signature, want)
	}
	if !strings.HasPrefix(signature, "sha256=") {
		t.Errorf("signature missing prefix: %q", signature)
	}
}

func TestClientRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(fastConfig(Hook{URL: server.URL}), "", "")
	if err := client.Append(model.EventTypePush, "", "", "", nil); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestClientGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(fastConfig(Hook{URL: server.URL}), "", "")
	err := client.Append(model.EventTypePush, "", "", "", nil)
	if err == nil || !strings.Contains(err.Error(), "http 502") {
		t.Fatalf("expected http 502 error, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 1 retry, got %d calls", got)
	}
}

func TestClientEventFiltering(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(fastConfig(
		Hook{URL: server.URL, Events: []string{"push"}},
		Hook{URL: server.URL, Events: []string{Wildcard}},
	), "", "")

	client.Append(model.EventTypeCommit, "", "", "", nil)
	if got := calls.Load(); got != 1 {
		t.Errorf("commit: expected only the wildcard hook, got %d calls", got)
	}
	client.Append(model.EventTypePush, "", "", "", nil)
	if got := calls.Load(); got != 3 {
		t.Errorf("push: expected both hooks, got %d calls total", got)
	}
}

func TestClientConnectionError(t *testing.T) {
	client := NewClient(fastConfig(Hook{URL: "http://127.0.0.1:1/hook"}), "", "")
	err := client.Append(model.EventTypeCommit, "", "", "", nil)
	if err == nil {
		t.Fatal("expected connection error")
	}
	var target interface{ Unwrap() []error }
	if !errors.As(err, &target) {
		t.Errorf("expected joined error, got %T", err)
	}
}

func TestHookTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(&Config{Hooks: []Hook{{URL: server.URL, Timeout: 20 * time.Millisecond}}}, "", "")
	if err := client.Append(model.EventTypeCommit, "", "", "", nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHookMatches(t *testing.T) {
	if !(Hook{}).Matches(model.EventTypeRestore) {
		t.Error("hook without events should match everything")
	}
	if (Hook{Events: []string{"commit"}}).Matches(model.EventTypeRestore) {
		t.Error("commit hook should not match restore")
	}
}
