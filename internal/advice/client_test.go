package advice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientRelaysQueryAndContext(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/analyze" {
			t.Errorf("expected /analyze, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{Response: "spend less on coffee"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	answer, err := client.Advise(context.Background(), "where does my money go?", `{"month":"March"}`)
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}

	if got.Query != "where does my money go?" {
		t.Errorf("query relayed as %q", got.Query)
	}
	if got.DataContext != `{"month":"March"}` {
		t.Errorf("data context relayed as %q", got.DataContext)
	}
	if answer != "spend less on coffee" {
		t.Errorf("answer = %q", answer)
	}
}

func TestHTTPClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.Advise(context.Background(), "q", "{}")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", upstream.StatusCode)
	}
}

func TestHTTPClientConnectionRefused(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewHTTPClient(server.URL)
	if _, err := client.Advise(context.Background(), "q", "{}"); err == nil {
		t.Fatal("expected a transport error")
	}
}
