package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientDecodesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/history":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("expected limit=5, got %q", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"runs": []map[string]any{{"id": "a", "status": "succeeded"}}})
		case "/api/artifacts/delete":
			var req DeleteArtifactsRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			_ = json.NewEncoder(w).Encode(DeleteArtifactsResponse{Removed: len(req.Paths)})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	history, err := client.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history.Runs) != 1 || history.Runs[0].ID != "a" {
		t.Fatalf("unexpected history %#v", history)
	}
	removed, err := client.DeleteArtifacts(context.Background(), []string{"x", "y"})
	if err != nil || removed != 2 {
		t.Fatalf("DeleteArtifacts: %d %v", removed, err)
	}
}

func TestClientReportsStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "untracked artifact: /etc/hosts", Kind: "untracked"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "", time.Second)
	_, err := client.Persist(context.Background(), "/etc/hosts", "/tmp/x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusForbidden || statusErr.Kind != "untracked" {
		t.Fatalf("unexpected status error %#v", statusErr)
	}
	if IsUnavailable(err) {
		t.Fatal("status errors must not look like an unreachable daemon")
	}
}

func TestClientUnavailable(t *testing.T) {
	var nilClient *Client
	if _, err := nilClient.Status(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable for nil client, got %v", err)
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, err := NewClient(addr, "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Health(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable after server close, got %v", err)
	}
}

func TestNewClientEmptyBind(t *testing.T) {
	client, err := NewClient("  ", "", 0)
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "secret", time.Second)
	health, err := client.Health(context.Background())
	if err != nil || health.Status != "ok" {
		t.Fatalf("Health: %#v %v", health, err)
	}
}
