package sandboxhttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/CodeForge/internal/adapter/sandboxhttp"
)

func TestCreateInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"instanceId": "inst-1"})
	}))
	defer srv.Close()

	c := sandboxhttp.NewClient(srv.URL, "test-key")
	id, err := c.CreateInstance(context.Background())
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if id != "inst-1" {
		t.Fatalf("got %q, want inst-1", id)
	}
}

func TestGetLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/inst-1/logs" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Success": true,
			"Lines":   []string{"line1", "line2"},
		})
	}))
	defer srv.Close()

	c := sandboxhttp.NewClient(srv.URL, "test-key")
	result, err := c.GetLogs(context.Background(), "inst-1", true, 30)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if !result.Success || len(result.Lines) != 2 {
		t.Fatalf("got %+v", result)
	}
}

func TestDeployErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := sandboxhttp.NewClient(srv.URL, "test-key")
	_, err := c.Deploy(context.Background(), "inst-1")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}
