package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ok, _ := payload["ok"].(bool); !ok {
		t.Fatal("expected ok true")
	}
}

func TestReadyEndpointReflectsDatabase(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if status, _ := payload["status"].(string); status != "ready" {
		t.Fatalf("expected ready, got %q", status)
	}

	fs.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr, payload = doJSON(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if status, _ := payload["status"].(string); status != "not_ready" {
		t.Fatalf("expected not_ready, got %q", status)
	}
	checks, _ := payload["checks"].(map[string]any)
	database, _ := checks["database"].(map[string]any)
	if database["status"] != "error" {
		t.Fatalf("expected database check error, got %v", database)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := seedOwner(t, fs, svc, "owner-1", "Ayşe")
	seedBusiness(fs, "biz-1", "owner-1")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/nope", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code, _ := payload["code"].(string); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %q", code)
	}
}
