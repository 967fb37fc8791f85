package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, server *HTTPServer, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBufferString("{}")
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, payload
}

func TestSignUpReturnsSessionContract(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/signup", "",
		`{"email":"ayse@example.com","password":"password123","displayName":"Ayşe"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if token, _ := payload["token"].(string); token == "" {
		t.Fatal("expected token")
	}
	if refresh, _ := payload["refreshToken"].(string); refresh == "" {
		t.Fatal("expected refreshToken")
	}
	if name, _ := payload["userName"].(string); name != "Ayşe" {
		t.Fatalf("expected userName Ayşe, got %q", name)
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs), "*")

	body := `{"email":"ayse@example.com","password":"password123","displayName":"Ayşe"}`
	rr, _ := doJSON(t, server, http.MethodPost, "/api/auth/signup", "", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first signup: expected 201, got %d", rr.Code)
	}

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/signup", "", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code, _ := payload["code"].(string); code != "EMAIL_EXISTS" {
		t.Fatalf("expected EMAIL_EXISTS, got %q", code)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs), "*")

	doJSON(t, server, http.MethodPost, "/api/auth/signup", "",
		`{"email":"ayse@example.com","password":"password123","displayName":"Ayşe"}`)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"ayse@example.com","password":"wrong-password"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code, _ := payload["code"].(string); code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %q", code)
	}
}

func TestSessionEndpointStates(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	t.Run("anonymous", func(t *testing.T) {
		rr, payload := doJSON(t, server, http.MethodGet, "/api/session", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if authed, _ := payload["authenticated"].(bool); authed {
			t.Fatal("expected authenticated false")
		}
	})

	token := seedOwner(t, fs, svc, "owner-1", "Ayşe")

	t.Run("signed in without business", func(t *testing.T) {
		rr, payload := doJSON(t, server, http.MethodGet, "/api/session", token, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if authed, _ := payload["authenticated"].(bool); !authed {
			t.Fatal("expected authenticated true")
		}
		if payload["business"] != nil {
			t.Fatalf("expected business null, got %v", payload["business"])
		}
	})

	t.Run("signed in with business", func(t *testing.T) {
		seedBusiness(fs, "biz-1", "owner-1")
		rr, payload := doJSON(t, server, http.MethodGet, "/api/session", token, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		business, ok := payload["business"].(map[string]any)
		if !ok {
			t.Fatalf("expected business payload, got %v", payload["business"])
		}
		if business["id"] != "biz-1" {
			t.Fatalf("expected biz-1, got %v", business["id"])
		}
	})
}

func TestProtectedRoutesRequireSessionThenBusiness(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/vehicles", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if code, _ := payload["code"].(string); code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %q", code)
	}

	token := seedOwner(t, fs, svc, "owner-1", "Ayşe")
	rr, payload = doJSON(t, server, http.MethodGet, "/api/vehicles", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without business, got %d", rr.Code)
	}
	if code, _ := payload["code"].(string); code != "BUSINESS_REQUIRED" {
		t.Fatalf("expected BUSINESS_REQUIRED, got %q", code)
	}

	seedBusiness(fs, "biz-1", "owner-1")
	rr, _ = doJSON(t, server, http.MethodGet, "/api/vehicles", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with business, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	token := seedOwner(t, fs, svc, "owner-1", "Ayşe")
	seedBusiness(fs, "biz-1", "owner-1")

	rr, _ := doJSON(t, server, http.MethodPost, "/api/session/logout", token, "{}")
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rr.Code)
	}

	rr, _ = doJSON(t, server, http.MethodGet, "/api/vehicles", token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}

func TestPasswordResetFlowOverHTTP(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs), "*")

	doJSON(t, server, http.MethodPost, "/api/auth/signup", "",
		`{"email":"ayse@example.com","password":"password123","displayName":"Ayşe"}`)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/reset-password/request", "",
		`{"email":"ayse@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("request reset: expected 200, got %d", rr.Code)
	}
	resetToken, _ := payload["resetToken"].(string)
	if resetToken == "" {
		t.Fatal("expected resetToken in response")
	}

	rr, _ = doJSON(t, server, http.MethodPost, "/api/auth/reset-password", "",
		`{"token":"`+resetToken+`","newPassword":"brand-new-pass"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr, _ = doJSON(t, server, http.MethodPost, "/api/auth/signin", "",
		`{"email":"ayse@example.com","password":"brand-new-pass"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin with new password: expected 200, got %d", rr.Code)
	}
}
