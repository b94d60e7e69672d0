package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teamsync/api/internal/relay"
)

func TestAuthIssueReturnsContract(t *testing.T) {
	svc := newTestService()
	server := NewHTTPServer(svc, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(`{"email":"avery@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload struct {
		Token string `json:"token"`
		Exp   int64  `json:"exp"`
		UID   string `json:"uid"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected token")
	}
	if payload.UID != "avery@example.com" {
		t.Fatalf("expected uid to echo the email, got %q", payload.UID)
	}
	if remaining := time.Until(time.Unix(payload.Exp, 0)); remaining <= 0 || remaining > time.Hour {
		t.Fatalf("expected exp within the configured ttl, got %s", remaining)
	}
	if _, err := svc.SessionFromToken(req.Context(), payload.Token); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
}

func TestAuthIssueRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "missing email", body: `{}`, wantCode: "VALIDATION_ERROR"},
		{name: "blank email", body: `{"email":"   "}`, wantCode: "VALIDATION_ERROR"},
		{name: "non-string email", body: `{"email":42}`, wantCode: "INVALID_BODY"},
		{name: "truncated json", body: `{"email":`, wantCode: "INVALID_BODY"},
	}
	server := NewHTTPServer(newTestService(), "*")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			server.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
			}
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if payload["code"] != tt.wantCode {
				t.Fatalf("expected code %s, got %v", tt.wantCode, payload["code"])
			}
		})
	}
}

func TestAuthIssueRejectsGet(t *testing.T) {
	server := NewHTTPServer(newTestService(), "*")
	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestSessionProbe(t *testing.T) {
	server := NewHTTPServer(newTestService(), "*")

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{name: "no token", want: false},
		{name: "bad token", token: "abc.def.ghi", want: false},
		{name: "valid token", token: issueTestToken(t, "avery"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()

			server.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if payload["authenticated"] != tt.want {
				t.Fatalf("expected authenticated=%v, got %v", tt.want, payload["authenticated"])
			}
			if tt.want && payload["sub"] != "avery" {
				t.Fatalf("expected sub avery, got %v", payload["sub"])
			}
		})
	}
}

func TestLogoutRevokesSyncAccess(t *testing.T) {
	revocations := &fakeRevocations{}
	svc := NewWithRevocationStore(testConfig(), relay.NewRegistry(), revocations)
	server := NewHTTPServer(svc, "*")
	token := issueTestToken(t, "avery")

	req := httptest.NewRequest(http.MethodPost, "/api/session/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(revocations.revoked) != 1 {
		t.Fatalf("expected one revoked token, got %d", len(revocations.revoked))
	}

	req = httptest.NewRequest(http.MethodPost, "/sync?room=team-42", bytes.NewBufferString("x"))
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to get 401, got %d", rr.Code)
	}
}
