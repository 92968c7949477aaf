package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tasktide/internal/admission"
	"tasktide/internal/auth"
	"tasktide/internal/config"
	"tasktide/internal/model"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		JWTIssuer:      "test-issuer",
		AccessTokenTTL: 10 * time.Minute,
	}
}

// A server with no backing store: only routes that decide before touching
// the database are exercised here.
func newBareServer() *Server {
	return NewServer(testConfig(), nil, admission.NewEngine(nil, 5), nil, nil)
}

func mustToken(t *testing.T, cfg config.Config, userID string, role model.Role) string {
	t.Helper()
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, auth.Claims{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"Basic abc":      "",
		"Bearer":         "",
		"Bearer  spaced": "spaced",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("bearerToken(%q) = %q, expected %q", header, got, expect)
		}
	}
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	router := newBareServer().Router()

	recorder := doJSON(t, router, http.MethodGet, "/units/", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodGet, "/units/", "not-a-jwt", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", recorder.Code)
	}
}

func TestListWithoutScopeParamIsEmpty(t *testing.T) {
	server := newBareServer()
	router := server.Router()
	token := mustToken(t, server.cfg, "11111111-1111-1111-1111-111111111111", model.RoleStudent)

	for _, target := range []string{"/units/", "/resources/", "/groups/"} {
		recorder := doJSON(t, router, http.MethodGet, target, token, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", target, recorder.Code)
		}
		var out []json.RawMessage
		if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode error for %s: %v", target, err)
		}
		if len(out) != 0 {
			t.Fatalf("expected empty list for unscoped %s, got %d entries", target, len(out))
		}
	}
}

func TestRegisterRejectsSelfAssignedAdmin(t *testing.T) {
	router := newBareServer().Router()
	recorder := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "mallory",
		"email":    "mallory@example.local",
		"password": "secret",
		"role":     "admin",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for self-assigned admin, got %d", recorder.Code)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	router := newBareServer().Router()
	recorder := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "bob",
		"email":    "bob@example.local",
		"password": "secret",
		"role":     "headmaster",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", recorder.Code)
	}
}

func TestStudentCannotCreateContent(t *testing.T) {
	server := newBareServer()
	router := server.Router()
	token := mustToken(t, server.cfg, "11111111-1111-1111-1111-111111111111", model.RoleStudent)

	recorder := doJSON(t, router, http.MethodPost, "/servers/", token, map[string]string{"name": "CS101"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student server create, got %d", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodPost, "/units/", token, map[string]string{
		"server_id": "22222222-2222-2222-2222-222222222222",
		"name":      "Calculus I",
		"code":      "MAT101",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student unit create, got %d", recorder.Code)
	}
}

func TestLecturerCannotCreateGroup(t *testing.T) {
	server := newBareServer()
	router := server.Router()
	token := mustToken(t, server.cfg, "11111111-1111-1111-1111-111111111111", model.RoleLecturer)

	recorder := doJSON(t, router, http.MethodPost, "/groups/", token, map[string]interface{}{
		"unit_id": "22222222-2222-2222-2222-222222222222",
		"name":    "Team A",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for lecturer group create, got %d", recorder.Code)
	}
}
