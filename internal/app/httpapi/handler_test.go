package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dreamwell/sleepdiary/internal/app/services/admin"
	"github.com/dreamwell/sleepdiary/internal/app/services/auth"
	"github.com/dreamwell/sleepdiary/internal/app/services/entries"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	"github.com/dreamwell/sleepdiary/internal/app/storage/memory"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()
	provider := storage.Static(store)

	authSvc := auth.New(provider, []byte("test-secret"), nil)
	if err := auth.SeedAdmin(context.Background(), store, nil); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	entriesSvc := entries.New(provider, nil)
	adminSvc := admin.New(provider, authSvc, nil)

	return NewHandler(authSvc, entriesSvc, adminSvc, Config{}, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func register(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/register", "", map[string]interface{}{
		"username": username,
		"password": password,
		"secQ":     0,
		"secA":     "rex",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	return resp.Token
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	return resp.Token
}

func entryBody(date string, duration float64) map[string]interface{} {
	return map[string]interface{}{
		"date":       date,
		"bedTime":    "22:30",
		"wakeTime":   "06:30",
		"duration":   duration,
		"screenTime": 1.5,
		"energy":     4,
		"notes":      "",
	}
}

func TestDiaryLifecycle(t *testing.T) {
	h := newTestServer(t)

	register(t, h, "alice", "pass1234")
	token := login(t, h, "alice", "pass1234")

	// First submission for the day.
	rec := doJSON(t, h, http.MethodPost, "/api/entries", token, entryBody("2024-01-01", 8))
	if rec.Code != http.StatusOK {
		t.Fatalf("create entry: status %d body %s", rec.Code, rec.Body.String())
	}

	var list []map[string]interface{}
	rec = doJSON(t, h, http.MethodGet, "/api/entries", token, nil)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
	entryID := int64(list[0]["id"].(float64))

	// Resubmitting the same date replaces instead of duplicating.
	rec = doJSON(t, h, http.MethodPost, "/api/entries", token, entryBody("2024-01-01", 7.5))
	if rec.Code != http.StatusOK {
		t.Fatalf("update entry: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/entries", token, nil)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("resubmission created a duplicate: %d entries", len(list))
	}
	if got := list[0]["duration"].(float64); got != 7.5 {
		t.Fatalf("duration = %v, want 7.5", got)
	}
	if got := int64(list[0]["id"].(float64)); got != entryID {
		t.Fatalf("entry id changed on resubmission: %d -> %d", entryID, got)
	}

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/entries/%d", entryID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete entry: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/entries", token, nil)
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("expected empty diary after delete, got %d entries", len(list))
	}
}

func TestEntriesRequireAuth(t *testing.T) {
	h := newTestServer(t)

	for _, tc := range []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, "/api/entries", tc.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var resp map[string]string
			decodeBody(t, rec, &resp)
			if resp["error"] == "" {
				t.Fatal("expected an error message body")
			}
		})
	}
}

func TestUsersCannotSeeEachOther(t *testing.T) {
	h := newTestServer(t)

	aliceToken := register(t, h, "alice", "pass1234")
	bobToken := register(t, h, "bob", "pass1234")

	rec := doJSON(t, h, http.MethodPost, "/api/entries", aliceToken, entryBody("2024-01-01", 8))
	if rec.Code != http.StatusOK {
		t.Fatalf("create entry: status %d", rec.Code)
	}

	var list []map[string]interface{}
	rec = doJSON(t, h, http.MethodGet, "/api/entries", aliceToken, nil)
	decodeBody(t, rec, &list)
	entryID := int64(list[0]["id"].(float64))

	// Bob sees nothing and cannot delete alice's entry.
	rec = doJSON(t, h, http.MethodGet, "/api/entries", bobToken, nil)
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("bob sees %d foreign entries", len(list))
	}

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/entries/%d", entryID), bobToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cross-user delete: status %d, want indistinguishable 200", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/entries", aliceToken, nil)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Fatal("cross-user delete removed the entry")
	}
}

func TestLoginRejections(t *testing.T) {
	h := newTestServer(t)
	register(t, h, "alice", "pass1234")

	for name, body := range map[string]map[string]string{
		"unknown user":   {"username": "ghost", "password": "pass1234"},
		"wrong password": {"username": "alice", "password": "nope1234"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/login", "", body)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	h := newTestServer(t)
	register(t, h, "alice", "pass1234")

	rec := doJSON(t, h, http.MethodPost, "/api/register", "", map[string]interface{}{
		"username": "Alice",
		"password": "other123",
		"secQ":     1,
		"secA":     "blue",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", rec.Code)
	}
}

func TestRecoveryEndpoints(t *testing.T) {
	h := newTestServer(t)
	register(t, h, "alice", "pass1234")

	rec := doJSON(t, h, http.MethodPost, "/api/recover/question", "", map[string]string{"username": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("recover question: status %d", rec.Code)
	}
	var qResp struct {
		Question string `json:"question"`
	}
	decodeBody(t, rec, &qResp)
	if qResp.Question == "" {
		t.Fatal("expected a question")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/recover/verify", "", map[string]string{
		"username":    "alice",
		"answer":      "wrong",
		"newPassword": "newpass1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong answer: status %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/recover/verify", "", map[string]string{
		"username":    "alice",
		"answer":      "REX",
		"newPassword": "newpass1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("recover verify: status %d body %s", rec.Code, rec.Body.String())
	}

	login(t, h, "alice", "newpass1")
}

func TestChangePasswordEndpoint(t *testing.T) {
	h := newTestServer(t)
	token := register(t, h, "alice", "pass1234")

	rec := doJSON(t, h, http.MethodPost, "/api/change-password", token, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "newpass1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/change-password", token, map[string]string{
		"currentPassword": "pass1234",
		"newPassword":     "newpass1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: status %d body %s", rec.Code, rec.Body.String())
	}

	login(t, h, "alice", "newpass1")
}

func TestAdminEndpoints(t *testing.T) {
	h := newTestServer(t)

	aliceToken := register(t, h, "alice", "pass1234")
	rec := doJSON(t, h, http.MethodPost, "/api/entries", aliceToken, entryBody("2024-01-01", 8))
	if rec.Code != http.StatusOK {
		t.Fatalf("create entry: status %d", rec.Code)
	}

	// Non-admin callers are rejected.
	rec = doJSON(t, h, http.MethodGet, "/api/admin/users", aliceToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin list: status %d, want 403", rec.Code)
	}

	adminToken := login(t, h, "admin", "admin123")

	var reports []struct {
		Username string                   `json:"username"`
		Entries  []map[string]interface{} `json:"entries"`
	}
	rec = doJSON(t, h, http.MethodGet, "/api/admin/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: status %d body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &reports)
	if len(reports) != 1 || reports[0].Username != "alice" {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if len(reports[0].Entries) != 1 {
		t.Fatalf("expected alice's entry in report, got %d", len(reports[0].Entries))
	}

	rec = doJSON(t, h, http.MethodPost, "/api/admin/reset-password", adminToken, map[string]string{
		"username":    "alice",
		"newPassword": "reset123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin reset: status %d body %s", rec.Code, rec.Body.String())
	}
	login(t, h, "alice", "reset123")

	rec = doJSON(t, h, http.MethodPost, "/api/admin/reset-password", adminToken, map[string]string{
		"username":    "ghost",
		"newPassword": "reset123",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("reset unknown user: status %d, want 404", rec.Code)
	}
}

func TestAdminUsernameCannotRegister(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/register", "", map[string]interface{}{
		"username": "Admin",
		"password": "pass1234",
		"secQ":     0,
		"secA":     "rex",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("register admin: status %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}

func TestHealthzReportsStorageFailure(t *testing.T) {
	store := memory.New()
	provider := storage.Static(store)
	authSvc := auth.New(provider, []byte("test-secret"), nil)

	h := NewHandler(authSvc, entries.New(provider, nil), admin.New(provider, authSvc, nil), Config{
		Health: func() error { return errors.New("storage backend failed") },
	}, nil)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with failed backend: status %d, want 503", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "unhealthy" {
		t.Fatalf("status = %q, want unhealthy", resp["status"])
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOriginNotReflected(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Allow-Origin %q for unknown origin", got)
	}
}
