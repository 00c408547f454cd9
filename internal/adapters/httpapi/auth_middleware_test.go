package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

type fakeAuthenticator map[string]domain.Session

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (domain.Session, error) {
	if sess, ok := f[token]; ok {
		return sess, nil
	}
	return domain.Session{}, &session.Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "invalid session token"}
}

func newTestAuthHandler(t *testing.T) http.Handler {
	t.Helper()
	auth := fakeAuthenticator{
		"good": {ID: "s1", User: domain.User{ID: "u1", Role: domain.RoleStudent}},
	}
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok || u.ID != "u1" || tokenFromContext(r.Context()) != "good" {
			writeError(w, r, http.StatusInternalServerError, "MISSING_SESSION", "session missing from context", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return NewAuthMiddleware(auth, nil)(probe)
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	t.Parallel()

	h := newTestAuthHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if er.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("code: got %q", er.Error.Code)
	}
}

func TestAuthMiddleware_MalformedHeader_401(t *testing.T) {
	t.Parallel()

	h := newTestAuthHandler(t)
	for _, v := range []string{"Basic abc", "Bearer ", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
		req.Header.Set("Authorization", v)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("Authorization=%q status: got %d want %d", v, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_ValidToken_SetsSession(t *testing.T) {
	t.Parallel()

	h := newTestAuthHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestRecoverer_PanicIs500JSON(t *testing.T) {
	t.Parallel()

	h := recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d want 500", rec.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil || er.Error.Code != "INTERNAL" {
		t.Fatalf("body=%s err=%v", rec.Body.String(), err)
	}
}
