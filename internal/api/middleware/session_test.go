package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamin-groot/hush-starknet/internal/auth"
)

func sessionProbe(t *testing.T) (http.Handler, *auth.TokenIssuer) {
	t.Helper()
	issuer := auth.NewTokenIssuer("test-secret")
	m := NewSessionMiddleware(issuer)
	handler := m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if session == nil {
			t.Error("session missing from context behind RequireSession")
			return
		}
		w.Write([]byte(session.WalletAddress))
	}))
	return handler, issuer
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	handler, _ := sessionProbe(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireSessionRejectsGarbageToken(t *testing.T) {
	handler, _ := sessionProbe(t)

	req := httptest.NewRequest("GET", "/events", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireSessionAcceptsCookie(t *testing.T) {
	handler, issuer := sessionProbe(t)
	token, err := issuer.IssueSession("0xAbC")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/events", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "0xabc" {
		t.Fatalf("wallet = %q, want lowercased 0xabc", rec.Body.String())
	}
}

func TestRequireSessionAcceptsBearer(t *testing.T) {
	handler, issuer := sessionProbe(t)
	token, err := issuer.IssueSession("0xabc")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
