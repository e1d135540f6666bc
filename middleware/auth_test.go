package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/billbatista/acasinha-pots/session"
	"github.com/google/uuid"
)

type fakeSessions map[string]uuid.UUID

func (f fakeSessions) Create(context.Context, uuid.UUID) (*session.Session, error) {
	return nil, nil
}

func (f fakeSessions) GetByToken(_ context.Context, token string) (*session.Session, error) {
	userID, ok := f[token]
	if !ok {
		return nil, session.ErrInvalidSession
	}
	return &session.Session{UserID: userID, Token: token}, nil
}

func (f fakeSessions) Delete(context.Context, string) error            { return nil }
func (f fakeSessions) DeleteByUserID(context.Context, uuid.UUID) error { return nil }

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens(testSecret, "acasinha-pots")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tokens
}

// serve runs req through the auth chain and reports the resolved user.
func serve(t *testing.T, sessions fakeSessions, tokens *Tokens, req *http.Request) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()
	var got uuid.UUID
	var ok bool
	handler := AuthMiddleware(sessions, tokens)(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got, ok
}

func TestSessionCookie(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok"})

	rec, got, ok := serve(t, fakeSessions{"tok": userID}, nil, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if !ok || got != userID {
		t.Fatalf("user = %s (%v), want %s", got, ok, userID)
	}
}

func TestStaleCookieIsClearedAndRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale"})

	rec, _, _ := serve(t, fakeSessions{}, nil, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected the stale cookie to be cleared")
	}
}

func TestBearerToken(t *testing.T) {
	tokens := newTestTokens(t)
	userID := uuid.New()
	signed, err := tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec, got, ok := serve(t, fakeSessions{}, tokens, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if !ok || got != userID {
		t.Fatalf("user = %s (%v), want %s", got, ok, userID)
	}
}

func TestBearerTokenRejected(t *testing.T) {
	tokens := newTestTokens(t)
	userID := uuid.New()

	issued := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }
	expired, err := tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tokens.now = time.Now

	other, err := NewTokens([]byte("fedcba9876543210fedcba9876543210"), "acasinha-pots")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	forged, err := other.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for name, token := range map[string]string{"expired": expired, "forged": forged, "garbage": "not.a.jwt"} {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Verify(token); err == nil {
				t.Fatal("expected verification to fail")
			}
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec, _, _ := serve(t, fakeSessions{}, tokens, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestNewTokensRejectsShortSecret(t *testing.T) {
	if _, err := NewTokens([]byte("short"), "acasinha-pots"); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}
