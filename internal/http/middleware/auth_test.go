package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskops/reporting-service/internal/upstream"
)

type stubVerifier struct {
	user  *upstream.User
	valid bool
	seen  string
}

func (v *stubVerifier) VerifyToken(_ context.Context, token string) (*upstream.User, bool) {
	v.seen = token
	if !v.valid {
		return nil, false
	}
	return v.user, true
}

func TestAuthStoresUserAndToken(t *testing.T) {
	verifier := &stubVerifier{
		user:  &upstream.User{ID: 7, Username: "carol", IsActive: true},
		valid: true,
	}

	var gotUser *upstream.User
	var gotToken string
	handler := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetCurrentUser(r.Context())
		gotToken = GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	request.Header.Set("Authorization", "Bearer token-abc")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if verifier.seen != "token-abc" {
		t.Fatalf("expected verifier to receive token-abc, got %q", verifier.seen)
	}
	if gotUser == nil || gotUser.ID != 7 || gotUser.Username != "carol" {
		t.Fatalf("expected authenticated user in context, got %+v", gotUser)
	}
	if gotToken != "token-abc" {
		t.Fatalf("expected raw token in context, got %q", gotToken)
	}
}

func TestAuthRejectsMissingBearerToken(t *testing.T) {
	verifier := &stubVerifier{valid: true, user: &upstream.User{ID: 1}}
	handler := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run without credentials")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		request := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
		if header != "" {
			request.Header.Set("Authorization", header)
		}
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, request)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected status %d, got %d", header, http.StatusUnauthorized, recorder.Code)
		}
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	verifier := &stubVerifier{valid: false}
	handler := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run with an invalid token")
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	request.Header.Set("Authorization", "Bearer expired")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestAuthSkipsNonAPIPaths(t *testing.T) {
	verifier := &stubVerifier{valid: false}
	handler := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected health to bypass auth, got status %d", recorder.Code)
	}
}
