package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authhttp "github.com/psytech/auth-backend/internal/auth/http"
)

func issueAccessToken(t *testing.T) (string, func(http.HandlerFunc) http.HandlerFunc) {
	t.Helper()
	sessions, _, log := newTestSessions(t)

	ctx := context.Background()
	if err := sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	session, err := sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("VerifyOTPAndIssueSession: %v", err)
	}
	return session.AccessToken, authhttp.RequireAuth(sessions, log)
}

func TestRequireAuth_PassesUserToHandler(t *testing.T) {
	accessToken, requireAuth := issueAccessToken(t)

	called := false
	protected := requireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, ok := authhttp.UserFromContext(r.Context())
		if !ok {
			t.Fatal("user missing from request context")
		}
		if user.PhoneNumber != "+15551234567" {
			t.Errorf("user phone = %q", user.PhoneNumber)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	protected(rec, req)

	if !called {
		t.Fatal("handler was not invoked")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	_, requireAuth := issueAccessToken(t)

	protected := requireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without an Authorization header")
	})

	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "MISSING_AUTHORIZATION" {
		t.Errorf("code = %v, want MISSING_AUTHORIZATION", body["code"])
	}
}

func TestRequireAuth_RejectsBadTokens(t *testing.T) {
	accessToken, requireAuth := issueAccessToken(t)

	protected := requireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	})

	for _, header := range []string{
		"Bearer not-a-token",
		"Token " + accessToken,
		accessToken,
	} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		protected(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireAuth_RejectsExpiredToken(t *testing.T) {
	sessions, clk, log := newTestSessions(t)

	ctx := context.Background()
	if err := sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	session, err := sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("VerifyOTPAndIssueSession: %v", err)
	}

	clk.Advance(16 * time.Minute)

	protected := authhttp.RequireAuth(sessions, log)(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with an expired token")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	protected(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
