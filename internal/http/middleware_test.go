package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calvuzs3/qdue-server/internal/application"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
	lastToken string
}

func (f *fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	f.lastToken = token
	return f.principal, f.err
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without a token", func(t *testing.T) {
		t.Parallel()

		validator := &fakeSessionValidator{}
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler must not run without credentials")
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users", nil))

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", recorder.Code, http.StatusUnauthorized)
		}
		if validator.lastToken != "" {
			t.Fatalf("validator was called with token %q", validator.lastToken)
		}
	})

	t.Run("maps session validation failures to status codes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name       string
			err        error
			wantStatus int
		}{
			{name: "unknown token", err: application.ErrUnauthorized, wantStatus: http.StatusUnauthorized},
			{name: "expired session", err: application.ErrSessionExpired, wantStatus: http.StatusUnauthorized},
			{name: "revoked session", err: application.ErrSessionRevoked, wantStatus: http.StatusUnauthorized},
			{name: "disabled account", err: application.ErrAccountDisabled, wantStatus: http.StatusForbidden},
			{name: "storage failure", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				handler := RequireSession(&fakeSessionValidator{err: tc.err}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler must not run when validation fails")
				}))

				req := httptest.NewRequest(http.MethodGet, "/users", nil)
				req.AddCookie(&http.Cookie{Name: "session_token", Value: "token-1"})

				recorder := httptest.NewRecorder()
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.wantStatus {
					t.Fatalf("status = %d, want %d", recorder.Code, tc.wantStatus)
				}
			})
		}
	})

	t.Run("injects the principal for downstream handlers", func(t *testing.T) {
		t.Parallel()

		want := application.Principal{UserID: "user-1", IsAdmin: true}
		validator := &fakeSessionValidator{principal: want}

		var got application.Principal
		var found bool
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, found = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer token-1")

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
		}
		if !found {
			t.Fatal("expected a principal in the request context")
		}
		if got != want {
			t.Fatalf("principal = %+v, want %+v", got, want)
		}
		if validator.lastToken != "token-1" {
			t.Fatalf("validated token = %q, want %q", validator.lastToken, "token-1")
		}
	})

	t.Run("prefers the bearer header over the cookie", func(t *testing.T) {
		t.Parallel()

		validator := &fakeSessionValidator{principal: application.Principal{UserID: "user-1"}}
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "cookie-token"})

		handler.ServeHTTP(httptest.NewRecorder(), req)

		if validator.lastToken != "header-token" {
			t.Fatalf("validated token = %q, want %q", validator.lastToken, "header-token")
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("passes the request through and attaches a logger", func(t *testing.T) {
		t.Parallel()

		var sawLogger bool
		handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawLogger = LoggerFromContext(r.Context()) != nil
			w.WriteHeader(http.StatusTeapot)
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users", nil))

		if recorder.Code != http.StatusTeapot {
			t.Fatalf("status = %d, want %d", recorder.Code, http.StatusTeapot)
		}
		if !sawLogger {
			t.Fatal("expected a request-scoped logger in the context")
		}
	})
}
