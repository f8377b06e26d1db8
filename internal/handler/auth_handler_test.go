package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/pumpbook/internal/auth"
	"github.com/hitoshi/pumpbook/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	beginSessionFn func(ctx context.Context, handle string) (*auth.LoginResult, error)
	endSessionFn   func(ctx context.Context, token string) error
}

func (m *mockAuthService) BeginSession(ctx context.Context, handle string) (*auth.LoginResult, error) {
	if m.beginSessionFn != nil {
		return m.beginSessionFn(ctx, handle)
	}
	return nil, auth.ErrMissingAuthorization
}

func (m *mockAuthService) EndSession(ctx context.Context, token string) error {
	if m.endSessionFn != nil {
		return m.endSessionFn(ctx, token)
	}
	return nil
}

type mockResolver struct {
	token string
	user  *model.User
	err   error
}

func (m *mockResolver) Token(*http.Request) (string, bool) {
	return m.token, m.token != ""
}

func (m *mockResolver) Resolve(*http.Request) (*model.User, error) {
	return m.user, m.err
}

func (m *mockResolver) Require(r *http.Request) (*model.User, error) {
	user, err := m.Resolve(r)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, auth.ErrUnauthenticated
	}
	return user, nil
}

var (
	_ AuthServiceInterface = (*mockAuthService)(nil)
	_ IdentityResolver     = (*mockResolver)(nil)
	_ IdentityResolver     = (*auth.Resolver)(nil)
	_ AuthServiceInterface = (*auth.Service)(nil)
)

// --- テスト ---

func TestAuthHandler_CreateSession_PassesHandle(t *testing.T) {
	var gotHandle string
	svc := &mockAuthService{beginSessionFn: func(_ context.Context, handle string) (*auth.LoginResult, error) {
		gotHandle = handle
		return &auth.LoginResult{User: &model.User{ID: "u1"}, Token: "t1"}, nil
	}}
	h := NewAuthHandler(svc, &mockResolver{}, auth.DefaultCookieConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set("X-Session-ID", "handle-1")
	w := httptest.NewRecorder()
	h.CreateSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotHandle != "handle-1" {
		t.Errorf("handle = %q, want handle-1", gotHandle)
	}
	if got := w.Header().Get("Set-Cookie"); got == "" {
		t.Error("Set-Cookie should be present")
	}
}

func TestAuthHandler_CreateSession_StorageFailureIs500(t *testing.T) {
	svc := &mockAuthService{beginSessionFn: func(context.Context, string) (*auth.LoginResult, error) {
		return nil, errors.New("insert failed")
	}}
	h := NewAuthHandler(svc, &mockResolver{}, auth.DefaultCookieConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set("X-Session-ID", "h")
	w := httptest.NewRecorder()
	h.CreateSession(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := w.Header().Get("Set-Cookie"); got != "" {
		t.Errorf("cookie should not be set on failure: %q", got)
	}
}

func TestAuthHandler_Logout_StorageFailureStill200(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{endSessionFn: func(_ context.Context, token string) error {
		gotToken = token
		return errors.New("delete failed")
	}}
	h := NewAuthHandler(svc, &mockResolver{token: "t1"}, auth.DefaultCookieConfig())

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotToken != "t1" {
		t.Errorf("token = %q, want t1", gotToken)
	}
}

func TestAuthHandler_Logout_NoTokenSkipsService(t *testing.T) {
	called := false
	svc := &mockAuthService{endSessionFn: func(context.Context, string) error {
		called = true
		return nil
	}}
	h := NewAuthHandler(svc, &mockResolver{}, auth.DefaultCookieConfig())

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if called {
		t.Error("EndSession should not be called without a token")
	}
}

func TestAuthHandler_Me_StorageFailureIs500(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockResolver{err: errors.New("db down")}, auth.DefaultCookieConfig())

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
