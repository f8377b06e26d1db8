package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/pumpbook/internal/model"
)

type failingSessionRepo struct {
	err error
}

func (r *failingSessionRepo) Create(context.Context, *model.Session) error { return r.err }
func (r *failingSessionRepo) FindLiveByToken(context.Context, string) (*model.Session, error) {
	return nil, r.err
}
func (r *failingSessionRepo) DeleteByUserID(context.Context, string) error { return r.err }
func (r *failingSessionRepo) DeleteByToken(context.Context, string) error  { return r.err }

func seedSession(t *testing.T, f *fixture, userID, token string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.store.Users.CreateIfAbsent(ctx, &model.User{ID: userID, Email: userID + "@example.com", Name: userID}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := f.store.Sessions.Create(ctx, &model.Session{ID: "s-" + token, UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: f.clock.Now()}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestResolve_NoCredential(t *testing.T) {
	f := newFixture(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)

	u, err := f.resolver.Resolve(req)
	if u != nil || err != nil {
		t.Errorf("Resolve = (%+v, %v), want (nil, nil)", u, err)
	}
}

func TestResolve_CookiePreferredOverBearer(t *testing.T) {
	f := newFixture(nil)
	exp := f.clock.Now().Add(time.Hour)
	seedSession(t, f, "cookie-user", "tc", exp)
	seedSession(t, f, "bearer-user", "tb", exp)

	req := bearerRequest("tb")
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "tc"})

	u, err := f.resolver.Resolve(req)
	if err != nil || u == nil || u.ID != "cookie-user" {
		t.Errorf("Resolve = (%+v, %v), want cookie-user", u, err)
	}
}

// 有効期限の1秒前は有効、1秒後は無効
func TestResolve_ExpiryBoundary(t *testing.T) {
	f := newFixture(nil)
	exp := f.clock.Now().Add(time.Second)
	seedSession(t, f, "u1", "t1", exp)

	if u, _ := f.resolver.Resolve(bearerRequest("t1")); u == nil {
		t.Fatal("session should be live before expiry")
	}

	f.clock.Advance(2 * time.Second)
	if u, err := f.resolver.Resolve(bearerRequest("t1")); u != nil || err != nil {
		t.Errorf("Resolve after expiry = (%+v, %v), want (nil, nil)", u, err)
	}
}

func TestResolve_UnknownToken(t *testing.T) {
	f := newFixture(nil)
	if u, err := f.resolver.Resolve(bearerRequest("nope")); u != nil || err != nil {
		t.Errorf("Resolve = (%+v, %v), want (nil, nil)", u, err)
	}
}

// ユーザーが存在しないセッションはエラーにせず未認証として扱う
func TestResolve_OrphanedSession(t *testing.T) {
	f := newFixture(nil)
	seedSession(t, f, "u1", "t1", f.clock.Now().Add(time.Hour))
	f.store.Users.Delete("u1")

	u, err := f.resolver.Resolve(bearerRequest("t1"))
	if u != nil || err != nil {
		t.Errorf("Resolve = (%+v, %v), want (nil, nil)", u, err)
	}
}

func TestResolve_StorageFailure(t *testing.T) {
	f := newFixture(nil)
	resolver := NewResolver(nil, &failingSessionRepo{err: errors.New("db down")}, f.store.Users, nil)

	u, err := resolver.Resolve(bearerRequest("t1"))
	if err == nil {
		t.Fatal("expected storage error")
	}
	if u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestRequire(t *testing.T) {
	f := newFixture(nil)
	seedSession(t, f, "u1", "t1", f.clock.Now().Add(time.Hour))

	if _, err := f.resolver.Require(bearerRequest("missing")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Require(missing) error = %v, want ErrUnauthenticated", err)
	}

	u, err := f.resolver.Require(bearerRequest("t1"))
	if err != nil || u.ID != "u1" {
		t.Errorf("Require(t1) = (%+v, %v)", u, err)
	}

	failing := NewResolver(nil, &failingSessionRepo{err: errors.New("db down")}, f.store.Users, nil)
	if _, err := failing.Require(bearerRequest("t1")); err == nil || errors.Is(err, ErrUnauthenticated) {
		t.Errorf("storage failure must propagate, got %v", err)
	}
}

func TestToken_UsesExtractor(t *testing.T) {
	f := newFixture(nil)
	token, ok := f.resolver.Token(bearerRequest("abc"))
	if !ok || token != "abc" {
		t.Errorf("Token = (%q, %v), want (abc, true)", token, ok)
	}
}
