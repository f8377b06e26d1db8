package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository/memory"
)

// --- モック定義 ---

type mockProvider struct {
	exchangeFn func(ctx context.Context, handle string) (*ProviderSession, error)
}

func (m *mockProvider) Exchange(ctx context.Context, handle string) (*ProviderSession, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, handle)
	}
	return nil, ErrInvalidAuthorization
}

// staticProvider はハンドルごとに固定のセッションを返すプロバイダーを生成する。
func staticProvider(sessions map[string]*ProviderSession) *mockProvider {
	return &mockProvider{exchangeFn: func(_ context.Context, handle string) (*ProviderSession, error) {
		ps, ok := sessions[handle]
		if !ok {
			return nil, ErrInvalidAuthorization
		}
		copied := *ps
		return &copied, nil
	}}
}

var _ SessionDataProvider = (*mockProvider)(nil)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memory.Store
	clock    *clock
	service  *Service
	resolver *Resolver
}

func newFixture(provider SessionDataProvider) *fixture {
	c := &clock{now: time.Date(2024, 3, 1, 9, 30, 15, 500_000_000, time.UTC)}
	store := memory.NewStore(c.Now)
	return &fixture{
		store:    store,
		clock:    c,
		service:  NewService(provider, store.Users, store.Sessions, nil, ServiceConfig{Now: c.Now}),
		resolver: NewResolver(nil, store.Sessions, store.Users, nil),
	}
}

// bearerRequest はBearerトークン付きの要求を生成する。
func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// --- テスト ---

func TestBeginSession_CreatesUserAndSession(t *testing.T) {
	f := newFixture(staticProvider(map[string]*ProviderSession{
		"h1": {UserID: "u1", Email: "a@example.com", Name: "A", Token: "t1"},
	}))

	result, err := f.service.BeginSession(context.Background(), "h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.User.ID != "u1" || result.Token != "t1" {
		t.Errorf("unexpected result: %+v", result)
	}

	// 有効期限は秒未満を切り捨てた現在時刻から7日後
	wantExpiry := time.Date(2024, 3, 8, 9, 30, 15, 0, time.UTC)
	if !result.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", result.ExpiresAt, wantExpiry)
	}

	user, _ := f.store.Users.FindByID(context.Background(), "u1")
	if user == nil || user.Email != "a@example.com" {
		t.Fatalf("user not stored: %+v", user)
	}

	resolved, err := f.resolver.Resolve(bearerRequest("t1"))
	if err != nil || resolved == nil || resolved.ID != "u1" {
		t.Errorf("Resolve(t1) = (%+v, %v), want u1", resolved, err)
	}
}

func TestBeginSession_EmptyHandle(t *testing.T) {
	called := false
	f := newFixture(&mockProvider{exchangeFn: func(context.Context, string) (*ProviderSession, error) {
		called = true
		return nil, nil
	}})

	_, err := f.service.BeginSession(context.Background(), "")
	if !errors.Is(err, ErrMissingAuthorization) {
		t.Errorf("error = %v, want ErrMissingAuthorization", err)
	}
	if called {
		t.Error("provider must not be called for an empty handle")
	}
}

func TestBeginSession_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"拒否", ErrInvalidAuthorization, ErrInvalidAuthorization},
		{"通信障害", ErrExchangeUnavailable, ErrExchangeUnavailable},
		{"想定外のエラーは交換不能として扱う", errors.New("boom"), ErrExchangeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&mockProvider{exchangeFn: func(context.Context, string) (*ProviderSession, error) {
				return nil, tt.err
			}})

			_, err := f.service.BeginSession(context.Background(), "h1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if f.store.Sessions.Count() != 0 {
				t.Error("no session must be created on provider failure")
			}
		})
	}
}

// 2回目のログインで1回目のトークンが無効になること
func TestBeginSession_SupersedesPreviousSession(t *testing.T) {
	f := newFixture(staticProvider(map[string]*ProviderSession{
		"h1": {UserID: "u1", Email: "a@example.com", Name: "A", Token: "t1"},
		"h2": {UserID: "u1", Email: "a@example.com", Name: "A", Token: "t2"},
	}))
	ctx := context.Background()

	if _, err := f.service.BeginSession(ctx, "h1"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.service.BeginSession(ctx, "h2"); err != nil {
		t.Fatalf("second login: %v", err)
	}

	if u, _ := f.resolver.Resolve(bearerRequest("t1")); u != nil {
		t.Errorf("first token still resolves to %+v", u)
	}
	if u, _ := f.resolver.Resolve(bearerRequest("t2")); u == nil || u.ID != "u1" {
		t.Errorf("second token resolves to %+v, want u1", u)
	}
	if f.store.Sessions.Count() != 1 {
		t.Errorf("session count = %d, want 1", f.store.Sessions.Count())
	}
}

// 既存ユーザーのプロフィールはIdPの値で上書きされないこと
func TestBeginSession_ProfileIsSticky(t *testing.T) {
	f := newFixture(staticProvider(map[string]*ProviderSession{
		"h1": {UserID: "u1", Email: "old@example.com", Name: "Old", Token: "t1"},
		"h2": {UserID: "u1", Email: "new@example.com", Name: "New", Token: "t2"},
	}))
	ctx := context.Background()

	_, _ = f.service.BeginSession(ctx, "h1")
	result, err := f.service.BeginSession(ctx, "h2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.User.Email != "old@example.com" || result.User.Name != "Old" {
		t.Errorf("profile was overwritten: %+v", result.User)
	}
}

// 別ユーザーのログインは互いのセッションに影響しないこと
func TestBeginSession_OtherUsersUnaffected(t *testing.T) {
	f := newFixture(staticProvider(map[string]*ProviderSession{
		"h1": {UserID: "u1", Token: "t1"},
		"h2": {UserID: "u2", Token: "t2"},
	}))
	ctx := context.Background()

	_, _ = f.service.BeginSession(ctx, "h1")
	_, _ = f.service.BeginSession(ctx, "h2")

	if u, _ := f.resolver.Resolve(bearerRequest("t1")); u == nil || u.ID != "u1" {
		t.Errorf("t1 resolves to %+v, want u1", u)
	}
	if u, _ := f.resolver.Resolve(bearerRequest("t2")); u == nil || u.ID != "u2" {
		t.Errorf("t2 resolves to %+v, want u2", u)
	}
}

// 同時ログインでも、解決されるユーザーは常にトークンの発行対象であること
func TestBeginSession_ConcurrentLoginsNeverCrossUsers(t *testing.T) {
	handles := map[string]*ProviderSession{}
	for _, id := range []string{"a", "b", "c", "d"} {
		for i := range 5 {
			handle := id + string(rune('0'+i))
			handles[handle] = &ProviderSession{UserID: "user-" + id, Token: "token-" + handle}
		}
	}
	f := newFixture(staticProvider(handles))

	var wg sync.WaitGroup
	for handle := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.service.BeginSession(context.Background(), handle)
		}()
	}
	wg.Wait()

	for handle, ps := range handles {
		u, err := f.resolver.Resolve(bearerRequest(ps.Token))
		if err != nil {
			t.Fatalf("Resolve(%s): %v", handle, err)
		}
		if u != nil && u.ID != ps.UserID {
			t.Errorf("token %s resolved to %s, want %s", ps.Token, u.ID, ps.UserID)
		}
	}
}

func TestBeginSession_StorageFailure(t *testing.T) {
	f := newFixture(staticProvider(map[string]*ProviderSession{"h1": {UserID: "u1", Token: "t1"}}))
	f.service.users = &failingUserRepo{err: errors.New("db down")}

	_, err := f.service.BeginSession(context.Background(), "h1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrInvalidAuthorization) || errors.Is(err, ErrMissingAuthorization) {
		t.Errorf("storage failure must not be reported as a client error: %v", err)
	}
}

func TestEndSession(t *testing.T) {
	f := newFixture(staticProvider(map[string]*ProviderSession{"h1": {UserID: "u1", Token: "t1"}}))
	ctx := context.Background()
	_, _ = f.service.BeginSession(ctx, "h1")

	if err := f.service.EndSession(ctx, "t1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if u, _ := f.resolver.Resolve(bearerRequest("t1")); u != nil {
		t.Errorf("token still resolves after logout: %+v", u)
	}

	t.Run("2回目のログアウトも成功", func(t *testing.T) {
		if err := f.service.EndSession(ctx, "t1"); err != nil {
			t.Errorf("second EndSession: %v", err)
		}
	})
	t.Run("空トークンは何もしない", func(t *testing.T) {
		if err := f.service.EndSession(ctx, ""); err != nil {
			t.Errorf("EndSession(\"\"): %v", err)
		}
	})
}

type failingUserRepo struct {
	err error
}

func (r *failingUserRepo) FindByID(context.Context, string) (*model.User, error) {
	return nil, r.err
}

func (r *failingUserRepo) CreateIfAbsent(context.Context, *model.User) (bool, error) {
	return false, r.err
}
