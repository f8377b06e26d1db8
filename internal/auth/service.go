// Package auth はIdPとのセッション交換、セッションの発行と破棄、要求からの利用者解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pumpbook/internal/metrics"
	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// SessionTTL はセッションの有効期間。0の場合はDefaultSessionTTLを使用する。
	SessionTTL time.Duration
	// Now は現在時刻を返す。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Service はログインとログアウトのビジネスロジックを提供する。
type Service struct {
	provider SessionDataProvider
	users    repository.UserRepository
	sessions repository.SessionRepository
	metrics  metrics.Recorder
	ttl      time.Duration
	now      func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	provider SessionDataProvider,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	recorder metrics.Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		provider: provider,
		users:    users,
		sessions: sessions,
		metrics:  recorder,
		ttl:      config.SessionTTL,
		now:      config.Now,
	}
}

// BeginSession は認可ハンドルをIdPと交換し、ユーザーの新しいセッションを発行する。
// 既存ユーザーのプロフィールは更新せず、保存済みのプロフィールを返す。
// 発行前に同一ユーザーの既存セッションをすべて削除する。削除と作成は非トランザクションで、
// 同一ユーザーの同時ログインでは両方のセッションが残る可能性がある。
func (s *Service) BeginSession(ctx context.Context, handle string) (*LoginResult, error) {
	if handle == "" {
		s.metrics.RecordLogin(metrics.LoginRejected)
		return nil, ErrMissingAuthorization
	}

	start := time.Now()
	ps, err := s.provider.Exchange(ctx, handle)
	s.metrics.RecordExchangeLatency(time.Since(start))
	if err != nil {
		if errors.Is(err, ErrInvalidAuthorization) {
			s.metrics.RecordLogin(metrics.LoginRejected)
			return nil, err
		}
		s.metrics.RecordLogin(metrics.LoginError)
		if !errors.Is(err, ErrExchangeUnavailable) {
			err = fmt.Errorf("%w: %v", ErrExchangeUnavailable, err)
		}
		return nil, err
	}

	now := s.now()
	user, created, err := s.ensureUser(ctx, ps, now)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return nil, err
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     ps.Token,
		ExpiresAt: now.Truncate(time.Second).Add(s.ttl),
		CreatedAt: now,
	}

	if err := s.sessions.DeleteByUserID(ctx, user.ID); err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return nil, fmt.Errorf("failed to invalidate previous sessions: %w", err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("new_user", created),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return &LoginResult{
		User:      user,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// ensureUser はIdPのユーザーが未登録なら作成し、保存済みのユーザーを返す。
func (s *Service) ensureUser(ctx context.Context, ps *ProviderSession, now time.Time) (*model.User, bool, error) {
	candidate := &model.User{
		ID:        ps.UserID,
		Email:     ps.Email,
		Name:      ps.Name,
		Picture:   ps.Picture,
		CreatedAt: now,
	}

	created, err := s.users.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	if created {
		slog.Info("new user created", slog.String("user_id", candidate.ID))
		return candidate, true, nil
	}

	stored, err := s.users.FindByID(ctx, ps.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}
	if stored == nil {
		// CreateIfAbsentとFindByIDの間に削除された場合
		return candidate, false, nil
	}
	return stored, false, nil
}

// EndSession は指定トークンのセッションを削除する。
// 空トークンと未知のトークンはどちらも成功として扱う。
func (s *Service) EndSession(ctx context.Context, token string) error {
	s.metrics.RecordLogout()
	if token == "" {
		return nil
	}

	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}
