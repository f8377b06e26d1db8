package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pumpbook/internal/credential"
	"github.com/hitoshi/pumpbook/internal/metrics"
	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository"
)

// Resolver はHTTP要求の資格情報から利用者を解決する。
type Resolver struct {
	extractor credential.Extractor
	sessions  repository.SessionRepository
	users     repository.UserRepository
	metrics   metrics.Recorder
}

// NewResolver はResolverを生成する。extractorがnilの場合はcredential.Default()を使用する。
func NewResolver(
	extractor credential.Extractor,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	recorder metrics.Recorder,
) *Resolver {
	if extractor == nil {
		extractor = credential.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Resolver{
		extractor: extractor,
		sessions:  sessions,
		users:     users,
		metrics:   recorder,
	}
}

// Token は要求からセッショントークンを取り出す。
func (r *Resolver) Token(req *http.Request) (string, bool) {
	return r.extractor.Extract(req)
}

// Resolve は要求に対応する利用者を返す。
// トークンなし、未知または期限切れのトークン、ユーザーが存在しないセッションはすべてnil, nilを返す。
// エラーを返すのはストレージ障害の場合のみ。
func (r *Resolver) Resolve(req *http.Request) (*model.User, error) {
	token, ok := r.extractor.Extract(req)
	if !ok {
		r.metrics.RecordAuthResolve(metrics.ResolveAnonymous)
		return nil, nil
	}

	ctx := req.Context()
	session, err := r.sessions.FindLiveByToken(ctx, token)
	if err != nil {
		r.metrics.RecordAuthResolve(metrics.ResolveError)
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		r.metrics.RecordAuthResolve(metrics.ResolveAnonymous)
		return nil, nil
	}

	user, err := r.users.FindByID(ctx, session.UserID)
	if err != nil {
		r.metrics.RecordAuthResolve(metrics.ResolveError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.WarnContext(ctx, "session references missing user",
			slog.String("session_id", session.ID),
			slog.String("user_id", session.UserID),
		)
		r.metrics.RecordAuthResolve(metrics.ResolveAnonymous)
		return nil, nil
	}

	r.metrics.RecordAuthResolve(metrics.ResolveAuthenticated)
	return user, nil
}

// Require はResolveを呼び出し、利用者を解決できない場合はErrUnauthenticatedを返す。
func (r *Resolver) Require(req *http.Request) (*model.User, error) {
	user, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
