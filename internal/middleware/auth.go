// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pumpbook/internal/auth"
	"github.com/hitoshi/pumpbook/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey         = contextKey("user")
	requestStateContextKey = contextKey("request_state")
)

// UserRequirer は認証済みユーザーの解決に必要なインターフェース。
// auth.Resolverが実装する。
type UserRequirer interface {
	Require(r *http.Request) (*model.User, error)
}

// NewAuthMiddleware はリクエストの認証情報からユーザーを解決するミドルウェアを返す。
// 解決できない場合は401、ストレージ障害の場合は500を返す。
// 認証済みユーザーはリクエストコンテキストに注入する。
func NewAuthMiddleware(requirer UserRequirer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := requirer.Require(r)
			if errors.Is(err, auth.ErrUnauthenticated) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to resolve user",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// 外側のロギングミドルウェアにもユーザーIDを伝える
			if state, ok := r.Context().Value(requestStateContextKey).(*requestState); ok {
				state.userID = user.ID
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ値が入る。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// requestState はミドルウェア間で共有するリクエスト単位の可変状態。
type requestState struct {
	userID string
}
