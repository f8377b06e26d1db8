package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pumpbook/internal/auth"
	"github.com/hitoshi/pumpbook/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginSession(ctx context.Context, handle string) (*auth.LoginResult, error)
	EndSession(ctx context.Context, token string) error
}

// IdentityResolver はリクエストの資格情報からユーザーを解決するインターフェース。
// auth.Resolverが実装する。
type IdentityResolver interface {
	Token(r *http.Request) (string, bool)
	Resolve(r *http.Request) (*model.User, error)
	Require(r *http.Request) (*model.User, error)
}

// AuthHandler はセッション認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	resolver IdentityResolver
	cookie   auth.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, resolver IdentityResolver, cookie auth.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		resolver: resolver,
		cookie:   cookie,
	}
}

// CreateSession はIdPの認可ハンドルをセッションに交換する。
// POST /api/auth/session (X-Session-ID: <handle>)
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	handle := r.Header.Get(auth.SessionIDHeader)

	result, err := h.service.BeginSession(r.Context(), handle)
	switch {
	case errors.Is(err, auth.ErrMissingAuthorization):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewSessionIDRequiredError())
		return
	case errors.Is(err, auth.ErrInvalidAuthorization):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidSessionIDError())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "session creation failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	h.cookie.Set(w, result.Token)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:         toUserResponse(result.User),
		SessionToken: result.Token,
	})
}

// Logout はセッションを破棄する。セッションの有無や削除の成否にかかわらず200を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := h.resolver.Token(r); ok {
		if err := h.service.EndSession(r.Context(), token); err != nil {
			// 削除に失敗してもCookieはクリアする
			slog.ErrorContext(r.Context(), "failed to logout", slog.String("error", err.Error()))
		}
	}

	h.cookie.Clear(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolver.Require(r)
	if errors.Is(err, auth.ErrUnauthenticated) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
