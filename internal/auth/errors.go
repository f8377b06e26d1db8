package auth

import "errors"

var (
	// ErrMissingAuthorization はログイン要求に認可ハンドルが含まれていないことを示す。
	ErrMissingAuthorization = errors.New("authorization handle is required")
	// ErrInvalidAuthorization はIdPが認可ハンドルを拒否したことを示す。
	ErrInvalidAuthorization = errors.New("authorization handle was rejected")
	// ErrExchangeUnavailable はIdPとの交換が通信障害や不正な応答で完了しなかったことを示す。
	ErrExchangeUnavailable = errors.New("identity provider exchange unavailable")
	// ErrUnauthenticated は有効なセッションを持たない要求であることを示す。
	// 資格情報なし・期限切れ・未知のトークンを区別しない。
	ErrUnauthenticated = errors.New("authentication required")
)
