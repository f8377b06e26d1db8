package auth

import (
	"net/http"
	"time"

	"github.com/hitoshi/pumpbook/internal/credential"
)

// DefaultSessionTTL はセッションとクッキーの有効期間。
const DefaultSessionTTL = 7 * 24 * time.Hour

// CookieConfig はセッションクッキーの属性。
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int // 秒
}

// DefaultCookieConfig はクロスサイトのフロントエンドから送信できる既定のクッキー属性を返す。
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     credential.SessionCookieName,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(DefaultSessionTTL / time.Second),
	}
}

// Set はセッショントークンをHttpOnlyクッキーとして設定する。
func (c CookieConfig) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(token, c.MaxAge))
}

// Clear はセッションクッキーを削除する。
// ブラウザが同一クッキーとして扱うよう、Setと同じ属性で発行する。
func (c CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c CookieConfig) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}
