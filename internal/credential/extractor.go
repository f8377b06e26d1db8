// Package credential はリクエストからセッショントークンを取り出す抽出戦略を提供する。
//
// 抽出戦略は優先順位付きのChainとして組み合わせる。Default()は
// Cookie → Authorization: Bearer の順で評価し、Cookieに値がある限りヘッダーは参照しない。
package credential

import (
	"net/http"
	"strings"
)

// SessionCookieName はセッショントークンを運ぶCookie名。
const SessionCookieName = "session_token"

const bearerPrefix = "Bearer "

// Extractor はリクエストからセッショントークンを取り出す戦略のインターフェース。
// トークンの形式は検証せず、値が存在するかどうかのみを判定する。
type Extractor interface {
	// Extract はトークンと、値が見つかったかどうかを返す。
	Extract(r *http.Request) (string, bool)
}

// CookieExtractor は指定名のCookieからトークンを取り出す。
type CookieExtractor struct {
	Name string
}

// Extract はCookieの値を返す。Cookieが無いか値が空の場合は見つからなかったとみなす。
func (e CookieExtractor) Extract(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(e.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// BearerExtractor はAuthorizationヘッダーのBearerスキームからトークンを取り出す。
type BearerExtractor struct{}

// Extract は"Bearer "プレフィックスを取り除いた値を返す。
// プレフィックスが無い場合や残りが空の場合は見つからなかったとみなす。
func (BearerExtractor) Extract(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// Chain は抽出戦略を先頭から順に試し、最初に見つかった値を返す。
type Chain []Extractor

// Extract はChainの各戦略を順に評価する。
func (c Chain) Extract(r *http.Request) (string, bool) {
	for _, e := range c {
		if token, ok := e.Extract(r); ok {
			return token, true
		}
	}
	return "", false
}

// Default はCookie優先、次にBearerヘッダーという標準の抽出順を返す。
func Default() Chain {
	return Chain{
		CookieExtractor{Name: SessionCookieName},
		BearerExtractor{},
	}
}

// compile-time interface check
var (
	_ Extractor = CookieExtractor{}
	_ Extractor = BearerExtractor{}
	_ Extractor = Chain(nil)
)
