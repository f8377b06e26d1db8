// Package security はIdPへの外部通信の保護と、利用者入力テキストの無害化を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard は外部サービスへのHTTP通信を保護する。
// IdPのセッション交換エンドポイント呼び出しに使用する。
type OutboundGuard struct {
	ports []int
}

// NewOutboundGuard はOutboundGuardを生成する。portsを省略した場合は80と443のみ許可する。
func NewOutboundGuard(ports ...int) *OutboundGuard {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	return &OutboundGuard{ports: ports}
}

// NewSafeClient は内部アドレスへの接続を拒否するHTTPクライアントを生成する。
// safeurlは名前解決後のIPアドレスをDialerで検査するため、DNS再バインディングも拒否される。
func (g *OutboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// deniedPrefixes は設定値の検証で拒否するアドレス範囲。
var deniedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ValidateURL は外部エンドポイントとして設定されたURLを名前解決せずに検証する。
// http/https以外のスキーム、空ホスト、localhost、内部アドレスのIPリテラルを拒否する。
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// ホスト名は接続時にNewSafeClient側で検査される
		return nil
	}
	addr = addr.Unmap()
	for _, p := range deniedPrefixes {
		if p.Contains(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
	}
	return nil
}
