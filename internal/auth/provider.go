package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultProviderSessionURL はIdPのセッション交換エンドポイント。
const DefaultProviderSessionURL = "https://demobackend.emergentagent.com/auth/v1/env/oauth/session-data"

// SessionIDHeader は認可ハンドルを渡すリクエストヘッダー名。
// ログイン要求とIdPへの交換要求の両方で使用する。
const SessionIDHeader = "X-Session-ID"

// maxProviderResponseSize はIdP応答として読み込む最大バイト数。
const maxProviderResponseSize = 1 << 20

// ProviderSession はIdPとの交換で得られるユーザー情報とセッショントークン。
type ProviderSession struct {
	UserID  string
	Email   string
	Name    string
	Picture *string
	Token   string
}

// SessionDataProvider は認可ハンドルをユーザー情報とセッショントークンに交換する。
type SessionDataProvider interface {
	Exchange(ctx context.Context, handle string) (*ProviderSession, error)
}

// ProviderConfig はEmergentProviderの設定。
type ProviderConfig struct {
	// URL はセッション交換エンドポイント。空の場合はDefaultProviderSessionURLを使用する。
	URL string
	// Client は交換に使用するHTTPクライアント。タイムアウトはクライアント側で設定する。
	Client *http.Client
}

// EmergentProvider はEmergent AuthのセッションデータAPIを呼び出すSessionDataProvider。
// リトライは行わない。
type EmergentProvider struct {
	url    string
	client *http.Client
}

// NewEmergentProvider はEmergentProviderを生成する。
func NewEmergentProvider(config ProviderConfig) *EmergentProvider {
	if config.URL == "" {
		config.URL = DefaultProviderSessionURL
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	return &EmergentProvider{url: config.URL, client: config.Client}
}

// sessionDataResponse はセッションデータAPIのレスポンス。
type sessionDataResponse struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Picture      *string `json:"picture"`
	SessionToken string  `json:"session_token"`
}

// Exchange は認可ハンドルをX-Session-IDヘッダーで送信し、ユーザー情報を取得する。
// 2xx以外の応答はErrInvalidAuthorization、通信失敗や不正な応答はErrExchangeUnavailableを返す。
func (p *EmergentProvider) Exchange(ctx context.Context, handle string) (*ProviderSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrExchangeUnavailable, err)
	}
	req.Header.Set(SessionIDHeader, handle)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrExchangeUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrExchangeUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: provider responded with status %d", ErrInvalidAuthorization, resp.StatusCode)
	}

	var data sessionDataResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrExchangeUnavailable, err)
	}
	if data.ID == "" || data.SessionToken == "" {
		return nil, fmt.Errorf("%w: response is missing id or session_token", ErrExchangeUnavailable)
	}

	return &ProviderSession{
		UserID:  data.ID,
		Email:   data.Email,
		Name:    data.Name,
		Picture: data.Picture,
		Token:   data.SessionToken,
	}, nil
}

// compile-time interface check
var _ SessionDataProvider = (*EmergentProvider)(nil)
