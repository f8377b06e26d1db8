package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/pumpbook/internal/model"
)

// Redisのキー接頭辞
const (
	redisSessionPrefix     = "session:"
	redisUserSessionPrefix = "user_sessions:"
)

// redisSession はRedisに保存するセッションのJSON表現。
type redisSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"session_token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// session:<token> にセッション本体を、user_sessions:<user_id> にユーザーのトークン集合を保持する。
// キーのTTLはexpires_atまでの残り時間だが、取得時にも有効期限を再検査する。
type RedisSessionRepo struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.UniversalClient) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, now: time.Now}
}

func sessionKey(token string) string {
	return redisSessionPrefix + token
}

func userSessionsKey(userID string) string {
	return redisUserSessionPrefix + userID
}

// Create はセッションを保存する。既に期限切れのセッションは保存しない。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(redisSession{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	setKey := userSessionsKey(session.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.Token), data, ttl)
		pipe.SAdd(ctx, setKey, session.Token)
		pipe.Expire(ctx, setKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// get はトークンのセッションを期限にかかわらず取得する。存在しない場合はnilを返す。
func (r *RedisSessionRepo) get(ctx context.Context, token string) (*redisSession, error) {
	val, err := r.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s redisSession
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// FindLiveByToken は指定トークンのセッションを取得する。期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindLiveByToken(ctx context.Context, token string) (*model.Session, error) {
	s, err := r.get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	session := &model.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
	if !session.IsLive(r.now()) {
		return nil, nil
	}
	return session, nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
// 同じトークンが別ユーザーのセッションとして上書きされている場合、そのセッションは残す。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	tokens, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}
	return r.deleteUserTokens(ctx, userID, tokens)
}

// deleteUserTokens はtokensのセッションを削除し、トークン集合からもtokensだけを取り除く。
// 一覧取得後に並行ログインで追加されたトークンは集合に残り、次回のDeleteByUserIDで削除される。
func (r *RedisSessionRepo) deleteUserTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	for _, token := range tokens {
		s, err := r.get(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to delete user sessions: %w", err)
		}
		if s != nil && s.UserID == userID {
			if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
				return fmt.Errorf("failed to delete user sessions: %w", err)
			}
		}
	}

	members := make([]any, len(tokens))
	for i, token := range tokens {
		members[i] = token
	}
	if err := r.client.SRem(ctx, userSessionsKey(userID), members...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteByToken は指定トークンのセッションを削除する。
func (r *RedisSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	s, err := r.get(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if s == nil {
		return nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, userSessionsKey(s.UserID), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// redisHealth はRedisクライアントをHealthCheckerに適合させる。
type redisHealth struct {
	client redis.UniversalClient
}

// PingContext はRedisへの疎通を確認する。
func (h redisHealth) PingContext(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// WithRedisSessions はStoreのセッション保存先をRedisに差し替える。
// ヘルスチェックは元のストレージとRedisの両方を確認し、Closeは両方を閉じる。
func WithRedisSessions(store *Store, client redis.UniversalClient) *Store {
	base := store.Health
	baseClose := store.Close
	redisCheck := redisHealth{client: client}

	out := *store
	out.Sessions = NewRedisSessionRepo(client)
	out.Health = healthFunc(func(ctx context.Context) error {
		if base != nil {
			if err := base.PingContext(ctx); err != nil {
				return err
			}
		}
		return redisCheck.PingContext(ctx)
	})
	out.Close = func() error {
		var errs []error
		if baseClose != nil {
			errs = append(errs, baseClose())
		}
		errs = append(errs, client.Close())
		return errors.Join(errs...)
	}
	return &out
}

// healthFunc は関数をHealthCheckerとして扱うアダプタ。
type healthFunc func(ctx context.Context) error

// PingContext はf(ctx)を呼び出す。
func (f healthFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
