// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IdPが発行したIDで識別される利用ユーザーを表す。
// IDはIdPから受け取った値をそのまま主キーとして使い、ローカルでは採番しない。
type User struct {
	ID        string
	Email     string
	Name      string
	Picture   *string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// IDはレコードキーであり、認証情報そのものはIdPが発行したTokenである。
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsLive は指定時刻においてセッションが有効期限内かを返す。
// ExpiresAtがatより厳密に後の場合のみ有効とみなす。
func (s *Session) IsLive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// StatusCheck は疎通確認用のステータス記録を表す。ユーザーには紐付かない。
type StatusCheck struct {
	ID         string
	ClientName string
	Timestamp  time.Time
}
