// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/pumpbook/internal/model"
)

// MaxListSize は一覧取得で返す最大件数。
const MaxListSize = 1000

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateIfAbsent は同一IDのユーザーが存在しない場合のみ作成する。
	// 既存ユーザーのプロフィールは上書きしない。作成した場合はtrueを返す。
	CreateIfAbsent(ctx context.Context, user *model.User) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。トークンの一意性は検査しない。
	Create(ctx context.Context, session *model.Session) error
	// FindLiveByToken は指定トークンのセッションを取得する。
	// 存在しない場合と期限切れの場合はどちらもnilを返す。
	FindLiveByToken(ctx context.Context, token string) (*model.Session, error)
	// DeleteByUserID は指定ユーザーの全セッションを削除する。存在しなくてもエラーにしない。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteByToken は指定トークンのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByToken(ctx context.Context, token string) error
}

// FuelSaleRepository は燃料販売記録の永続化インターフェース。
type FuelSaleRepository interface {
	Create(ctx context.Context, sale *model.FuelSale) error
	// List はfilter.UserIDの記録のみを作成順に返す。
	List(ctx context.Context, filter model.RecordFilter) ([]*model.FuelSale, error)
}

// CreditSaleRepository は掛け売り記録の永続化インターフェース。
type CreditSaleRepository interface {
	Create(ctx context.Context, sale *model.CreditSale) error
	List(ctx context.Context, filter model.RecordFilter) ([]*model.CreditSale, error)
}

// IncomeExpenseRepository は収入・支出記録の永続化インターフェース。
type IncomeExpenseRepository interface {
	Create(ctx context.Context, record *model.IncomeExpense) error
	List(ctx context.Context, filter model.RecordFilter) ([]*model.IncomeExpense, error)
}

// FuelRateRepository は燃料単価記録の永続化インターフェース。
type FuelRateRepository interface {
	Create(ctx context.Context, rate *model.FuelRate) error
	List(ctx context.Context, filter model.RecordFilter) ([]*model.FuelRate, error)
}

// StatusCheckRepository は疎通確認記録の永続化インターフェース。
type StatusCheckRepository interface {
	Create(ctx context.Context, check *model.StatusCheck) error
	List(ctx context.Context, limit int) ([]*model.StatusCheck, error)
}

// HealthChecker はストレージの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Store はストレージドライバーごとに構築されるリポジトリ一式。
// Closeはプロセス終了時に1回だけ呼び出す。
type Store struct {
	Users          UserRepository
	Sessions       SessionRepository
	FuelSales      FuelSaleRepository
	CreditSales    CreditSaleRepository
	IncomeExpenses IncomeExpenseRepository
	FuelRates      FuelRateRepository
	StatusChecks   StatusCheckRepository
	Health         HealthChecker
	Close          func() error
}

// normalizeLimit は一覧取得件数を1からMaxListSizeの範囲に収める。
func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxListSize {
		return MaxListSize
	}
	return limit
}
