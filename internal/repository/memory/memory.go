// Package memory はプロセス内メモリに保持するリポジトリ実装を提供する。
// STORAGE_DRIVER=memory での起動とテストで使用する。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository"
)

// UserRepo はメモリ上のユーザーリポジトリ。
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewUserRepo はUserRepoを生成する。
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]model.User)}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// CreateIfAbsent は同一IDのユーザーが存在しない場合のみ作成する。
func (r *UserRepo) CreateIfAbsent(_ context.Context, user *model.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return false, nil
	}
	r.users[user.ID] = *user
	return true, nil
}

// Delete はユーザーを削除する。セッションだけが残った状態を作るために使用する。
func (r *UserRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// SessionRepo はメモリ上のセッションリポジトリ。
// 同一トークンの重複を許し、取得時は最も新しいものを返す。
type SessionRepo struct {
	mu       sync.RWMutex
	sessions []model.Session
	now      func() time.Time
}

// NewSessionRepo はSessionRepoを生成する。nowがnilの場合はtime.Nowを使用する。
func NewSessionRepo(now func() time.Time) *SessionRepo {
	if now == nil {
		now = time.Now
	}
	return &SessionRepo{now: now}
}

// Create はセッションを追加する。
func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, *session)
	return nil
}

// FindLiveByToken は指定トークンの有効なセッションを取得する。
func (r *SessionRepo) FindLiveByToken(_ context.Context, token string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var found *model.Session
	for i := range r.sessions {
		s := r.sessions[i]
		if s.Token != token || !s.IsLive(now) {
			continue
		}
		if found == nil || !s.CreatedAt.Before(found.CreatedAt) {
			found = &s
		}
	}
	return found, nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = filterSessions(r.sessions, func(s model.Session) bool { return s.UserID != userID })
	return nil
}

// DeleteByToken は指定トークンの全セッションを削除する。
func (r *SessionRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = filterSessions(r.sessions, func(s model.Session) bool { return s.Token != token })
	return nil
}

// Count は保持しているセッション数を返す。期限切れも含む。
func (r *SessionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func filterSessions(in []model.Session, keep func(model.Session) bool) []model.Session {
	out := in[:0]
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// recordTable はユーザーごとの記録を作成順に保持する汎用テーブル。
type recordTable[T any] struct {
	mu     sync.RWMutex
	rows   []T
	userID func(T) string
	dateOf func(T) string
}

func (t *recordTable[T]) insert(row T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, row)
}

func (t *recordTable[T]) list(filter model.RecordFilter) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 || limit > repository.MaxListSize {
		limit = repository.MaxListSize
	}

	out := []T{}
	for _, row := range t.rows {
		if t.userID(row) != filter.UserID {
			continue
		}
		if filter.Date != "" && t.dateOf(row) != filter.Date {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out
}

// FuelSaleRepo はメモリ上の燃料販売記録リポジトリ。
type FuelSaleRepo struct {
	table recordTable[model.FuelSale]
}

// NewFuelSaleRepo はFuelSaleRepoを生成する。
func NewFuelSaleRepo() *FuelSaleRepo {
	return &FuelSaleRepo{table: recordTable[model.FuelSale]{
		userID: func(s model.FuelSale) string { return s.UserID },
		dateOf: func(s model.FuelSale) string { return s.Date },
	}}
}

func (r *FuelSaleRepo) Create(_ context.Context, sale *model.FuelSale) error {
	r.table.insert(*sale)
	return nil
}

func (r *FuelSaleRepo) List(_ context.Context, filter model.RecordFilter) ([]*model.FuelSale, error) {
	return pointers(r.table.list(filter)), nil
}

// CreditSaleRepo はメモリ上の掛け売り記録リポジトリ。
type CreditSaleRepo struct {
	table recordTable[model.CreditSale]
}

// NewCreditSaleRepo はCreditSaleRepoを生成する。
func NewCreditSaleRepo() *CreditSaleRepo {
	return &CreditSaleRepo{table: recordTable[model.CreditSale]{
		userID: func(s model.CreditSale) string { return s.UserID },
		dateOf: func(s model.CreditSale) string { return s.Date },
	}}
}

func (r *CreditSaleRepo) Create(_ context.Context, sale *model.CreditSale) error {
	r.table.insert(*sale)
	return nil
}

func (r *CreditSaleRepo) List(_ context.Context, filter model.RecordFilter) ([]*model.CreditSale, error) {
	return pointers(r.table.list(filter)), nil
}

// IncomeExpenseRepo はメモリ上の収入・支出記録リポジトリ。
type IncomeExpenseRepo struct {
	table recordTable[model.IncomeExpense]
}

// NewIncomeExpenseRepo はIncomeExpenseRepoを生成する。
func NewIncomeExpenseRepo() *IncomeExpenseRepo {
	return &IncomeExpenseRepo{table: recordTable[model.IncomeExpense]{
		userID: func(e model.IncomeExpense) string { return e.UserID },
		dateOf: func(e model.IncomeExpense) string { return e.Date },
	}}
}

func (r *IncomeExpenseRepo) Create(_ context.Context, record *model.IncomeExpense) error {
	r.table.insert(*record)
	return nil
}

func (r *IncomeExpenseRepo) List(_ context.Context, filter model.RecordFilter) ([]*model.IncomeExpense, error) {
	return pointers(r.table.list(filter)), nil
}

// FuelRateRepo はメモリ上の燃料単価リポジトリ。
type FuelRateRepo struct {
	table recordTable[model.FuelRate]
}

// NewFuelRateRepo はFuelRateRepoを生成する。
func NewFuelRateRepo() *FuelRateRepo {
	return &FuelRateRepo{table: recordTable[model.FuelRate]{
		userID: func(fr model.FuelRate) string { return fr.UserID },
		dateOf: func(fr model.FuelRate) string { return fr.Date },
	}}
}

func (r *FuelRateRepo) Create(_ context.Context, rate *model.FuelRate) error {
	r.table.insert(*rate)
	return nil
}

func (r *FuelRateRepo) List(_ context.Context, filter model.RecordFilter) ([]*model.FuelRate, error) {
	return pointers(r.table.list(filter)), nil
}

// StatusCheckRepo はメモリ上の疎通確認記録リポジトリ。
type StatusCheckRepo struct {
	mu     sync.RWMutex
	checks []model.StatusCheck
}

// NewStatusCheckRepo はStatusCheckRepoを生成する。
func NewStatusCheckRepo() *StatusCheckRepo {
	return &StatusCheckRepo{}
}

func (r *StatusCheckRepo) Create(_ context.Context, check *model.StatusCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, *check)
	return nil
}

func (r *StatusCheckRepo) List(_ context.Context, limit int) ([]*model.StatusCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > repository.MaxListSize {
		limit = repository.MaxListSize
	}
	n := min(limit, len(r.checks))
	return pointers(r.checks[:n]), nil
}

func pointers[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		row := rows[i]
		out[i] = &row
	}
	return out
}

type alwaysHealthy struct{}

func (alwaysHealthy) PingContext(context.Context) error { return nil }

// Store はメモリ実装のリポジトリ一式。
// テストから個別のリポジトリを直接操作できるよう具象型で保持する。
type Store struct {
	Users          *UserRepo
	Sessions       *SessionRepo
	FuelSales      *FuelSaleRepo
	CreditSales    *CreditSaleRepo
	IncomeExpenses *IncomeExpenseRepo
	FuelRates      *FuelRateRepo
	StatusChecks   *StatusCheckRepo
}

// NewStore は空のメモリストアを生成する。nowはセッションの有効期限判定に使用する。
func NewStore(now func() time.Time) *Store {
	return &Store{
		Users:          NewUserRepo(),
		Sessions:       NewSessionRepo(now),
		FuelSales:      NewFuelSaleRepo(),
		CreditSales:    NewCreditSaleRepo(),
		IncomeExpenses: NewIncomeExpenseRepo(),
		FuelRates:      NewFuelRateRepo(),
		StatusChecks:   NewStatusCheckRepo(),
	}
}

// Repositories はrepository.Storeに変換する。
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:          s.Users,
		Sessions:       s.Sessions,
		FuelSales:      s.FuelSales,
		CreditSales:    s.CreditSales,
		IncomeExpenses: s.IncomeExpenses,
		FuelRates:      s.FuelRates,
		StatusChecks:   s.StatusChecks,
		Health:         alwaysHealthy{},
		Close:          func() error { return nil },
	}
}

// compile-time interface check
var (
	_ repository.UserRepository          = (*UserRepo)(nil)
	_ repository.SessionRepository       = (*SessionRepo)(nil)
	_ repository.FuelSaleRepository      = (*FuelSaleRepo)(nil)
	_ repository.CreditSaleRepository    = (*CreditSaleRepo)(nil)
	_ repository.IncomeExpenseRepository = (*IncomeExpenseRepo)(nil)
	_ repository.FuelRateRepository      = (*FuelRateRepo)(nil)
	_ repository.StatusCheckRepository   = (*StatusCheckRepo)(nil)
)
