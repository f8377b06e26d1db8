// Package record はテナント単位の業務記録の作成・一覧取得とバックアップを提供する。
package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pumpbook/internal/metrics"
	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository"
	"github.com/hitoshi/pumpbook/internal/security"
)

// Repositories は記録サービスが使用するリポジトリ。
type Repositories struct {
	FuelSales      repository.FuelSaleRepository
	CreditSales    repository.CreditSaleRepository
	IncomeExpenses repository.IncomeExpenseRepository
	FuelRates      repository.FuelRateRepository
}

// Service は業務記録のビジネスロジックを提供する。
// すべての操作は呼び出し元が解決済みのユーザーIDに限定される。
type Service struct {
	repos     Repositories
	sanitizer *security.TextSanitizer
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repos Repositories, sanitizer *security.TextSanitizer, recorder metrics.Recorder) *Service {
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repos:     repos,
		sanitizer: sanitizer,
		metrics:   recorder,
		now:       time.Now,
	}
}

func (s *Service) checker() *fieldChecker {
	return &fieldChecker{sanitizer: s.sanitizer}
}

// CreateFuelSale は燃料販売記録を検証して保存する。
func (s *Service) CreateFuelSale(ctx context.Context, userID string, in FuelSaleInput) (*model.FuelSale, error) {
	c := s.checker()
	sale := &model.FuelSale{
		Date:           c.date("date", in.Date),
		FuelType:       c.text("fuel_type", in.FuelType),
		NozzleID:       c.text("nozzle_id", in.NozzleID),
		OpeningReading: c.amount("opening_reading", in.OpeningReading),
		ClosingReading: c.amount("closing_reading", in.ClosingReading),
		Liters:         c.amount("liters", in.Liters),
		Rate:           c.amount("rate", in.Rate),
		Amount:         c.amount("amount", in.Amount),
	}
	if c.err != nil {
		return nil, c.err
	}
	if sale.ClosingReading < sale.OpeningReading {
		return nil, invalid("closing_reading", "must not be less than opening_reading")
	}

	sale.ID = uuid.New().String()
	sale.UserID = userID
	sale.CreatedAt = s.now()

	if err := s.repos.FuelSales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to save fuel sale: %w", err)
	}
	s.metrics.RecordRecordCreated(string(model.RecordKindFuelSale))
	return sale, nil
}

// ListFuelSales はユーザーの燃料販売記録を返す。dateが空の場合は全日付を対象とする。
func (s *Service) ListFuelSales(ctx context.Context, userID, date string) ([]*model.FuelSale, error) {
	sales, err := s.repos.FuelSales.List(ctx, model.RecordFilter{UserID: userID, Date: date, Limit: repository.MaxListSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel sales: %w", err)
	}
	return sales, nil
}

// CreateCreditSale は掛け売り記録を検証して保存する。
func (s *Service) CreateCreditSale(ctx context.Context, userID string, in CreditSaleInput) (*model.CreditSale, error) {
	c := s.checker()
	sale := &model.CreditSale{
		Date:         c.date("date", in.Date),
		CustomerName: c.text("customer_name", in.CustomerName),
		Amount:       c.amount("amount", in.Amount),
		Description:  s.sanitizer.CleanOptional(in.Description),
	}
	if c.err != nil {
		return nil, c.err
	}

	sale.ID = uuid.New().String()
	sale.UserID = userID
	sale.CreatedAt = s.now()

	if err := s.repos.CreditSales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to save credit sale: %w", err)
	}
	s.metrics.RecordRecordCreated(string(model.RecordKindCreditSale))
	return sale, nil
}

// ListCreditSales はユーザーの掛け売り記録を返す。
func (s *Service) ListCreditSales(ctx context.Context, userID, date string) ([]*model.CreditSale, error) {
	sales, err := s.repos.CreditSales.List(ctx, model.RecordFilter{UserID: userID, Date: date, Limit: repository.MaxListSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list credit sales: %w", err)
	}
	return sales, nil
}

// CreateIncomeExpense は収入・支出記録を検証して保存する。
func (s *Service) CreateIncomeExpense(ctx context.Context, userID string, in IncomeExpenseInput) (*model.IncomeExpense, error) {
	c := s.checker()
	entry := &model.IncomeExpense{
		Date:        c.date("date", in.Date),
		Type:        c.entryType("type", in.Type),
		Category:    c.text("category", in.Category),
		Amount:      c.amount("amount", in.Amount),
		Description: s.sanitizer.CleanOptional(in.Description),
	}
	if c.err != nil {
		return nil, c.err
	}

	entry.ID = uuid.New().String()
	entry.UserID = userID
	entry.CreatedAt = s.now()

	if err := s.repos.IncomeExpenses.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save income/expense record: %w", err)
	}
	s.metrics.RecordRecordCreated(string(model.RecordKindIncomeExpense))
	return entry, nil
}

// ListIncomeExpenses はユーザーの収入・支出記録を返す。
func (s *Service) ListIncomeExpenses(ctx context.Context, userID, date string) ([]*model.IncomeExpense, error) {
	entries, err := s.repos.IncomeExpenses.List(ctx, model.RecordFilter{UserID: userID, Date: date, Limit: repository.MaxListSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list income/expense records: %w", err)
	}
	return entries, nil
}

// CreateFuelRate は燃料単価記録を検証して保存する。
func (s *Service) CreateFuelRate(ctx context.Context, userID string, in FuelRateInput) (*model.FuelRate, error) {
	c := s.checker()
	rate := &model.FuelRate{
		Date:     c.date("date", in.Date),
		FuelType: c.text("fuel_type", in.FuelType),
		Rate:     c.amount("rate", in.Rate),
	}
	if c.err != nil {
		return nil, c.err
	}

	rate.ID = uuid.New().String()
	rate.UserID = userID
	rate.CreatedAt = s.now()

	if err := s.repos.FuelRates.Create(ctx, rate); err != nil {
		return nil, fmt.Errorf("failed to save fuel rate: %w", err)
	}
	s.metrics.RecordRecordCreated(string(model.RecordKindFuelRate))
	return rate, nil
}

// ListFuelRates はユーザーの燃料単価記録を返す。
func (s *Service) ListFuelRates(ctx context.Context, userID, date string) ([]*model.FuelRate, error) {
	rates, err := s.repos.FuelRates.List(ctx, model.RecordFilter{UserID: userID, Date: date, Limit: repository.MaxListSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel rates: %w", err)
	}
	return rates, nil
}

// Backup はユーザーの全種別の記録を1件のスナップショットにまとめる。
// 各種別は一覧取得と同じく最大MaxListSize件。
func (s *Service) Backup(ctx context.Context, user *model.User) (*model.Backup, error) {
	backup := &model.Backup{User: user}
	var err error

	if backup.FuelSales, err = s.ListFuelSales(ctx, user.ID, ""); err != nil {
		return nil, err
	}
	if backup.CreditSales, err = s.ListCreditSales(ctx, user.ID, ""); err != nil {
		return nil, err
	}
	if backup.IncomeExpenses, err = s.ListIncomeExpenses(ctx, user.ID, ""); err != nil {
		return nil, err
	}
	if backup.FuelRates, err = s.ListFuelRates(ctx, user.ID, ""); err != nil {
		return nil, err
	}

	backup.BackupDate = s.now()
	return backup, nil
}
