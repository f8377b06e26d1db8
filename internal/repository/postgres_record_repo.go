package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pumpbook/internal/model"
)

// PostgresFuelSaleRepo はPostgreSQLを使用した燃料販売記録リポジトリ。
type PostgresFuelSaleRepo struct {
	db *sql.DB
}

// NewPostgresFuelSaleRepo はPostgresFuelSaleRepoを生成する。
func NewPostgresFuelSaleRepo(db *sql.DB) *PostgresFuelSaleRepo {
	return &PostgresFuelSaleRepo{db: db}
}

// Create は燃料販売記録を作成する。
func (r *PostgresFuelSaleRepo) Create(ctx context.Context, s *model.FuelSale) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fuel_sales (id, user_id, date, fuel_type, nozzle_id, opening_reading,
		   closing_reading, liters, rate, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.Date, s.FuelType, s.NozzleID, s.OpeningReading,
		s.ClosingReading, s.Liters, s.Rate, s.Amount, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fuel sale: %w", err)
	}
	return nil
}

// List はユーザーの燃料販売記録を作成順に返す。
func (r *PostgresFuelSaleRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.FuelSale, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, fuel_type, nozzle_id, opening_reading,
		   closing_reading, liters, rate, amount, created_at
		 FROM fuel_sales
		 WHERE user_id = $1 AND ($2 = '' OR date = $2)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		filter.UserID, filter.Date, normalizeLimit(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel sales: %w", err)
	}
	defer rows.Close()

	sales := []*model.FuelSale{}
	for rows.Next() {
		s := &model.FuelSale{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.FuelType, &s.NozzleID, &s.OpeningReading,
			&s.ClosingReading, &s.Liters, &s.Rate, &s.Amount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fuel sale: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fuel sales: %w", err)
	}
	return sales, nil
}

// PostgresCreditSaleRepo はPostgreSQLを使用した掛け売り記録リポジトリ。
type PostgresCreditSaleRepo struct {
	db *sql.DB
}

// NewPostgresCreditSaleRepo はPostgresCreditSaleRepoを生成する。
func NewPostgresCreditSaleRepo(db *sql.DB) *PostgresCreditSaleRepo {
	return &PostgresCreditSaleRepo{db: db}
}

// Create は掛け売り記録を作成する。
func (r *PostgresCreditSaleRepo) Create(ctx context.Context, s *model.CreditSale) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credit_sales (id, user_id, date, customer_name, amount, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.Date, s.CustomerName, s.Amount, nullString(s.Description), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credit sale: %w", err)
	}
	return nil
}

// List はユーザーの掛け売り記録を作成順に返す。
func (r *PostgresCreditSaleRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.CreditSale, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, customer_name, amount, description, created_at
		 FROM credit_sales
		 WHERE user_id = $1 AND ($2 = '' OR date = $2)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		filter.UserID, filter.Date, normalizeLimit(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit sales: %w", err)
	}
	defer rows.Close()

	sales := []*model.CreditSale{}
	for rows.Next() {
		s := &model.CreditSale{}
		var description sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.CustomerName, &s.Amount, &description, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit sale: %w", err)
		}
		s.Description = stringPtr(description)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credit sales: %w", err)
	}
	return sales, nil
}

// PostgresIncomeExpenseRepo はPostgreSQLを使用した収入・支出記録リポジトリ。
type PostgresIncomeExpenseRepo struct {
	db *sql.DB
}

// NewPostgresIncomeExpenseRepo はPostgresIncomeExpenseRepoを生成する。
func NewPostgresIncomeExpenseRepo(db *sql.DB) *PostgresIncomeExpenseRepo {
	return &PostgresIncomeExpenseRepo{db: db}
}

// Create は収入・支出記録を作成する。
func (r *PostgresIncomeExpenseRepo) Create(ctx context.Context, e *model.IncomeExpense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO income_expenses (id, user_id, date, type, category, amount, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.Date, string(e.Type), e.Category, e.Amount, nullString(e.Description), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create income/expense record: %w", err)
	}
	return nil
}

// List はユーザーの収入・支出記録を作成順に返す。
func (r *PostgresIncomeExpenseRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.IncomeExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, type, category, amount, description, created_at
		 FROM income_expenses
		 WHERE user_id = $1 AND ($2 = '' OR date = $2)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		filter.UserID, filter.Date, normalizeLimit(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list income/expense records: %w", err)
	}
	defer rows.Close()

	records := []*model.IncomeExpense{}
	for rows.Next() {
		e := &model.IncomeExpense{}
		var entryType string
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &entryType, &e.Category, &e.Amount, &description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan income/expense record: %w", err)
		}
		e.Type = model.EntryType(entryType)
		e.Description = stringPtr(description)
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate income/expense records: %w", err)
	}
	return records, nil
}

// PostgresFuelRateRepo はPostgreSQLを使用した燃料単価リポジトリ。
type PostgresFuelRateRepo struct {
	db *sql.DB
}

// NewPostgresFuelRateRepo はPostgresFuelRateRepoを生成する。
func NewPostgresFuelRateRepo(db *sql.DB) *PostgresFuelRateRepo {
	return &PostgresFuelRateRepo{db: db}
}

// Create は燃料単価記録を作成する。
func (r *PostgresFuelRateRepo) Create(ctx context.Context, fr *model.FuelRate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fuel_rates (id, user_id, date, fuel_type, rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		fr.ID, fr.UserID, fr.Date, fr.FuelType, fr.Rate, fr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fuel rate: %w", err)
	}
	return nil
}

// List はユーザーの燃料単価記録を作成順に返す。
func (r *PostgresFuelRateRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.FuelRate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, fuel_type, rate, created_at
		 FROM fuel_rates
		 WHERE user_id = $1 AND ($2 = '' OR date = $2)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		filter.UserID, filter.Date, normalizeLimit(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel rates: %w", err)
	}
	defer rows.Close()

	rates := []*model.FuelRate{}
	for rows.Next() {
		fr := &model.FuelRate{}
		if err := rows.Scan(&fr.ID, &fr.UserID, &fr.Date, &fr.FuelType, &fr.Rate, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fuel rate: %w", err)
		}
		rates = append(rates, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fuel rates: %w", err)
	}
	return rates, nil
}

// PostgresStatusCheckRepo はPostgreSQLを使用した疎通確認記録リポジトリ。
type PostgresStatusCheckRepo struct {
	db *sql.DB
}

// NewPostgresStatusCheckRepo はPostgresStatusCheckRepoを生成する。
func NewPostgresStatusCheckRepo(db *sql.DB) *PostgresStatusCheckRepo {
	return &PostgresStatusCheckRepo{db: db}
}

// Create は疎通確認記録を作成する。
func (r *PostgresStatusCheckRepo) Create(ctx context.Context, c *model.StatusCheck) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO status_checks (id, client_name, timestamp) VALUES ($1, $2, $3)`,
		c.ID, c.ClientName, c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create status check: %w", err)
	}
	return nil
}

// List は疎通確認記録を古い順に返す。
func (r *PostgresStatusCheckRepo) List(ctx context.Context, limit int) ([]*model.StatusCheck, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, client_name, timestamp FROM status_checks ORDER BY timestamp ASC LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list status checks: %w", err)
	}
	defer rows.Close()

	checks := []*model.StatusCheck{}
	for rows.Next() {
		c := &model.StatusCheck{}
		if err := rows.Scan(&c.ID, &c.ClientName, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan status check: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status checks: %w", err)
	}
	return checks, nil
}

// postgresHealth は*sql.DBをHealthCheckerに適合させる。
type postgresHealth struct {
	db *sql.DB
}

// PingContext はデータベースへの疎通を確認する。
func (h postgresHealth) PingContext(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// NewPostgresStore はPostgreSQL接続からリポジトリ一式を構築する。
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Users:          NewPostgresUserRepo(db),
		Sessions:       NewPostgresSessionRepo(db),
		FuelSales:      NewPostgresFuelSaleRepo(db),
		CreditSales:    NewPostgresCreditSaleRepo(db),
		IncomeExpenses: NewPostgresIncomeExpenseRepo(db),
		FuelRates:      NewPostgresFuelRateRepo(db),
		StatusChecks:   NewPostgresStatusCheckRepo(db),
		Health:         postgresHealth{db: db},
		Close:          db.Close,
	}
}

// compile-time interface check
var (
	_ FuelSaleRepository      = (*PostgresFuelSaleRepo)(nil)
	_ CreditSaleRepository    = (*PostgresCreditSaleRepo)(nil)
	_ IncomeExpenseRepository = (*PostgresIncomeExpenseRepo)(nil)
	_ FuelRateRepository      = (*PostgresFuelRateRepo)(nil)
	_ StatusCheckRepository   = (*PostgresStatusCheckRepo)(nil)
)
