package model

import "time"

// RecordKind はテナント単位で保存される業務記録の種別を表す。
type RecordKind string

const (
	// RecordKindFuelSale は燃料販売の記録。
	RecordKindFuelSale RecordKind = "fuel_sales"
	// RecordKindCreditSale は掛け売りの記録。
	RecordKindCreditSale RecordKind = "credit_sales"
	// RecordKindIncomeExpense は収入・支出の記録。
	RecordKindIncomeExpense RecordKind = "income_expenses"
	// RecordKindFuelRate は燃料単価の記録。
	RecordKindFuelRate RecordKind = "fuel_rates"
)

// RecordKinds は全ての記録種別をバックアップ出力順に返す。
func RecordKinds() []RecordKind {
	return []RecordKind{
		RecordKindFuelSale,
		RecordKindCreditSale,
		RecordKindIncomeExpense,
		RecordKindFuelRate,
	}
}

// EntryType は収入・支出記録の区分。
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// FuelSale はノズルごとの燃料販売記録を表す。
type FuelSale struct {
	ID             string
	UserID         string
	Date           string // YYYY-MM-DD
	FuelType       string
	NozzleID       string
	OpeningReading float64
	ClosingReading float64
	Liters         float64
	Rate           float64
	Amount         float64
	CreatedAt      time.Time
}

// CreditSale は顧客への掛け売り記録を表す。
type CreditSale struct {
	ID           string
	UserID       string
	Date         string
	CustomerName string
	Amount       float64
	Description  *string
	CreatedAt    time.Time
}

// IncomeExpense は収入または支出の記録を表す。
type IncomeExpense struct {
	ID          string
	UserID      string
	Date        string
	Type        EntryType
	Category    string
	Amount      float64
	Description *string
	CreatedAt   time.Time
}

// FuelRate は日付ごとの燃料単価を表す。
type FuelRate struct {
	ID        string
	UserID    string
	Date      string
	FuelType  string
	Rate      float64
	CreatedAt time.Time
}

// RecordFilter は記録一覧の取得条件。
// UserIDは必須で、Dateが空の場合は日付で絞り込まない。
type RecordFilter struct {
	UserID string
	Date   string
	Limit  int
}

// Backup はユーザーの全業務記録をまとめたスナップショット。
type Backup struct {
	User           *User
	FuelSales      []*FuelSale
	CreditSales    []*CreditSale
	IncomeExpenses []*IncomeExpense
	FuelRates      []*FuelRate
	BackupDate     time.Time
}
