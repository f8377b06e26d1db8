package record

import (
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/security"
)

// DateLayout は記録の日付の形式。
const DateLayout = "2006-01-02"

// ValidationError は入力値の検証エラー。Fieldには不正なJSONフィールド名が入る。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// 入力の各フィールドはポインタで受け取り、未指定と0や空文字列を区別する。
// id, user_id, created_atは受け取らず、サーバー側で設定する。

// FuelSaleInput は燃料販売記録の作成要求。
type FuelSaleInput struct {
	Date           *string  `json:"date"`
	FuelType       *string  `json:"fuel_type"`
	NozzleID       *string  `json:"nozzle_id"`
	OpeningReading *float64 `json:"opening_reading"`
	ClosingReading *float64 `json:"closing_reading"`
	Liters         *float64 `json:"liters"`
	Rate           *float64 `json:"rate"`
	Amount         *float64 `json:"amount"`
}

// CreditSaleInput は掛け売り記録の作成要求。
type CreditSaleInput struct {
	Date         *string  `json:"date"`
	CustomerName *string  `json:"customer_name"`
	Amount       *float64 `json:"amount"`
	Description  *string  `json:"description"`
}

// IncomeExpenseInput は収入・支出記録の作成要求。
type IncomeExpenseInput struct {
	Date        *string  `json:"date"`
	Type        *string  `json:"type"`
	Category    *string  `json:"category"`
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
}

// FuelRateInput は燃料単価記録の作成要求。
type FuelRateInput struct {
	Date     *string  `json:"date"`
	FuelType *string  `json:"fuel_type"`
	Rate     *float64 `json:"rate"`
}

// fieldChecker は検証の最初のエラーを保持しながらフィールドを読み出す。
type fieldChecker struct {
	sanitizer *security.TextSanitizer
	err       error
}

func (c *fieldChecker) date(field string, v *string) string {
	if c.err != nil {
		return ""
	}
	if v == nil {
		c.err = invalid(field, "required")
		return ""
	}
	if _, err := time.Parse(DateLayout, *v); err != nil {
		c.err = invalid(field, "must be YYYY-MM-DD")
		return ""
	}
	return *v
}

func (c *fieldChecker) text(field string, v *string) string {
	if c.err != nil {
		return ""
	}
	if v == nil {
		c.err = invalid(field, "required")
		return ""
	}
	cleaned := c.sanitizer.Clean(*v)
	if cleaned == "" {
		c.err = invalid(field, "must not be empty")
	}
	return cleaned
}

func (c *fieldChecker) amount(field string, v *float64) float64 {
	if c.err != nil {
		return 0
	}
	if v == nil {
		c.err = invalid(field, "required")
		return 0
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		c.err = invalid(field, "must be a non-negative number")
		return 0
	}
	return *v
}

func (c *fieldChecker) entryType(field string, v *string) model.EntryType {
	if c.err != nil {
		return ""
	}
	if v == nil {
		c.err = invalid(field, "required")
		return ""
	}
	switch t := model.EntryType(*v); t {
	case model.EntryTypeIncome, model.EntryTypeExpense:
		return t
	default:
		c.err = invalid(field, "must be income or expense")
		return ""
	}
}
