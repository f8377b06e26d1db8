package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/record"
)

// RecordServiceInterface は記録ハンドラーが必要とするサービスインターフェース。
// すべての操作は認証済みユーザーのIDに限定される。
type RecordServiceInterface interface {
	CreateFuelSale(ctx context.Context, userID string, in record.FuelSaleInput) (*model.FuelSale, error)
	ListFuelSales(ctx context.Context, userID, date string) ([]*model.FuelSale, error)
	CreateCreditSale(ctx context.Context, userID string, in record.CreditSaleInput) (*model.CreditSale, error)
	ListCreditSales(ctx context.Context, userID, date string) ([]*model.CreditSale, error)
	CreateIncomeExpense(ctx context.Context, userID string, in record.IncomeExpenseInput) (*model.IncomeExpense, error)
	ListIncomeExpenses(ctx context.Context, userID, date string) ([]*model.IncomeExpense, error)
	CreateFuelRate(ctx context.Context, userID string, in record.FuelRateInput) (*model.FuelRate, error)
	ListFuelRates(ctx context.Context, userID, date string) ([]*model.FuelRate, error)
	Backup(ctx context.Context, user *model.User) (*model.Backup, error)
}

// RecordHandler は業務記録のHTTPハンドラー。認証ミドルウェアの内側に配置する。
type RecordHandler struct {
	service RecordServiceInterface
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(service RecordServiceInterface) *RecordHandler {
	return &RecordHandler{service: service}
}

// listRecords は?date=で絞り込んだ一覧を返す共通処理。
func listRecords[T, R any](
	w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID, date string) ([]T, error),
	convert func(T) R,
) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	rows, err := list(r.Context(), user.ID, r.URL.Query().Get("date"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(rows, convert))
}

// createRecord はリクエストボディを入力型に読み込んで作成する共通処理。
// ボディ中のid, user_id, created_atは入力型に存在しないため無視される。
func createRecord[In, T any](
	w http.ResponseWriter, r *http.Request,
	create func(ctx context.Context, userID string, in In) (T, error),
	idOf func(T) string,
	message string,
) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in In
	if !decodeJSON(w, r, &in) {
		return
	}

	created, err := create(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createdResponse{Message: message, ID: idOf(created)})
}

// ListFuelSales は燃料販売記録の一覧を返す。
// GET /api/fuel-sales?date=YYYY-MM-DD
func (h *RecordHandler) ListFuelSales(w http.ResponseWriter, r *http.Request) {
	listRecords(w, r, h.service.ListFuelSales, toFuelSaleResponse)
}

// CreateFuelSale は燃料販売記録を作成する。
// POST /api/fuel-sales
func (h *RecordHandler) CreateFuelSale(w http.ResponseWriter, r *http.Request) {
	createRecord(w, r, h.service.CreateFuelSale,
		func(s *model.FuelSale) string { return s.ID }, "Fuel sale created")
}

// ListCreditSales は掛け売り記録の一覧を返す。
// GET /api/credit-sales?date=YYYY-MM-DD
func (h *RecordHandler) ListCreditSales(w http.ResponseWriter, r *http.Request) {
	listRecords(w, r, h.service.ListCreditSales, toCreditSaleResponse)
}

// CreateCreditSale は掛け売り記録を作成する。
// POST /api/credit-sales
func (h *RecordHandler) CreateCreditSale(w http.ResponseWriter, r *http.Request) {
	createRecord(w, r, h.service.CreateCreditSale,
		func(s *model.CreditSale) string { return s.ID }, "Credit sale created")
}

// ListIncomeExpenses は収入・支出記録の一覧を返す。
// GET /api/income-expenses?date=YYYY-MM-DD
func (h *RecordHandler) ListIncomeExpenses(w http.ResponseWriter, r *http.Request) {
	listRecords(w, r, h.service.ListIncomeExpenses, toIncomeExpenseResponse)
}

// CreateIncomeExpense は収入・支出記録を作成する。
// POST /api/income-expenses
func (h *RecordHandler) CreateIncomeExpense(w http.ResponseWriter, r *http.Request) {
	createRecord(w, r, h.service.CreateIncomeExpense,
		func(e *model.IncomeExpense) string { return e.ID }, "Income/expense record created")
}

// ListFuelRates は燃料単価記録の一覧を返す。
// GET /api/fuel-rates?date=YYYY-MM-DD
func (h *RecordHandler) ListFuelRates(w http.ResponseWriter, r *http.Request) {
	listRecords(w, r, h.service.ListFuelRates, toFuelRateResponse)
}

// CreateFuelRate は燃料単価記録を作成する。
// POST /api/fuel-rates
func (h *RecordHandler) CreateFuelRate(w http.ResponseWriter, r *http.Request) {
	createRecord(w, r, h.service.CreateFuelRate,
		func(fr *model.FuelRate) string { return fr.ID }, "Fuel rate created")
}

// Backup はユーザーの全記録のスナップショットを返す。
// POST /api/sync/backup
func (h *RecordHandler) Backup(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	backup, err := h.service.Backup(r.Context(), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, backupResponse{
		User:           toUserResponse(backup.User),
		FuelSales:      mapSlice(backup.FuelSales, toFuelSaleResponse),
		CreditSales:    mapSlice(backup.CreditSales, toCreditSaleResponse),
		IncomeExpenses: mapSlice(backup.IncomeExpenses, toIncomeExpenseResponse),
		FuelRates:      mapSlice(backup.FuelRates, toFuelRateResponse),
		BackupDate:     backup.BackupDate,
	})
}
