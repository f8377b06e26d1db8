// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/pumpbook/internal/middleware"
	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/record"
)

// maxRequestBodySize はJSONリクエストボディの上限サイズ。
const maxRequestBodySize = 1 << 20

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   *string   `json:"picture"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	User         userResponse `json:"user"`
	SessionToken string       `json:"session_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// createdResponse は記録作成時のレスポンス。
type createdResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type fuelSaleResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Date           string    `json:"date"`
	FuelType       string    `json:"fuel_type"`
	NozzleID       string    `json:"nozzle_id"`
	OpeningReading float64   `json:"opening_reading"`
	ClosingReading float64   `json:"closing_reading"`
	Liters         float64   `json:"liters"`
	Rate           float64   `json:"rate"`
	Amount         float64   `json:"amount"`
	CreatedAt      time.Time `json:"created_at"`
}

type creditSaleResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Date         string    `json:"date"`
	CustomerName string    `json:"customer_name"`
	Amount       float64   `json:"amount"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type incomeExpenseResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type fuelRateResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	FuelType  string    `json:"fuel_type"`
	Rate      float64   `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
}

type backupResponse struct {
	User           userResponse            `json:"user"`
	FuelSales      []fuelSaleResponse      `json:"fuel_sales"`
	CreditSales    []creditSaleResponse    `json:"credit_sales"`
	IncomeExpenses []incomeExpenseResponse `json:"income_expenses"`
	FuelRates      []fuelRateResponse      `json:"fuel_rates"`
	BackupDate     time.Time               `json:"backup_date"`
}

type statusCheckResponse struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Picture:   u.Picture,
		CreatedAt: u.CreatedAt,
	}
}

func toFuelSaleResponse(s *model.FuelSale) fuelSaleResponse {
	return fuelSaleResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		Date:           s.Date,
		FuelType:       s.FuelType,
		NozzleID:       s.NozzleID,
		OpeningReading: s.OpeningReading,
		ClosingReading: s.ClosingReading,
		Liters:         s.Liters,
		Rate:           s.Rate,
		Amount:         s.Amount,
		CreatedAt:      s.CreatedAt,
	}
}

func toCreditSaleResponse(s *model.CreditSale) creditSaleResponse {
	return creditSaleResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		Date:         s.Date,
		CustomerName: s.CustomerName,
		Amount:       s.Amount,
		Description:  s.Description,
		CreatedAt:    s.CreatedAt,
	}
}

func toIncomeExpenseResponse(e *model.IncomeExpense) incomeExpenseResponse {
	return incomeExpenseResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		Date:        e.Date,
		Type:        string(e.Type),
		Category:    e.Category,
		Amount:      e.Amount,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func toFuelRateResponse(fr *model.FuelRate) fuelRateResponse {
	return fuelRateResponse{
		ID:        fr.ID,
		UserID:    fr.UserID,
		Date:      fr.Date,
		FuelType:  fr.FuelType,
		Rate:      fr.Rate,
		CreatedAt: fr.CreatedAt,
	}
}

func toStatusCheckResponse(c *model.StatusCheck) statusCheckResponse {
	return statusCheckResponse{
		ID:         c.ID,
		ClientName: c.ClientName,
		Timestamp:  c.Timestamp,
	}
}

// mapSlice は一覧の各要素をレスポンス型に変換する。空の一覧は[]として出力する。
func mapSlice[T, R any](in []T, convert func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = convert(v)
	}
	return out
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをdstに読み込む。失敗した場合は400を書き込みfalseを返す。
// 未知のフィールドは無視する。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// requireUser は認証ミドルウェアが注入したユーザーを取得する。
// 存在しない場合は401を書き込みfalseを返す。
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return user, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *record.ValidationError
	if errors.As(err, &verr) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(verr.Field, verr.Reason))
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// 詳細はログのみに記録する
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeSessionIDRequired, model.ErrCodeInvalidSessionID,
		model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
