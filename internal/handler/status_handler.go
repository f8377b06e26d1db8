package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository"
)

// StatusHandler は認証不要の疎通確認記録とヘルスチェックのHTTPハンドラー。
type StatusHandler struct {
	checks repository.StatusCheckRepository
	health repository.HealthChecker
	now    func() time.Time
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(checks repository.StatusCheckRepository, health repository.HealthChecker) *StatusHandler {
	return &StatusHandler{
		checks: checks,
		health: health,
		now:    time.Now,
	}
}

type createStatusCheckRequest struct {
	ClientName *string `json:"client_name"`
}

// Root は疎通確認用の固定メッセージを返す。
// GET /api/
func (h *StatusHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hello World"})
}

// CreateStatusCheck は疎通確認記録を作成する。
// POST /api/status
func (h *StatusHandler) CreateStatusCheck(w http.ResponseWriter, r *http.Request) {
	var req createStatusCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientName == nil || strings.TrimSpace(*req.ClientName) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("client_name", "required"))
		return
	}

	check := &model.StatusCheck{
		ID:         uuid.New().String(),
		ClientName: strings.TrimSpace(*req.ClientName),
		Timestamp:  h.now(),
	}
	if err := h.checks.Create(r.Context(), check); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusCheckResponse(check))
}

// ListStatusChecks は疎通確認記録の一覧を返す。
// GET /api/status
func (h *StatusHandler) ListStatusChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.checks.List(r.Context(), repository.MaxListSize)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(checks, toStatusCheckResponse))
}

// Health はストレージへの疎通を確認する。
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.health.PingContext(ctx); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
