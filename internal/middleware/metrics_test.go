package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/pumpbook/internal/metrics"
)

type statusCapture struct {
	metrics.Nop
	codes []int
}

func (s *statusCapture) RecordHTTPStatus(code int) {
	s.codes = append(s.codes, code)
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	capture := &statusCapture{}
	mw := NewMetricsMiddleware(capture)

	for _, code := range []int{http.StatusOK, http.StatusUnauthorized} {
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/", nil))
	}

	// WriteHeaderを呼ばずに書き込んだ場合は200
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/", nil))

	want := []int{200, 401, 200}
	if len(capture.codes) != len(want) {
		t.Fatalf("codes = %v, want %v", capture.codes, want)
	}
	for i := range want {
		if capture.codes[i] != want[i] {
			t.Errorf("codes[%d] = %d, want %d", i, capture.codes[i], want[i])
		}
	}
}

func TestMetricsMiddleware_NilRecorder(t *testing.T) {
	handler := NewMetricsMiddleware(nil)(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
