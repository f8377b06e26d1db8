// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess  = "success"
	LoginRejected = "rejected"
	LoginError    = "error"
)

// 認証解決結果のラベル値
const (
	ResolveAuthenticated = "authenticated"
	ResolveAnonymous     = "anonymous"
	ResolveError         = "error"
)

// Recorder はメトリクス記録のインターフェース。
// 認証サービス・記録サービス・HTTPミドルウェアから利用する。
type Recorder interface {
	RecordLogin(result string)
	RecordLogout()
	RecordAuthResolve(result string)
	RecordExchangeLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordRecordCreated(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	login           *prometheus.CounterVec
	logout          prometheus.Counter
	authResolve     *prometheus.CounterVec
	exchangeLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
	recordsCreated  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpbook_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		logout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pumpbook_logout_total",
			Help: "ログアウト要求の合計数",
		}),
		authResolve: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpbook_auth_resolve_total",
			Help: "結果別の認証解決数",
		}, []string{"result"}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pumpbook_exchange_latency_seconds",
			Help:    "IdPとのセッション交換のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpbook_records_created_total",
			Help: "種類別の作成された記録数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.login,
		c.logout,
		c.authResolve,
		c.exchangeLatency,
		c.httpStatus,
		c.recordsCreated,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.login.WithLabelValues(result).Inc()
}

// RecordLogout はログアウト要求を記録する。
func (c *Collector) RecordLogout() {
	c.logout.Inc()
}

// RecordAuthResolve は認証解決の結果を記録する。
func (c *Collector) RecordAuthResolve(result string) {
	c.authResolve.WithLabelValues(result).Inc()
}

// RecordExchangeLatency はIdPとの交換にかかった時間を記録する。
func (c *Collector) RecordExchangeLatency(duration time.Duration) {
	c.exchangeLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRecordCreated は作成された記録の種類を記録する。
func (c *Collector) RecordRecordCreated(kind string) {
	c.recordsCreated.WithLabelValues(kind).Inc()
}

// Nop は何も記録しないRecorder。
type Nop struct{}

func (Nop) RecordLogin(string)                  {}
func (Nop) RecordLogout()                       {}
func (Nop) RecordAuthResolve(string)            {}
func (Nop) RecordExchangeLatency(time.Duration) {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRecordCreated(string)          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
