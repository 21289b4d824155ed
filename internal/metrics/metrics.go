// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証操作・ルートガード・プロビジョニング・HTTPハンドラーから利用する。
type MetricsCollector interface {
	RecordAuthOperation(op, result string)
	RecordAuthLatency(op string, duration time.Duration)
	RecordGuardRedirect(target string)
	RecordProvisioning(result string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOps      *prometheus.CounterVec
	authLatency  *prometheus.HistogramVec
	guardRedir   *prometheus.CounterVec
	provisioning *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_auth_operations_total",
			Help: "認証操作（ログイン・アカウント作成・ログアウト）の結果別合計数",
		}, []string{"op", "result"}),
		authLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agenda_auth_latency_seconds",
			Help:    "認証サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		guardRedir: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_guard_redirects_total",
			Help: "ルートガードによるリダイレクトの遷移先別合計数",
		}, []string{"target"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_profile_provisioning_total",
			Help: "プロフィール作成処理の結果別合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authOps,
		c.authLatency,
		c.guardRedir,
		c.provisioning,
		c.httpStatus,
	)

	return c
}

// RecordAuthOperation は認証操作の結果を記録する。
func (c *Collector) RecordAuthOperation(op, result string) {
	c.authOps.WithLabelValues(op, result).Inc()
}

// RecordAuthLatency は認証サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordAuthLatency(op string, duration time.Duration) {
	c.authLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordGuardRedirect はルートガードのリダイレクトを記録する。
func (c *Collector) RecordGuardRedirect(target string) {
	c.guardRedir.WithLabelValues(target).Inc()
}

// RecordProvisioning はプロフィール作成処理の結果を記録する。
// resultは created, exists, failed のいずれか。
func (c *Collector) RecordProvisioning(result string) {
	c.provisioning.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
