// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// レシート抽出と一時キー発行の成否、HTTPステータスを記録する。
type Collector struct {
	ocrSuccess  prometheus.Counter
	ocrFail     *prometheus.CounterVec
	ocrLatency  prometheus.Histogram
	tokenIssued prometheus.Counter
	tokenFail   prometheus.Counter
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ocrSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warikan_ocr_success_total",
			Help: "レシート抽出成功の合計数",
		}),
		ocrFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warikan_ocr_fail_total",
			Help: "レシート抽出失敗の合計数（理由別）",
		}, []string{"reason"}),
		ocrLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warikan_ocr_latency_seconds",
			Help:    "レシート抽出のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warikan_ephemeral_token_issued_total",
			Help: "一時キー発行成功の合計数",
		}),
		tokenFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warikan_ephemeral_token_fail_total",
			Help: "一時キー発行失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warikan_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.ocrSuccess,
		c.ocrFail,
		c.ocrLatency,
		c.tokenIssued,
		c.tokenFail,
		c.httpStatus,
	)

	return c
}

// RecordOCRSuccess はレシート抽出成功を記録する。
func (c *Collector) RecordOCRSuccess() {
	c.ocrSuccess.Inc()
}

// RecordOCRFailure はレシート抽出失敗を理由付きで記録する。
func (c *Collector) RecordOCRFailure(reason string) {
	c.ocrFail.WithLabelValues(reason).Inc()
}

// RecordOCRLatency はレシート抽出のレイテンシを記録する。
func (c *Collector) RecordOCRLatency(duration time.Duration) {
	c.ocrLatency.Observe(duration.Seconds())
}

// RecordTokenIssued は一時キー発行成功を記録する。
func (c *Collector) RecordTokenIssued() {
	c.tokenIssued.Inc()
}

// RecordTokenIssueFailure は一時キー発行失敗を記録する。
func (c *Collector) RecordTokenIssueFailure() {
	c.tokenFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
