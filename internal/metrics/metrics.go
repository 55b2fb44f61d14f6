// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FlowRecorder はOAuth連携フローのメトリクス収集インターフェース。
// サービス層から利用する。
type FlowRecorder interface {
	RecordStart()
	RecordLinkSuccess()
	RecordLinkFailure(reason string)
	RecordRateLimited(scope string)
}

// APIRecorder はGitHub API呼び出しのメトリクス収集インターフェース。
type APIRecorder interface {
	RecordGitHubAPILatency(duration time.Duration)
	RecordGitHubAPIStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	oauthStart  prometheus.Counter
	linkSuccess prometheus.Counter
	linkFail    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	apiLatency  prometheus.Histogram
	apiStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		oauthStart: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltrack_oauth_start_total",
			Help: "OAuth連携フロー開始の合計数",
		}),
		linkSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltrack_link_success_total",
			Help: "アカウント連携成功の合計数",
		}),
		linkFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltrack_link_fail_total",
			Help: "アカウント連携失敗の理由別合計数",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltrack_rate_limited_total",
			Help: "レート制限で拒否されたリクエストの系統別合計数",
		}, []string{"scope"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voltrack_github_api_latency_seconds",
			Help:    "GitHub API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		apiStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltrack_github_api_status_total",
			Help: "GitHub APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.oauthStart,
		c.linkSuccess,
		c.linkFail,
		c.rateLimited,
		c.apiLatency,
		c.apiStatus,
	)

	return c
}

// RecordStart はOAuthフロー開始を記録する。
func (c *Collector) RecordStart() {
	c.oauthStart.Inc()
}

// RecordLinkSuccess は連携成功を記録する。
func (c *Collector) RecordLinkSuccess() {
	c.linkSuccess.Inc()
}

// RecordLinkFailure は連携失敗を理由付きで記録する。
func (c *Collector) RecordLinkFailure(reason string) {
	c.linkFail.WithLabelValues(reason).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// RecordGitHubAPILatency はGitHub API呼び出しのレイテンシを記録する。
func (c *Collector) RecordGitHubAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordGitHubAPIStatus はGitHub APIのHTTPステータスコードを記録する。
func (c *Collector) RecordGitHubAPIStatus(statusCode int) {
	c.apiStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ FlowRecorder = (*Collector)(nil)
	_ APIRecorder  = (*Collector)(nil)
)
