// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 配信・インデックス・購入ワークフローの各サービスから利用する。
type MetricsCollector interface {
	RecordDelivery(bucket string)
	RecordRelayFailure(bucket string)
	RecordExpiryFired()
	RecordIndexBuild(bucket string)
	RecordApproval()
	RecordRejection()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	deliveries    *prometheus.CounterVec
	relayFailures *prometheus.CounterVec
	expiriesFired prometheus.Counter
	indexBuilds   *prometheus.CounterVec
	approvals     prometheus.Counter
	rejections    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediagate_deliveries_total",
			Help: "バケット別のメディア配信成功の合計数",
		}, []string{"bucket"}),
		relayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediagate_relay_failures_total",
			Help: "バケット別のメディア中継失敗の合計数",
		}, []string{"bucket"}),
		expiriesFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagate_expiries_fired_total",
			Help: "失効タイマー発火（配信済みコピー削除試行）の合計数",
		}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediagate_index_builds_total",
			Help: "バケット別のチャンネルインデックス構築の合計数",
		}, []string{"bucket"}),
		approvals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagate_purchase_approvals_total",
			Help: "購入承認の合計数",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagate_purchase_rejections_total",
			Help: "購入却下の合計数",
		}),
	}

	reg.MustRegister(
		c.deliveries,
		c.relayFailures,
		c.expiriesFired,
		c.indexBuilds,
		c.approvals,
		c.rejections,
	)

	return c
}

// RecordDelivery は配信成功を記録する。
func (c *Collector) RecordDelivery(bucket string) {
	c.deliveries.WithLabelValues(bucket).Inc()
}

// RecordRelayFailure は中継失敗を記録する。
func (c *Collector) RecordRelayFailure(bucket string) {
	c.relayFailures.WithLabelValues(bucket).Inc()
}

// RecordExpiryFired は失効タイマーの発火を記録する。
func (c *Collector) RecordExpiryFired() {
	c.expiriesFired.Inc()
}

// RecordIndexBuild はチャンネルインデックスの構築を記録する。
func (c *Collector) RecordIndexBuild(bucket string) {
	c.indexBuilds.WithLabelValues(bucket).Inc()
}

// RecordApproval は購入承認を記録する。
func (c *Collector) RecordApproval() {
	c.approvals.Inc()
}

// RecordRejection は購入却下を記録する。
func (c *Collector) RecordRejection() {
	c.rejections.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
