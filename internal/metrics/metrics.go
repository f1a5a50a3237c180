// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/chatdash/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// dashboard.RefreshRecorder と gateway.RequestRecorder を満たす。
type Collector struct {
	refreshSuccess  prometheus.Counter
	refreshFail     prometheus.Counter
	refreshLatency  prometheus.Histogram
	refreshInFlight prometheus.Gauge
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	snapshotStreams *prometheus.GaugeVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatdash_refresh_success_total",
			Help: "ダッシュボード更新成功の合計数",
		}),
		refreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatdash_refresh_failure_total",
			Help: "ダッシュボード更新失敗の合計数",
		}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatdash_refresh_latency_seconds",
			Help:    "ダッシュボード更新のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		refreshInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatdash_refresh_inflight",
			Help: "実行中のダッシュボード更新数",
		}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatdash_gateway_requests_total",
			Help: "エンドポイント・ステータスコード別のゲートウェイ呼び出し数",
		}, []string{"endpoint", "status_code"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatdash_gateway_latency_seconds",
			Help:    "ゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		snapshotStreams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chatdash_snapshot_streams",
			Help: "コミット済みスナップショットのステータス別配信数",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.refreshSuccess,
		c.refreshFail,
		c.refreshLatency,
		c.refreshInFlight,
		c.gatewayRequests,
		c.gatewayLatency,
		c.snapshotStreams,
	)

	return c
}

// RecordRefresh は更新の成否とレイテンシを記録する。
func (c *Collector) RecordRefresh(success bool, duration time.Duration) {
	if success {
		c.refreshSuccess.Inc()
	} else {
		c.refreshFail.Inc()
	}
	c.refreshLatency.Observe(duration.Seconds())
}

// SetRefreshInFlight は実行中の更新数を設定する。
func (c *Collector) SetRefreshInFlight(n int) {
	c.refreshInFlight.Set(float64(n))
}

// RecordSnapshot はコミットされた配信のステータス別件数を設定する。
// 監視対象のステータスは0件でも系列を出力する。
func (c *Collector) RecordSnapshot(streams []model.Stream) {
	counts := make(map[model.StreamStatus]int)
	for _, s := range model.MonitoredStreamStatuses {
		counts[s] = 0
	}
	for _, s := range streams {
		counts[s.Status]++
	}
	c.snapshotStreams.Reset()
	for status, n := range counts {
		c.snapshotStreams.WithLabelValues(string(status)).Set(float64(n))
	}
}

// RecordGatewayRequest はゲートウェイ呼び出しを記録する。
// トランスポートエラーはステータスコード "0" として記録する。
func (c *Collector) RecordGatewayRequest(endpoint string, statusCode int, duration time.Duration) {
	c.gatewayRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.gatewayLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
