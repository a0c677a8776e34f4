// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "koanime"

// Collector はPrometheusメトリクスを収集する実装。
// カタログのプロバイダ呼び出し、キャッシュ、進捗ストアとHTTPレスポンスを計測する。
type Collector struct {
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	degraded        *prometheus.CounterVec
	cacheSwept      prometheus.Counter
	storeFallbacks  *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "プロバイダ呼び出しの結果別の合計数",
		}, []string{"provider", "operation", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "プロバイダ呼び出しのレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "カタログキャッシュの参照数（hit/miss別）",
		}, []string{"operation", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "次のプロバイダへフォールバックした回数",
		}, []string{"operation", "provider"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_responses_total",
			Help:      "全プロバイダが失敗し空の結果を返した回数",
		}, []string{"operation"}),
		cacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_swept_entries_total",
			Help:      "期限切れで削除したキャッシュエントリの合計数",
		}),
		storeFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fallbacks_total",
			Help:      "ホスト型ストアの障害でファイルストアを使った回数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.providerCalls,
		c.providerLatency,
		c.cacheLookups,
		c.fallbacks,
		c.degraded,
		c.cacheSwept,
		c.storeFallbacks,
		c.httpStatus,
	)

	return c
}

// RecordProviderCall はプロバイダ呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordProviderCall(provider, operation, outcome string, duration time.Duration) {
	c.providerCalls.WithLabelValues(provider, operation, outcome).Inc()
	c.providerLatency.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordCacheLookup はキャッシュ参照の結果を記録する。
func (c *Collector) RecordCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(operation, result).Inc()
}

// RecordFallback はフォールバック先のプロバイダを記録する。
func (c *Collector) RecordFallback(operation, provider string) {
	c.fallbacks.WithLabelValues(operation, provider).Inc()
}

// RecordDegraded は空の結果への縮退を記録する。
func (c *Collector) RecordDegraded(operation string) {
	c.degraded.WithLabelValues(operation).Inc()
}

// RecordCacheSweep は削除したキャッシュエントリ数を記録する。
func (c *Collector) RecordCacheSweep(removed int) {
	c.cacheSwept.Add(float64(removed))
}

// RecordStoreFallback はファイルストアへのフォールバックを記録する。
func (c *Collector) RecordStoreFallback(operation string) {
	c.storeFallbacks.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
