package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resourceCacheEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "jobgenie",
		Subsystem: "resources",
		Name:      "cache_events_total",
		Help:      "学习资源缓存事件数（hit/miss/stale_fallback/provider_error）。",
	},
	[]string{"event"},
)

// ResourceCacheHit 记录一次新鲜命中。
func ResourceCacheHit() { resourceCacheEvents.WithLabelValues("hit").Inc() }

// ResourceCacheMiss 记录缺失或过期。
func ResourceCacheMiss() { resourceCacheEvents.WithLabelValues("miss").Inc() }

// ResourceStaleFallback 记录因上游失败而返回过期数据。
func ResourceStaleFallback() { resourceCacheEvents.WithLabelValues("stale_fallback").Inc() }

// ResourceProviderError 记录上游搜索失败。
func ResourceProviderError() { resourceCacheEvents.WithLabelValues("provider_error").Inc() }
