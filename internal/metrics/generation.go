package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var documentGenerations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "jobgenie",
		Subsystem: "documents",
		Name:      "generations_total",
		Help:      "AI 文档生成次数，按类型与结果划分。",
	},
	[]string{"doc_type", "outcome"},
)

// DocumentGenerated 记录一次生成结果：ok/quota_exceeded/malformed/error。
func DocumentGenerated(docType, outcome string) {
	documentGenerations.WithLabelValues(docType, outcome).Inc()
}
