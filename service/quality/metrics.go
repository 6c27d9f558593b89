package quality

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 质量检测执行指标
var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quality_checks_total",
		Help: "质量检测执行次数",
	}, []string{"check_type", "status"})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quality_check_duration_seconds",
		Help:    "质量检测执行时长",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
