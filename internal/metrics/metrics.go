package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// batchesPersisted 持久化的批次（status: ok / error）
	batchesPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipment",
		Subsystem: "config",
		Name:      "batches_persisted_total",
		Help:      "Persisted config batches by status",
	}, []string{"status"})

	batchKeys = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "equipment",
		Subsystem: "config",
		Name:      "batch_keys",
		Help:      "Persisted keys per batch",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
	})

	mappingMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipment",
		Subsystem: "config",
		Name:      "mapping_misses_total",
		Help:      "Writes dropped because the field has no persisted mapping",
	}, []string{"field"})

	derivationPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "equipment",
		Subsystem: "derivation",
		Name:      "passes",
		Help:      "Derivation passes needed to settle a batch",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
	})

	derivationCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "equipment",
		Subsystem: "derivation",
		Name:      "cycles_total",
		Help:      "Batches rejected because derivation did not settle",
	})

	// bosDetections BOS 检测（outcome: items / none / needs_input / cancelled / error）
	bosDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipment",
		Subsystem: "bos",
		Name:      "detections_total",
		Help:      "BOS detections by source and outcome",
	}, []string{"source", "outcome"})

	catalogLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "equipment",
		Subsystem: "catalog",
		Name:      "request_duration_seconds",
		Help:      "Catalog API request latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint", "status"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipment",
		Subsystem: "catalog",
		Name:      "cache_lookups_total",
		Help:      "Utility requirement cache lookups",
	}, []string{"result"})
)

// RecordPersist 记录一次持久化
func RecordPersist(keys int, err error) {
	if err != nil {
		batchesPersisted.WithLabelValues("error").Inc()
		return
	}
	batchesPersisted.WithLabelValues("ok").Inc()
	batchKeys.Observe(float64(keys))
}

func RecordMappingMiss(field string) {
	mappingMisses.WithLabelValues(field).Inc()
}

func RecordDerivation(passes int) {
	derivationPasses.Observe(float64(passes))
}

func RecordDerivationCycle() {
	derivationCycles.Inc()
}

func RecordBOSDetection(source, outcome string) {
	bosDetections.WithLabelValues(source, outcome).Inc()
}

// ObserveCatalog 记录目录接口耗时
func ObserveCatalog(endpoint, status string, start time.Time) {
	catalogLatency.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}
