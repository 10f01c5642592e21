// Package metrics defines the prometheus collectors of one engine.
// Every engine has its own registry so that several engines can live in one process.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "minipg"

// Metrics holds the collectors
type Metrics struct {
	Registry *prometheus.Registry

	// CacheEvents counts page cache events by event (hit, miss, evict, flush)
	CacheEvents *prometheus.CounterVec
	// RowLockWaits counts row lock acquisitions which had to wait
	RowLockWaits prometheus.Counter
	// Transactions counts finished transactions by outcome (commit, abort)
	Transactions *prometheus.CounterVec
	// ActiveTransactions is the number of in-progress transactions
	ActiveTransactions prometheus.Gauge
	// WALRecords counts appended wal records by type
	WALRecords *prometheus.CounterVec
	// WALBytes counts appended wal bytes
	WALBytes prometheus.Counter
}

// New initializes metrics with new registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CacheEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_cache_events_total",
				Help:      "Total number of page cache events",
			},
			[]string{"event"},
		),
		RowLockWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_lock_waits_total",
			Help:      "Total number of row lock acquisitions which waited for other transaction",
		}),
		Transactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of finished transactions",
			},
			[]string{"outcome"},
		),
		ActiveTransactions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_transactions",
			Help:      "Number of in-progress transactions",
		}),
		WALRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wal_records_total",
				Help:      "Total number of appended wal records",
			},
			[]string{"type"},
		),
		WALBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wal_bytes_total",
			Help:      "Total bytes of appended wal records",
		}),
	}
}

// cache events
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheEvict = "evict"
	CacheFlush = "flush"
)

// transaction outcomes
const (
	OutcomeCommit = "commit"
	OutcomeAbort  = "abort"
)

// Sample is one value of the collectors
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Gather returns current values of all collectors sorted by name
func (m *Metrics) Gather() ([]Sample, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}
	samples := []Sample{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			samples = append(samples, Sample{
				Name:   mf.GetName(),
				Labels: labelString(metric.GetLabel()),
				Value:  value(mf.GetType(), metric),
			})
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

func value(typ dto.MetricType, metric *dto.Metric) float64 {
	switch typ {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	}
	return 0
}

func labelString(labels []*dto.LabelPair) string {
	s := ""
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.GetName() + "=" + l.GetValue()
	}
	return s
}
