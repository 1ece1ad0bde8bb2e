package codegraph

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordPartition is called after each PartitionGraph run.
	// partitions is the resulting partition count, err is nil on success.
	RecordPartition(partitions int, duration time.Duration, err error)

	// RecordLoad is called after each partition load.
	RecordLoad(duration time.Duration, err error)

	// RecordEvict is called after each eviction pass.
	// count is the number of partitions evicted.
	RecordEvict(count int, duration time.Duration, err error)

	// RecordIndexOp is called after each index maintenance operation
	// (op is "add", "update", "remove", or "rebuild").
	RecordIndexOp(op string, duration time.Duration, err error)

	// RecordSearch is called after each query. index is the queried index
	// name, results is the number of hits returned.
	RecordSearch(index string, results int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPartition(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)            {}
func (NoopMetricsCollector) RecordEvict(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordIndexOp(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PartitionCount      atomic.Int64
	PartitionErrors     atomic.Int64
	PartitionTotalNanos atomic.Int64

	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64

	EvictPasses     atomic.Int64
	EvictedTotal    atomic.Int64
	EvictErrors     atomic.Int64
	EvictTotalNanos atomic.Int64

	IndexOpCount  atomic.Int64
	IndexOpErrors atomic.Int64

	SearchCount      atomic.Int64
	SearchHits       atomic.Int64
	SearchTotalNanos atomic.Int64
}

func (m *BasicMetricsCollector) RecordPartition(partitions int, duration time.Duration, err error) {
	m.PartitionCount.Add(1)
	m.PartitionTotalNanos.Add(int64(duration))
	if err != nil {
		m.PartitionErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	m.LoadCount.Add(1)
	m.LoadTotalNanos.Add(int64(duration))
	if err != nil {
		m.LoadErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordEvict(count int, duration time.Duration, err error) {
	m.EvictPasses.Add(1)
	m.EvictedTotal.Add(int64(count))
	m.EvictTotalNanos.Add(int64(duration))
	if err != nil {
		m.EvictErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordIndexOp(op string, duration time.Duration, err error) {
	m.IndexOpCount.Add(1)
	if err != nil {
		m.IndexOpErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordSearch(index string, results int, duration time.Duration) {
	m.SearchCount.Add(1)
	m.SearchHits.Add(int64(results))
	m.SearchTotalNanos.Add(int64(duration))
}

// AvgLoadLatency returns the mean partition load latency.
func (m *BasicMetricsCollector) AvgLoadLatency() time.Duration {
	n := m.LoadCount.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.LoadTotalNanos.Load() / n)
}

// AvgSearchLatency returns the mean query latency.
func (m *BasicMetricsCollector) AvgSearchLatency() time.Duration {
	n := m.SearchCount.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.SearchTotalNanos.Load() / n)
}
