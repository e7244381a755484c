package simidx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    runCounter     prometheus.Counter
//	    writeHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordRun(mode string, duration time.Duration, err error) {
//	    p.runCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordRun is called after each run.
	// mode is "full_rebuild" or "incremental", duration is the total time
	// taken, err is nil if successful.
	RecordRun(mode string, duration time.Duration, err error)

	// RecordGuardrail is called when the hub guardrail delegates an
	// incremental run to a full rebuild. affected is the impact set size.
	RecordGuardrail(affected int)

	// RecordWrite is called after the final store transaction of a run.
	// edges is the number of edges inserted.
	RecordWrite(edges int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRun(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordGuardrail(int)                    {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RunCount        atomic.Int64
	RunErrors       atomic.Int64
	RunTotalNanos   atomic.Int64
	RebuildCount    atomic.Int64
	GuardrailCount  atomic.Int64
	WriteCount      atomic.Int64
	EdgesWritten    atomic.Int64
	WriteTotalNanos atomic.Int64
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(mode string, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if mode == "full_rebuild" {
		b.RebuildCount.Add(1)
	}
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// RecordGuardrail implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGuardrail(affected int) {
	b.GuardrailCount.Add(1)
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(edges int, duration time.Duration) {
	b.WriteCount.Add(1)
	b.EdgesWritten.Add(int64(edges))
	b.WriteTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RunCount:       b.RunCount.Load(),
		RunErrors:      b.RunErrors.Load(),
		RunAvgNanos:    b.getAvgRunNanos(),
		RebuildCount:   b.RebuildCount.Load(),
		GuardrailCount: b.GuardrailCount.Load(),
		WriteCount:     b.WriteCount.Load(),
		EdgesWritten:   b.EdgesWritten.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgRunNanos() int64 {
	count := b.RunCount.Load()
	if count == 0 {
		return 0
	}
	return b.RunTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RunCount       int64
	RunErrors      int64
	RunAvgNanos    int64
	RebuildCount   int64
	GuardrailCount int64
	WriteCount     int64
	EdgesWritten   int64
}
