package simidx

import (
	"log/slog"

	"github.com/grckit/simidx/engine"
	"github.com/grckit/simidx/scoring"
)

type options struct {
	cfg              engine.Config
	scorer           *scoring.Scorer
	metricsCollector MetricsCollector
	logger           *Logger
	progress         engine.ProgressFunc
}

// Option configures Engine constructor behavior.
type Option func(*options)

// WithK configures the number of neighbors maintained per entity.
func WithK(k int) Option {
	return func(o *options) {
		o.cfg.K = k
	}
}

// WithPrefilterTopN configures how many cosine neighbors per feature
// survive the semantic prefilter. Larger values trade runtime for recall
// against the exact pairwise scorer.
func WithPrefilterTopN(n int) Option {
	return func(o *options) {
		o.cfg.PrefilterTopN = n
	}
}

// WithTileSize configures the row-range granularity of prefilter work
// items. Smaller tiles balance better across workers at the cost of more
// scheduling overhead.
func WithTileSize(size int) Option {
	return func(o *options) {
		o.cfg.TileSize = size
	}
}

// WithGuardrailThreshold configures the hub guardrail: an incremental run
// whose reverse-impact set exceeds the threshold is delegated to a full
// rebuild.
func WithGuardrailThreshold(threshold int) Option {
	return func(o *options) {
		o.cfg.GuardrailThreshold = threshold
	}
}

// WithDeltaFraction configures the routing threshold: a delta covering more
// than this fraction of the corpus goes straight to a full rebuild.
func WithDeltaFraction(fraction float64) Option {
	return func(o *options) {
		o.cfg.DeltaFraction = fraction
	}
}

// WithWorkers bounds prefilter parallelism. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.cfg.Workers = n
	}
}

// WithProgress configures a progress callback. Updates are throttled and
// dispatched asynchronously, so the callback may block without stalling
// the run.
func WithProgress(fn engine.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithScorer overrides the scorer, e.g. to change the scoring constants:
//
//	scorer := scoring.New(func(o *scoring.Options) {
//	    o.DuplicateCosine = 0.995
//	})
//	eng, _ := simidx.New(st, simidx.WithScorer(scorer))
func WithScorer(s *scoring.Scorer) Option {
	return func(o *options) {
		o.scorer = s
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &simidx.BasicMetricsCollector{}
//	eng, _ := simidx.New(st, simidx.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
//	fmt.Printf("Runs: %d, Avg: %dns\n", stats.RunCount, stats.RunAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for runs.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := simidx.NewJSONLogger(slog.LevelInfo)
//	eng, _ := simidx.New(st, simidx.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		cfg:              engine.DefaultConfig,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
