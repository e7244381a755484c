// Package engine implements the two computation modes of the similarity
// index: the full corpus rebuild and the delta-driven incremental update.
// Both terminate in a single atomic write through the version store, so
// readers only ever observe complete index states.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/scoring"
	"github.com/grckit/simidx/store"
)

// Mode identifies which computation path a run took.
type Mode int

const (
	// ModeFullRebuild recomputes every entity's neighbor list from scratch.
	ModeFullRebuild Mode = iota
	// ModeIncremental recomputes only entities reachable from the delta.
	ModeIncremental
)

func (m Mode) String() string {
	switch m {
	case ModeFullRebuild:
		return "full_rebuild"
	case ModeIncremental:
		return "incremental"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Phase is the coarse position of a run within its pipeline, reported
// through the progress callback.
type Phase int

const (
	PhaseSemanticPrefilter Phase = iota
	PhaseHybridScoring
	PhaseImpactScan
	PhaseForwardPass
	PhaseWrite
)

func (p Phase) String() string {
	switch p {
	case PhaseSemanticPrefilter:
		return "semantic_prefilter"
	case PhaseHybridScoring:
		return "hybrid_scoring"
	case PhaseImpactScan:
		return "impact_scan"
	case PhaseForwardPass:
		return "forward_pass"
	case PhaseWrite:
		return "write"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Delta names the entities whose source data changed since the last run.
type Delta struct {
	// ChangedIDs are existing entities with modified text or metadata.
	ChangedIDs []string
	// NewIDs are entities appearing for the first time.
	NewIDs []string
}

// Size returns the number of distinct entities in the delta.
func (d *Delta) Size() int {
	if d == nil {
		return 0
	}
	return len(d.set())
}

func (d *Delta) set() map[string]struct{} {
	s := make(map[string]struct{}, len(d.ChangedIDs)+len(d.NewIDs))
	for _, id := range d.ChangedIDs {
		s[id] = struct{}{}
	}
	for _, id := range d.NewIDs {
		s[id] = struct{}{}
	}
	return s
}

// Config holds the tuning knobs of a run. Zero values fall back to the
// defaults via normalize.
type Config struct {
	// K is the number of neighbors maintained per entity.
	K int
	// PrefilterTopN is the number of cosine neighbors kept per feature
	// before hybrid scoring.
	PrefilterTopN int
	// TileSize is the row-range granularity of prefilter work items.
	TileSize int
	// GuardrailThreshold caps the incremental impact set. A larger affected
	// set delegates the run to a full rebuild.
	GuardrailThreshold int
	// DeltaFraction caps the delta size relative to the corpus. A larger
	// delta is routed to a full rebuild up front.
	DeltaFraction float64
	// Workers bounds prefilter parallelism.
	Workers int
	// ProgressStride is the entity interval between progress callbacks.
	ProgressStride int
	// Progress receives throttled progress updates. May be nil.
	Progress ProgressFunc
}

// DefaultConfig holds the production tuning.
var DefaultConfig = Config{
	K:                  4,
	PrefilterTopN:      50,
	TileSize:           500,
	GuardrailThreshold: 20000,
	DeltaFraction:      0.2,
	ProgressStride:     2000,
}

func (cfg Config) normalize() Config {
	def := DefaultConfig
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.PrefilterTopN <= 0 {
		cfg.PrefilterTopN = def.PrefilterTopN
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = def.TileSize
	}
	if cfg.GuardrailThreshold <= 0 {
		cfg.GuardrailThreshold = def.GuardrailThreshold
	}
	if cfg.DeltaFraction <= 0 {
		cfg.DeltaFraction = def.DeltaFraction
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ProgressStride <= 0 {
		cfg.ProgressStride = def.ProgressStride
	}
	return cfg
}

// Result summarizes a completed run.
type Result struct {
	// Mode is the path actually taken, after routing and guardrail.
	Mode Mode
	// GuardrailTripped is set when an incremental run was delegated to a
	// full rebuild because its impact set exceeded the threshold.
	GuardrailTripped bool
	// AffectedSize is the size of the reverse-impact set of an incremental
	// run, for diagnostics. Zero for full rebuilds.
	AffectedSize int
	// Touched counts entities whose neighbor lists were rewritten.
	Touched int
	// EdgesWritten counts the edges inserted by the final write.
	EdgesWritten int
	// WriteDuration is the time spent in the final store transaction.
	WriteDuration time.Duration
}

// Engine executes similarity runs against one edge store.
type Engine struct {
	store  store.EdgeStore
	scorer *scoring.Scorer
	cfg    Config
}

// New creates an Engine. A nil scorer uses the production constants.
func New(st store.EdgeStore, scorer *scoring.Scorer, cfg Config) *Engine {
	if scorer == nil {
		scorer = scoring.New()
	}
	return &Engine{
		store:  st,
		scorer: scorer,
		cfg:    cfg.normalize(),
	}
}

// Config returns the normalized configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// Run executes one run over the corpus, routing between modes.
//
// A nil delta always takes the full path. A non-nil delta takes the
// incremental path unless it covers more than DeltaFraction of the corpus,
// in which case rescanning a handful of rows at a time would cost more than
// the tiled rebuild. The incremental path can still escalate internally
// through the hub guardrail.
func (e *Engine) Run(ctx context.Context, c *corpus.Corpus, delta *Delta, now time.Time) (*Result, error) {
	if c.Size() == 0 {
		return nil, corpus.ErrNoEmbeddings
	}
	if delta == nil {
		return e.rebuild(ctx, c, now, &Result{Mode: ModeFullRebuild})
	}
	if float64(delta.Size()) > e.cfg.DeltaFraction*float64(c.Size()) {
		return e.rebuild(ctx, c, now, &Result{Mode: ModeFullRebuild})
	}
	return e.incremental(ctx, c, delta, now)
}

// WriteError wraps a failure of the final atomic write. The run's compute
// phases completed; only the store transaction failed, so the previous index
// version is still intact and current.
type WriteError struct {
	Mode Mode
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("engine: %s write failed: %v", e.Mode, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
