package simidx

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the YAML-loadable run configuration, mirroring the functional
// options for deployments that configure the engine from a file.
type Config struct {
	// K is the number of neighbors maintained per entity.
	K int `yaml:"k"`
	// PrefilterTopN is the per-feature candidate count of the semantic
	// prefilter.
	PrefilterTopN int `yaml:"prefilter_top_n"`
	// TileSize is the row-range granularity of prefilter work items.
	TileSize int `yaml:"tile_size"`
	// GuardrailThreshold is the hub guardrail on the incremental impact set.
	GuardrailThreshold int `yaml:"guardrail_threshold"`
	// DeltaFraction routes oversized deltas to a full rebuild.
	DeltaFraction float64 `yaml:"delta_fraction"`
	// Workers bounds prefilter parallelism; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// LogLevel is one of debug, info, warn, error. Empty disables logging.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Options converts the config into engine options. Zero-valued fields keep
// their defaults.
func (c Config) Options() ([]Option, error) {
	var opts []Option
	if c.K > 0 {
		opts = append(opts, WithK(c.K))
	}
	if c.PrefilterTopN > 0 {
		opts = append(opts, WithPrefilterTopN(c.PrefilterTopN))
	}
	if c.TileSize > 0 {
		opts = append(opts, WithTileSize(c.TileSize))
	}
	if c.GuardrailThreshold > 0 {
		opts = append(opts, WithGuardrailThreshold(c.GuardrailThreshold))
	}
	if c.DeltaFraction > 0 {
		opts = append(opts, WithDeltaFraction(c.DeltaFraction))
	}
	if c.Workers > 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}

	if c.LogLevel != "" {
		level, err := parseLogLevel(c.LogLevel)
		if err != nil {
			return nil, err
		}
		switch c.LogFormat {
		case "", "text":
			opts = append(opts, WithLogger(NewTextLogger(level)))
		case "json":
			opts = append(opts, WithLogger(NewJSONLogger(level)))
		default:
			return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
		}
	}
	return opts, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
