package simidx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simidx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
k: 6
prefilter_top_n: 80
tile_size: 250
guardrail_threshold: 5000
delta_fraction: 0.1
workers: 8
log_level: info
log_format: json
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.K)
	assert.Equal(t, 80, cfg.PrefilterTopN)
	assert.Equal(t, 250, cfg.TileSize)
	assert.Equal(t, 5000, cfg.GuardrailThreshold)
	assert.Equal(t, 0.1, cfg.DeltaFraction)
	assert.Equal(t, 8, cfg.Workers)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 7)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigOptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty config", cfg: Config{}},
		{name: "text format default", cfg: Config{LogLevel: "warn"}},
		{name: "bad level", cfg: Config{LogLevel: "verbose"}, wantErr: true},
		{name: "bad format", cfg: Config{LogLevel: "info", LogFormat: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Options()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
