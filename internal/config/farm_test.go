package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-farm-simulator/internal/engines/scaling"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	if diff := cmp.Diff(NewFarmConfig(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
initialWorkers: 8
cycles: 2000
scaleThreshold: 0.7
cycleDelay: 5ms
blockedOrigins:
  - 10.0.0.1
  - 10.0.0.2
`)
	t.Setenv("FARM_CYCLES", "3000")
	t.Setenv("FARM_LOGFILE", "env.log")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-file=flag.log", "--seed=42"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.InitialWorkers, "file overrides default")
	assert.Equal(t, 3000, cfg.Cycles, "env overrides file")
	assert.Equal(t, "flag.log", cfg.LogFile, "flag overrides env")
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.InDelta(t, 0.7, cfg.ScaleThreshold, 1e-9)
	assert.Equal(t, 5*time.Millisecond, cfg.CycleDelay)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.BlockedOrigins)
	// untouched flags keep lower layers
	assert.Equal(t, DefaultQueueCapacity, cfg.QueueCapacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestApplyDriverBounds(t *testing.T) {
	tests := []struct {
		name        string
		workers     int
		cycles      int
		wantWorkers int
		wantCycles  int
		wantChanged bool
	}{
		{name: "within bounds", workers: 50, cycles: 100, wantWorkers: 50, wantCycles: 100},
		{name: "too few workers", workers: 0, cycles: 500, wantWorkers: DefaultInitialWorkers, wantCycles: 500, wantChanged: true},
		{name: "too many workers", workers: 51, cycles: 500, wantWorkers: DefaultInitialWorkers, wantCycles: 500, wantChanged: true},
		{name: "too few cycles", workers: 3, cycles: 99, wantWorkers: 3, wantCycles: DefaultCycles, wantChanged: true},
		{name: "too many cycles", workers: 3, cycles: 50001, wantWorkers: 3, wantCycles: DefaultCycles, wantChanged: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewFarmConfig()
			cfg.InitialWorkers = tt.workers
			cfg.Cycles = tt.cycles
			assert.Equal(t, tt.wantChanged, cfg.ApplyDriverBounds(logr.Discard()))
			assert.Equal(t, tt.wantWorkers, cfg.InitialWorkers)
			assert.Equal(t, tt.wantCycles, cfg.Cycles)
		})
	}
}

func TestComplete(t *testing.T) {
	cfg := NewFarmConfig()
	cfg.InitialWorkers = 7
	cfg.ScalingStrategy = " Static "
	cfg.Complete()
	assert.Equal(t, 14, cfg.MaxWorkers)
	assert.Equal(t, "static", cfg.ScalingStrategy)

	strategy, err := cfg.Strategy()
	require.NoError(t, err)
	assert.Equal(t, scaling.StaticStrategy, strategy)

	cfg.MaxWorkers = 9
	cfg.Complete()
	assert.Equal(t, 9, cfg.MaxWorkers, "explicit maximum is kept")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *FarmConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *FarmConfig) {}},
		{name: "minimum below one", mutate: func(c *FarmConfig) { c.MinWorkers = 0 }, wantErr: "minWorkers"},
		{name: "maximum below minimum", mutate: func(c *FarmConfig) { c.MinWorkers = 6; c.MaxWorkers = 5 }, wantErr: "maxWorkers"},
		{name: "initial above maximum", mutate: func(c *FarmConfig) { c.MaxWorkers = 4 }, wantErr: "initialWorkers"},
		{name: "threshold of one", mutate: func(c *FarmConfig) { c.ScaleThreshold = 1 }, wantErr: "scaleThreshold"},
		{name: "unknown strategy", mutate: func(c *FarmConfig) { c.ScalingStrategy = "random" }, wantErr: "scaling strategy"},
		{name: "zero queue", mutate: func(c *FarmConfig) { c.QueueCapacity = 0 }, wantErr: "queueCapacity"},
		{name: "arrival probability above one", mutate: func(c *FarmConfig) { c.ArrivalProbability = 1.5 }, wantErr: "arrivalProbability"},
		{name: "negative cutoff", mutate: func(c *FarmConfig) { c.ArrivalCutoff = -0.1 }, wantErr: "arrivalCutoff"},
		{name: "zero log interval", mutate: func(c *FarmConfig) { c.LogInterval = 0 }, wantErr: "logInterval"},
		{name: "negative delay", mutate: func(c *FarmConfig) { c.CycleDelay = -time.Second }, wantErr: "cycleDelay"},
		{name: "empty log file", mutate: func(c *FarmConfig) { c.LogFile = "" }, wantErr: "logFile"},
		{name: "blank blocked origin", mutate: func(c *FarmConfig) { c.BlockedOrigins = []string{" "} }, wantErr: "blockedOrigins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewFarmConfig()
			cfg.Complete()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDump(t *testing.T) {
	cfg := NewFarmConfig()
	cfg.CycleDelay = 10 * time.Millisecond
	cfg.Complete()

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "cycleDelay: 10ms"), out)

	var back FarmConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &back))
	assert.Equal(t, cfg.MaxWorkers, back.MaxWorkers)
	assert.Equal(t, cfg.LogFile, back.LogFile)
}
