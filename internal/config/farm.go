// Package config loads the farm simulator configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-farm-simulator/internal/engines/scaling"
)

// Farm configuration defaults
const (
	DefaultInitialWorkers     = 5
	DefaultMinWorkers         = 1
	DefaultScaleThreshold     = 0.8
	DefaultQueueCapacity      = 1000
	DefaultCycles             = 10000
	DefaultRequestsPerWorker  = 100
	DefaultArrivalProbability = 0.05
	DefaultArrivalCutoff      = 0.8
	DefaultLogInterval        = 100
	DefaultStatusInterval     = 1000
	DefaultLogFile            = "loadbalancer_log.txt"
	DefaultScalingStrategy    = "hysteresis"

	// EnvPrefix prefixes every environment variable read by Load, e.g. FARM_CYCLES.
	EnvPrefix = "FARM"
)

// Interactive driver bounds. Values outside them fall back to the defaults.
const (
	MinDriverWorkers = 1
	MaxDriverWorkers = 50
	MinDriverCycles  = 100
	MaxDriverCycles  = 50000
)

// FarmConfig is the complete configuration of one simulation run.
type FarmConfig struct {
	// Pool sizing
	InitialWorkers int `yaml:"initialWorkers" mapstructure:"initialWorkers"`
	MinWorkers     int `yaml:"minWorkers" mapstructure:"minWorkers"`
	// MaxWorkers of 0 means twice InitialWorkers.
	MaxWorkers int `yaml:"maxWorkers" mapstructure:"maxWorkers"`

	// ScaleThreshold is the scale-up utilization in (0, 1).
	ScaleThreshold  float64 `yaml:"scaleThreshold" mapstructure:"scaleThreshold"`
	ScalingStrategy string  `yaml:"scalingStrategy" mapstructure:"scalingStrategy"`

	QueueCapacity  int      `yaml:"queueCapacity" mapstructure:"queueCapacity"`
	BlockedOrigins []string `yaml:"blockedOrigins,omitempty" mapstructure:"blockedOrigins"`

	// Workload
	Cycles             int     `yaml:"cycles" mapstructure:"cycles"`
	RequestsPerWorker  int     `yaml:"requestsPerWorker" mapstructure:"requestsPerWorker"`
	ArrivalProbability float64 `yaml:"arrivalProbability" mapstructure:"arrivalProbability"`
	// ArrivalCutoff is the fraction of the run after which no new requests arrive.
	ArrivalCutoff float64 `yaml:"arrivalCutoff" mapstructure:"arrivalCutoff"`
	// Seed of 0 seeds the generator from the current time.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`

	// Reporting
	LogInterval    int           `yaml:"logInterval" mapstructure:"logInterval"`
	StatusInterval int           `yaml:"statusInterval" mapstructure:"statusInterval"`
	CycleDelay     time.Duration `yaml:"cycleDelay" mapstructure:"cycleDelay"`
	LogFile        string        `yaml:"logFile" mapstructure:"logFile"`
}

// NewFarmConfig returns a configuration holding every default.
func NewFarmConfig() *FarmConfig {
	return &FarmConfig{
		InitialWorkers:     DefaultInitialWorkers,
		MinWorkers:         DefaultMinWorkers,
		ScaleThreshold:     DefaultScaleThreshold,
		ScalingStrategy:    DefaultScalingStrategy,
		QueueCapacity:      DefaultQueueCapacity,
		Cycles:             DefaultCycles,
		RequestsPerWorker:  DefaultRequestsPerWorker,
		ArrivalProbability: DefaultArrivalProbability,
		ArrivalCutoff:      DefaultArrivalCutoff,
		LogInterval:        DefaultLogInterval,
		StatusInterval:     DefaultStatusInterval,
		LogFile:            DefaultLogFile,
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"workers":          "initialWorkers",
	"min-workers":      "minWorkers",
	"max-workers":      "maxWorkers",
	"threshold":        "scaleThreshold",
	"scaling-strategy": "scalingStrategy",
	"queue-capacity":   "queueCapacity",
	"block":            "blockedOrigins",
	"cycles":           "cycles",
	"seed":             "seed",
	"log-file":         "logFile",
	"cycle-delay":      "cycleDelay",
}

// AddFlags registers the configuration flags on fs. Defaults mirror NewFarmConfig.
func AddFlags(fs *pflag.FlagSet) {
	d := NewFarmConfig()
	fs.Int("workers", d.InitialWorkers, "Initial number of workers (1-50).")
	fs.Int("min-workers", d.MinWorkers, "Lower bound of the worker pool.")
	fs.Int("max-workers", d.MaxWorkers, "Upper bound of the worker pool. 0 means twice --workers.")
	fs.Float64("threshold", d.ScaleThreshold, "Average utilization in (0, 1) above which the pool grows.")
	fs.String("scaling-strategy", d.ScalingStrategy, "Scaling strategy: hysteresis or static.")
	fs.Int("queue-capacity", d.QueueCapacity, "Maximum number of queued requests.")
	fs.StringSlice("block", nil, "Origin address to deny at admission. Repeatable.")
	fs.Int("cycles", d.Cycles, "Number of cycles to simulate (100-50000).")
	fs.Uint64("seed", d.Seed, "Workload generator seed. 0 seeds from the current time.")
	fs.String("log-file", d.LogFile, "Path of the per-cycle statistics log.")
	fs.Duration("cycle-delay", d.CycleDelay, "Wall-clock pause after each cycle.")
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file at path (if non-empty), FARM_* environment variables and flags
// explicitly set on fs (which may be nil).
func Load(path string, fs *pflag.FlagSet) (*FarmConfig, error) {
	v := viper.New()
	setDefaults(v, NewFarmConfig())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &FarmConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *FarmConfig) {
	v.SetDefault("initialWorkers", d.InitialWorkers)
	v.SetDefault("minWorkers", d.MinWorkers)
	v.SetDefault("maxWorkers", d.MaxWorkers)
	v.SetDefault("scaleThreshold", d.ScaleThreshold)
	v.SetDefault("scalingStrategy", d.ScalingStrategy)
	v.SetDefault("queueCapacity", d.QueueCapacity)
	v.SetDefault("blockedOrigins", d.BlockedOrigins)
	v.SetDefault("cycles", d.Cycles)
	v.SetDefault("requestsPerWorker", d.RequestsPerWorker)
	v.SetDefault("arrivalProbability", d.ArrivalProbability)
	v.SetDefault("arrivalCutoff", d.ArrivalCutoff)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("logInterval", d.LogInterval)
	v.SetDefault("statusInterval", d.StatusInterval)
	v.SetDefault("cycleDelay", d.CycleDelay)
	v.SetDefault("logFile", d.LogFile)
}

// ApplyDriverBounds replaces a worker count outside [1, 50] with the default
// of 5 and a cycle count outside [100, 50000] with the default of 10000.
// It reports whether anything was replaced.
func (c *FarmConfig) ApplyDriverBounds(logger logr.Logger) bool {
	changed := false
	if c.InitialWorkers < MinDriverWorkers || c.InitialWorkers > MaxDriverWorkers {
		logger.Info("Invalid number of workers, using default",
			"requested", c.InitialWorkers, "default", DefaultInitialWorkers)
		c.InitialWorkers = DefaultInitialWorkers
		changed = true
	}
	if c.Cycles < MinDriverCycles || c.Cycles > MaxDriverCycles {
		logger.Info("Invalid simulation time, using default",
			"requested", c.Cycles, "default", DefaultCycles)
		c.Cycles = DefaultCycles
		changed = true
	}
	return changed
}

// Complete resolves derived values. It must run before Validate.
func (c *FarmConfig) Complete() {
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 2 * c.InitialWorkers
	}
	c.ScalingStrategy = strings.ToLower(strings.TrimSpace(c.ScalingStrategy))
}

// Validate checks for invalid configuration values.
func (c *FarmConfig) Validate() error {
	if c.MinWorkers < 1 {
		return fmt.Errorf("minWorkers must be >= 1, got %d", c.MinWorkers)
	}
	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("maxWorkers (%d) must be >= minWorkers (%d)", c.MaxWorkers, c.MinWorkers)
	}
	if c.InitialWorkers < c.MinWorkers || c.InitialWorkers > c.MaxWorkers {
		return fmt.Errorf("initialWorkers (%d) must be between minWorkers (%d) and maxWorkers (%d)",
			c.InitialWorkers, c.MinWorkers, c.MaxWorkers)
	}
	if c.ScaleThreshold <= 0 || c.ScaleThreshold >= 1 {
		return fmt.Errorf("scaleThreshold must be between 0 and 1 (exclusive), got %.2f", c.ScaleThreshold)
	}
	if _, err := scaling.ParseStrategy(c.ScalingStrategy); err != nil {
		return err
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queueCapacity must be >= 1, got %d", c.QueueCapacity)
	}
	if c.Cycles < 1 {
		return fmt.Errorf("cycles must be >= 1, got %d", c.Cycles)
	}
	if c.RequestsPerWorker < 0 {
		return fmt.Errorf("requestsPerWorker must be >= 0, got %d", c.RequestsPerWorker)
	}
	if c.ArrivalProbability < 0 || c.ArrivalProbability > 1 {
		return fmt.Errorf("arrivalProbability must be between 0 and 1, got %.2f", c.ArrivalProbability)
	}
	if c.ArrivalCutoff < 0 || c.ArrivalCutoff > 1 {
		return fmt.Errorf("arrivalCutoff must be between 0 and 1, got %.2f", c.ArrivalCutoff)
	}
	if c.LogInterval < 1 {
		return fmt.Errorf("logInterval must be >= 1, got %d", c.LogInterval)
	}
	if c.StatusInterval < 1 {
		return fmt.Errorf("statusInterval must be >= 1, got %d", c.StatusInterval)
	}
	if c.CycleDelay < 0 {
		return fmt.Errorf("cycleDelay must be >= 0, got %s", c.CycleDelay)
	}
	if c.LogFile == "" {
		return errors.New("logFile must not be empty")
	}
	for _, origin := range c.BlockedOrigins {
		if strings.TrimSpace(origin) == "" {
			return errors.New("blockedOrigins must not contain empty entries")
		}
	}
	return nil
}

// Strategy returns the parsed scaling strategy.
func (c *FarmConfig) Strategy() (scaling.Strategy, error) {
	return scaling.ParseStrategy(c.ScalingStrategy)
}

// Dump renders the configuration as YAML.
func (c *FarmConfig) Dump() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return string(out), nil
}
