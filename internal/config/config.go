// Package config provides unified configuration loading for egress.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EgressConfig contains all egress configuration settings.
type EgressConfig struct {
	// Simulation describes the grid, the population, and how it is driven.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Measure controls resource measurement of runs.
	Measure MeasureConfig `json:"measure" yaml:"measure"`

	// Logging contains settings for operational and move-event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store controls persistence of run history.
	Store StoreConfig `json:"store" yaml:"store"`
}

// SimulationConfig configures one evacuation run.
type SimulationConfig struct {
	// AgentsPow sets the population to 2^AgentsPow when Agents is zero.
	AgentsPow int `json:"agents_pow" yaml:"agents_pow"`

	// Agents is an explicit population size. Zero means use AgentsPow.
	Agents int `json:"agents,omitempty" yaml:"agents,omitempty"`

	XSize int    `json:"x_size" yaml:"x_size"`
	YSize int    `json:"y_size" yaml:"y_size"`
	Seed  uint64 `json:"seed" yaml:"seed"`

	// Strategy is "sequential", "concurrent", or "both".
	Strategy string `json:"strategy" yaml:"strategy"`

	// Layout is "sample" (two rectangles scaled to the grid) or "empty".
	Layout string `json:"layout" yaml:"layout"`

	// TargetX and TargetY locate the point every agent steers toward.
	TargetX int `json:"target_x" yaml:"target_x"`
	TargetY int `json:"target_y" yaml:"target_y"`
}

// Population returns the number of agents a run places.
func (c SimulationConfig) Population() int {
	if c.Agents > 0 {
		return c.Agents
	}
	return 1 << c.AgentsPow
}

// MeasureConfig configures resource measurement.
type MeasureConfig struct {
	// Enabled reports wall time, CPU time, and peak RSS per strategy.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Runs repeats each strategy. From five runs on, the mean of the
	// middle three by wall time is reported.
	Runs int `json:"runs" yaml:"runs"`
}

// LoggingConfig configures egress's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables move-event logging to .egress/moves.jsonl.
	// "trace" additionally logs every round.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures run history persistence.
type StoreConfig struct {
	// Enabled records every CLI run in .egress/egress.db.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// maxAgentsPow keeps 2^pow well inside an int and a goroutine budget.
const maxAgentsPow = 24

// maxGridCells bounds xsize*ysize; each cell is an int in memory.
const maxGridCells = 1 << 28

// Default returns an EgressConfig with sensible defaults.
func Default() *EgressConfig {
	return &EgressConfig{
		Simulation: SimulationConfig{
			AgentsPow: 3,
			XSize:     10,
			YSize:     5,
			Seed:      1,
			Strategy:  "sequential",
			Layout:    "sample",
			TargetX:   -2,
			TargetY:   130,
		},
		Measure: MeasureConfig{
			Enabled: false,
			Runs:    1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.egress/config.yaml -> environment variables
func Load() (*EgressConfig, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".egress", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*EgressConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *EgressConfig) Validate() error {
	s := c.Simulation
	if s.XSize < 2 || s.YSize < 2 {
		return fmt.Errorf("grid must be at least 2x2, got %dx%d", s.XSize, s.YSize)
	}

	if s.XSize > maxGridCells/s.YSize {
		return fmt.Errorf("grid %dx%d exceeds %d cells", s.XSize, s.YSize, maxGridCells)
	}

	if s.Agents < 0 {
		return fmt.Errorf("agents must be non-negative, got %d", s.Agents)
	}

	if s.AgentsPow < 0 || s.AgentsPow > maxAgentsPow {
		return fmt.Errorf("agents_pow must be between 0 and %d, got %d", maxAgentsPow, s.AgentsPow)
	}

	validStrategies := map[string]bool{"sequential": true, "concurrent": true, "both": true}
	if !validStrategies[s.Strategy] {
		return fmt.Errorf("invalid strategy: %s (valid: sequential, concurrent, both)", s.Strategy)
	}

	validLayouts := map[string]bool{"sample": true, "empty": true}
	if !validLayouts[s.Layout] {
		return fmt.Errorf("invalid layout: %s (valid: sample, empty)", s.Layout)
	}

	if s.Layout == "sample" && (s.XSize < 10 || s.YSize < 4) {
		return fmt.Errorf("sample layout needs at least 10x4, got %dx%d", s.XSize, s.YSize)
	}

	if c.Measure.Runs < 1 {
		return fmt.Errorf("measure runs must be at least 1, got %d", c.Measure.Runs)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *EgressConfig) {
	if v := os.Getenv("EGRESS_AGENTS_POW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.AgentsPow = n
		}
	}
	if v := os.Getenv("EGRESS_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Agents = n
		}
	}
	if v := os.Getenv("EGRESS_X_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.XSize = n
		}
	}
	if v := os.Getenv("EGRESS_Y_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.YSize = n
		}
	}
	if v := os.Getenv("EGRESS_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}
	if v := os.Getenv("EGRESS_STRATEGY"); v != "" {
		config.Simulation.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("EGRESS_LAYOUT"); v != "" {
		config.Simulation.Layout = strings.ToLower(v)
	}

	if v := os.Getenv("EGRESS_MEASURE"); v != "" {
		config.Measure.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("EGRESS_MEASURE_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Measure.Runs = n
		}
	}

	if v := os.Getenv("EGRESS_STORE_ENABLED"); v != "" {
		config.Store.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("EGRESS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
