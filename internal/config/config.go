package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"lidarflow/internal/engine"
	"lidarflow/internal/logging"
	"lidarflow/internal/manifest"
)

// Config holds one processing run's settings.
type Config struct {
	// Engine locates the LAStools executables.
	Engine EngineConfig `yaml:"engine" toml:"engine"`

	// SourceDir holds the raw point-cloud files (searched recursively).
	SourceDir string `yaml:"source_dir" toml:"source_dir"`

	// DestDir receives the output tree. Defaults to SourceDir.
	DestDir string `yaml:"dest_dir,omitempty" toml:"dest_dir,omitempty"`

	// GroundPolygon is the shapefile used for clipping.
	GroundPolygon string `yaml:"ground_polygon" toml:"ground_polygon"`

	Cores  int    `yaml:"cores" toml:"cores"`
	Units  string `yaml:"units" toml:"units"`   // metric, us_feet
	Format string `yaml:"format" toml:"format"` // las, laz

	// Ground parameter sets for the two lasground_new passes.
	Coarse engine.GroundParams `yaml:"coarse" toml:"coarse"`
	Fine   engine.GroundParams `yaml:"fine" toml:"fine"`

	// CheckTiles verifies every tile stays within TileBudget points.
	CheckTiles bool  `yaml:"check_tiles" toml:"check_tiles"`
	TileBudget int64 `yaml:"tile_budget" toml:"tile_budget"`

	// Logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// EngineConfig configures how tools are resolved.
type EngineConfig struct {
	Dir string `yaml:"dir" toml:"dir"`

	// Suffix is appended to tool names. Unset means the platform default.
	Suffix *string `yaml:"suffix,omitempty" toml:"suffix,omitempty"`

	// ManifestPath overrides <dir>/file_list.txt.
	ManifestPath string `yaml:"manifest_path,omitempty" toml:"manifest_path,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // console, json
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// DefaultCoarse is the default coarse ground parameter set.
var DefaultCoarse = engine.GroundParams{Step: 10, Bulge: 1.0, Spike: 1.0, DownSpike: 1.0, Offset: 0.05}

// DefaultFine is the default fine ground parameter set.
var DefaultFine = engine.GroundParams{Step: 3, Bulge: 0.5, Spike: 0.5, DownSpike: 0.5, Offset: 0.05}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cores:      engine.DefaultCores,
		Units:      string(engine.Metric),
		Format:     string(engine.LAS),
		Coarse:     DefaultCoarse,
		Fine:       DefaultFine,
		TileBudget: 1_500_000,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// A missing file yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.ConfigDebug("config %s not found, using defaults", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	logging.ConfigDebug("loaded config from %s", path)
	return cfg, nil
}

// Save writes configuration to a YAML or TOML file, chosen by extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("LIDARFLOW_ENGINE_DIR"); dir != "" {
		c.Engine.Dir = dir
	}
	if raw := os.Getenv("LIDARFLOW_CORES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			c.Cores = n
		} else {
			logging.ConfigWarn("ignoring LIDARFLOW_CORES=%q: %v", raw, err)
		}
	}
	if units := os.Getenv("LIDARFLOW_UNITS"); units != "" {
		c.Units = units
	}
	if path := os.Getenv("LIDARFLOW_MANIFEST"); path != "" {
		c.Engine.ManifestPath = path
	}
}

// Destination returns DestDir, or SourceDir when unset.
func (c *Config) Destination() string {
	if c.DestDir != "" {
		return c.DestDir
	}
	return c.SourceDir
}

// ManifestPath returns the configured manifest path or <engine dir>/file_list.txt.
func (c *Config) ManifestPath() string {
	if c.Engine.ManifestPath != "" {
		return c.Engine.ManifestPath
	}
	return filepath.Join(c.Engine.Dir, manifest.FileName)
}

// Suffix returns the configured executable suffix or the platform default.
func (c *Config) Suffix() string {
	if c.Engine.Suffix != nil {
		return *c.Engine.Suffix
	}
	return engine.DefaultSuffix()
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration for a full run.
func (c *Config) Validate() error {
	v := &ValidationError{}
	c.validateEngine(v)

	if c.SourceDir == "" {
		v.Problems = append(v.Problems, "source_dir is required")
	} else if !isDir(c.SourceDir) {
		v.Problems = append(v.Problems, fmt.Sprintf("source_dir %s is not a directory", c.SourceDir))
	}
	if c.DestDir != "" {
		if info, err := os.Stat(c.DestDir); err == nil && !info.IsDir() {
			v.Problems = append(v.Problems, fmt.Sprintf("dest_dir %s is not a directory", c.DestDir))
		}
	}
	if c.GroundPolygon == "" {
		v.Problems = append(v.Problems, "ground_polygon is required")
	} else if info, err := os.Stat(c.GroundPolygon); err != nil || info.IsDir() {
		v.Problems = append(v.Problems, fmt.Sprintf("ground_polygon %s is not a file", c.GroundPolygon))
	}

	c.validateParams(v)

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

// ValidatePlan checks only what is needed to build a stage plan.
func (c *Config) ValidatePlan() error {
	v := &ValidationError{}
	c.validateParams(v)
	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func (c *Config) validateEngine(v *ValidationError) {
	if c.Engine.Dir == "" {
		v.Problems = append(v.Problems, "engine.dir is required")
	} else if !isDir(c.Engine.Dir) {
		v.Problems = append(v.Problems, fmt.Sprintf("engine.dir %s is not a directory", c.Engine.Dir))
	}
}

func (c *Config) validateParams(v *ValidationError) {
	if err := engine.ValidateCores(c.Cores); err != nil {
		v.Problems = append(v.Problems, err.Error())
	}
	if _, err := engine.ParseUnits(c.Units); err != nil {
		v.Problems = append(v.Problems, err.Error())
	}
	if _, err := engine.ParseFormat(c.Format); err != nil {
		v.Problems = append(v.Problems, err.Error())
	}
	validateGround(v, "coarse", c.Coarse)
	validateGround(v, "fine", c.Fine)
	if c.CheckTiles && c.TileBudget <= 0 {
		v.Problems = append(v.Problems, "tile_budget must be positive")
	}
}

func validateGround(v *ValidationError, name string, p engine.GroundParams) {
	if p.Step <= 0 {
		v.Problems = append(v.Problems, fmt.Sprintf("%s.step must be positive", name))
	}
	fields := []struct {
		name string
		val  float64
	}{
		{"bulge", p.Bulge},
		{"spike", p.Spike},
		{"down_spike", p.DownSpike},
		{"offset", p.Offset},
	}
	for _, f := range fields {
		if f.val < 0 {
			v.Problems = append(v.Problems, fmt.Sprintf("%s.%s must not be negative", name, f.name))
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
