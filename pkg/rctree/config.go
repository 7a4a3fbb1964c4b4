package rctree

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxCap replaces a non-positive capacitance limit.
const DefaultMaxCap = 10.0

// Config controls one tree build.
type Config struct {
	// Merging
	MaxCap       float64 `yaml:"max_cap"`       // Flush when the running total cap exceeds this (default: 10)
	Corner       int     `yaml:"corner"`        // Extraction corner driving the max-cap test (default: 0)
	MillerFactor float64 `yaml:"miller_factor"` // Coupling cap multiplier (default: 1)

	// Tree shape
	Reset          bool `yaml:"reset"`           // Return pooled nodes before building (default: true)
	DummyJunctions bool `yaml:"dummy_junctions"` // Move fanout onto zero-valued junctions (default: true)
	ForBuffering   bool `yaml:"for_buffering"`   // Require coordinates on SPEF data (default: false)
	PreMerge       bool `yaml:"pre_merge"`       // Merge segment runs in the provider first (default: false)

	// Debugging
	Test     int    `yaml:"test"`      // >1 writes <netid>.flow.dbg and <netid>.node.dbg
	DebugDir string `yaml:"debug_dir"` // Directory for debug dumps (default: current directory)
	PrintTag string `yaml:"print_tag"` // If set, MakeTreeByID writes <tag>_net<id>_tnode
}

// DefaultConfig returns the settings used by the batch driver.
func DefaultConfig() *Config {
	return &Config{
		MaxCap:         DefaultMaxCap,
		Corner:         0,
		MillerFactor:   1,
		Reset:          true,
		DummyJunctions: true,
	}
}

// Validate normalizes out-of-range values and rejects unusable ones.
func (c *Config) Validate() error {
	if !(c.MaxCap > 0) {
		c.MaxCap = DefaultMaxCap
	}
	if c.Corner < 0 {
		return fmt.Errorf("rctree: negative corner %d", c.Corner)
	}
	if c.MillerFactor < 0 {
		return fmt.Errorf("rctree: negative miller factor %g", c.MillerFactor)
	}
	return nil
}

// LoadConfig reads a YAML configuration on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rctree: failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("rctree: failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
