package sampler

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type MetricsConfig struct {
	// Address to serve Prometheus metrics on. Disabled if empty.
	Addr string `yaml:"addr"`
}

type Config struct {
	// Number of cores to sample, starting from core 0.
	// All contiguously online cores by default.
	Cores int `yaml:"cores"`

	// Pause between two sampling rounds.
	Interval time.Duration `yaml:"interval"`

	// Number of rounds to run. Zero means until interrupted.
	Iterations int `yaml:"iterations"`

	// Overrides the fixed-function counter width reported by CPUID.
	CounterWidth *int `yaml:"counter_width,omitempty"`

	// Stop with an error when a counter goes backwards between two reads
	// of the same round. Otherwise the round is only logged and counted.
	StrictMonotonic bool `yaml:"strict_monotonic"`

	// Sample an in-process simulated machine instead of /dev/cpu/*/msr.
	Simulate bool `yaml:"simulate"`

	Metrics MetricsConfig `yaml:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		Interval:        500 * time.Millisecond,
		StrictMonotonic: true,
	}
}

func (c *Config) Validate() error {
	if c.Cores < 0 {
		return fmt.Errorf("invalid number of cores %d", c.Cores)
	}
	if c.Interval < 0 {
		return fmt.Errorf("invalid interval %s", c.Interval)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("invalid number of iterations %d", c.Iterations)
	}
	if c.CounterWidth != nil && (*c.CounterWidth < 0 || *c.CounterWidth > 64) {
		return fmt.Errorf("invalid counter width %d", *c.CounterWidth)
	}
	return nil
}

// LoadConfig overlays the YAML file on top of conf.
func LoadConfig(path string, conf *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	err = yaml.Unmarshal(data, conf)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return conf.Validate()
}
