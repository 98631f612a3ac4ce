// Package config provides configuration loading and access for the arena simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Motion model names accepted in robot.motion_model.
const (
	MotionDifferential = "differential"
	MotionVelocity     = "velocity"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Arena     ArenaConfig     `yaml:"arena"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Robot     RobotConfig     `yaml:"robot"`
	Localizer LocalizerConfig `yaml:"localizer"`
	Coverage  CoverageConfig  `yaml:"coverage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ArenaConfig holds the arena dimensions in world units.
type ArenaConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PhysicsConfig holds integration parameters.
type PhysicsConfig struct {
	DT float64 `yaml:"dt"` // Seconds per tick
}

// RobotConfig holds robot body, sensor and actuator parameters.
type RobotConfig struct {
	Radius          float64 `yaml:"radius"`
	NumSensors      int     `yaml:"num_sensors"`
	MaxSensorLength float64 `yaml:"max_sensor_length"` // Measured from the hull
	MotionModel     string  `yaml:"motion_model"`      // "differential" or "velocity"
	WheelBase       float64 `yaml:"wheel_base"`        // 0 = twice the radius
	MaxSpeed        float64 `yaml:"max_speed"`         // Per wheel, or linear speed
	MaxTurnRate     float64 `yaml:"max_turn_rate"`     // Radians per second (velocity model)
	BeaconRange     float64 `yaml:"beacon_range"`      // 0 = unlimited
}

// LocalizerConfig holds Kalman filter noise parameters.
// Each slice is the diagonal of a 3x3 matrix over (x, y, heading).
type LocalizerConfig struct {
	Enabled          bool      `yaml:"enabled"`
	InitialSigma     []float64 `yaml:"initial_sigma"`
	ProcessNoise     []float64 `yaml:"process_noise"`
	MeasurementNoise []float64 `yaml:"measurement_noise"`
	Refine           bool      `yaml:"refine"` // Polish beacon fixes with range-residual minimization
}

// CoverageConfig holds dust grid parameters.
type CoverageConfig struct {
	CellSize float64 `yaml:"cell_size"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	WheelBase     float64 // Robot.WheelBase, or 2*Radius when unset
	SensorSpacing float64 // Angle between adjacent sensor rays
	StatsTicks    int     // Telemetry.StatsWindow expressed in ticks
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports the first parameter that cannot produce a valid arena or robot.
func (c *Config) Validate() error {
	switch {
	case c.Arena.Width <= 0 || c.Arena.Height <= 0:
		return fmt.Errorf("config: arena dimensions must be positive, got %gx%g", c.Arena.Width, c.Arena.Height)
	case c.Physics.DT <= 0:
		return fmt.Errorf("config: physics.dt must be positive, got %g", c.Physics.DT)
	case c.Robot.Radius <= 0:
		return fmt.Errorf("config: robot.radius must be positive, got %g", c.Robot.Radius)
	case c.Robot.NumSensors <= 0:
		return fmt.Errorf("config: robot.num_sensors must be positive, got %d", c.Robot.NumSensors)
	case c.Robot.MotionModel != MotionDifferential && c.Robot.MotionModel != MotionVelocity:
		return fmt.Errorf("config: unknown robot.motion_model %q", c.Robot.MotionModel)
	case c.Coverage.CellSize <= 0:
		return fmt.Errorf("config: coverage.cell_size must be positive, got %g", c.Coverage.CellSize)
	}
	for name, diag := range map[string][]float64{
		"initial_sigma":     c.Localizer.InitialSigma,
		"process_noise":     c.Localizer.ProcessNoise,
		"measurement_noise": c.Localizer.MeasurementNoise,
	} {
		if len(diag) != 3 {
			return fmt.Errorf("config: localizer.%s needs 3 values, got %d", name, len(diag))
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.WheelBase = c.Robot.WheelBase
	if c.Derived.WheelBase == 0 {
		c.Derived.WheelBase = 2 * c.Robot.Radius
	}
	c.Derived.SensorSpacing = 2 * math.Pi / float64(c.Robot.NumSensors)
	c.Derived.StatsTicks = int(math.Round(c.Telemetry.StatsWindow / c.Physics.DT))
	if c.Derived.StatsTicks < 1 {
		c.Derived.StatsTicks = 1
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
