package highway

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig = errors.New("invalid highway configuration")
)

type PatchBounds struct {
	Minimum int `yaml:"minimum" json:"minimum"`
	Maximum int `yaml:"maximum" json:"maximum"`
}

func (b PatchBounds) clamp(v int) int {
	if v < b.Minimum {
		return b.Minimum
	}
	if v > b.Maximum {
		return b.Maximum
	}
	return v
}

type Patches struct {
	Ahead  PatchBounds `yaml:"ahead" json:"ahead"`
	Behind PatchBounds `yaml:"behind" json:"behind"`
}

// Config is the validated shape of the highway constants.
type Config struct {
	NumberOfLanes       int         `yaml:"numberOfLanes" json:"numberOfLanes"`
	Patches             Patches     `yaml:"patches" json:"patches"`
	SafeDistance        int         `yaml:"safeDistance" json:"safeDistance"`
	CarSize             int         `yaml:"carSize" json:"carSize"`
	StraightProbability float64     `yaml:"straightProbability" json:"straightProbability"`
	SpeedPatchRatio     []SpeedTier `yaml:"speedPatchRatio" json:"speedPatchRatio"`

	// Spawn probabilities per tick: the baseline, and the value used
	// right after a car has left the window.
	NewCarProbability     float64 `yaml:"newCarProbability" json:"newCarProbability"`
	BoostedCarProbability float64 `yaml:"boostedCarProbability" json:"boostedCarProbability"`
}

func DefaultConfig() *Config {
	return &Config{
		NumberOfLanes: 7,
		Patches: Patches{
			Ahead:  PatchBounds{Minimum: 30, Maximum: 100},
			Behind: PatchBounds{Minimum: 10, Maximum: 30},
		},
		SafeDistance:        2,
		CarSize:             4,
		StraightProbability: 0.9,
		SpeedPatchRatio: []SpeedTier{
			{Speed: 50, Patches: 1},
			{Speed: 70, Patches: 2},
			{Speed: 90, Patches: 3},
			{Speed: 110, Patches: 4},
		},
		NewCarProbability:     0.2,
		BoostedCarProbability: 0.8,
	}
}

// LoadConfig reads a yaml (or json, which is valid yaml) file and validates it.
// Unset spawn probabilities fall back to the defaults.
func LoadConfig(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	def := DefaultConfig()
	if cfg.NewCarProbability == 0 {
		cfg.NewCarProbability = def.NewCarProbability
	}
	if cfg.BoostedCarProbability == 0 {
		cfg.BoostedCarProbability = def.BoostedCarProbability
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func validBounds(name string, b PatchBounds) error {
	if b.Minimum < 0 || b.Maximum < 0 {
		return invalid("patches.%s bounds must be non-negative, got [%d, %d]", name, b.Minimum, b.Maximum)
	}
	if b.Minimum > b.Maximum {
		return invalid("patches.%s minimum %d exceeds maximum %d", name, b.Minimum, b.Maximum)
	}
	return nil
}

// Validate checks the value ranges and then the relationships between
// window sizes, car size and safe distance.
func (c *Config) Validate() error {
	if c.NumberOfLanes < 1 {
		return invalid("numberOfLanes must be at least 1, got %d", c.NumberOfLanes)
	}
	if err := validBounds("ahead", c.Patches.Ahead); err != nil {
		return err
	}
	if err := validBounds("behind", c.Patches.Behind); err != nil {
		return err
	}
	if c.SafeDistance < 0 {
		return invalid("safeDistance must be non-negative, got %d", c.SafeDistance)
	}
	if c.CarSize < 0 {
		return invalid("carSize must be non-negative, got %d", c.CarSize)
	}
	if c.StraightProbability < 0 || c.StraightProbability > 1 {
		return invalid("straightProbability must be in [0, 1], got %v", c.StraightProbability)
	}
	for _, p := range []float64{c.NewCarProbability, c.BoostedCarProbability} {
		if p < 0 || p > 1 {
			return invalid("car spawn probabilities must be in [0, 1], got %v", p)
		}
	}
	if _, err := NewSpeedTable(c.SpeedPatchRatio, nil); err != nil {
		return err
	}

	// Relationships
	if c.CarSize == 0 {
		return invalid("carSize 0 leaves cars without cells on the grid")
	}
	if c.Patches.Ahead.Minimum < 1 {
		return invalid("patches.ahead.minimum must leave room for the user car")
	}
	if c.Patches.Behind.Minimum+1 < c.CarSize {
		return invalid("patches.behind.minimum %d cannot hold the rear of a car of size %d", c.Patches.Behind.Minimum, c.CarSize)
	}
	if c.Patches.Ahead.Minimum+c.Patches.Behind.Minimum <= c.CarSize+c.SafeDistance {
		return invalid("window of %d patches is too small for carSize %d plus safeDistance %d",
			c.Patches.Ahead.Minimum+c.Patches.Behind.Minimum, c.CarSize, c.SafeDistance)
	}
	return nil
}
