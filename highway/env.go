package highway

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/deep-traffic/core"
)

// EnvConfig is the window an agent drives with and how its ticks are scored.
type EnvConfig struct {
	PatchesAhead  int          `yaml:"patchesAhead" json:"patchesAhead"`
	PatchesBehind int          `yaml:"patchesBehind" json:"patchesBehind"`
	LanesSide     int          `yaml:"lanesSide" json:"lanesSide"`
	Reward        RewardConfig `yaml:"reward" json:"reward"`
	// CheckConsistency verifies the grid after every tick and fails the
	// step when it is broken.
	CheckConsistency bool `yaml:"checkConsistency" json:"checkConsistency"`
}

func DefaultEnvConfig() EnvConfig {
	return EnvConfig{
		PatchesAhead:  30,
		PatchesBehind: 10,
		LanesSide:     1,
		Reward:        DefaultRewardConfig(),
	}
}

// Environment exposes a Simulation through the step protocol of the runner.
type Environment struct {
	sim       *Simulation
	config    EnvConfig
	numStates int
}

var _ core.Environment = &Environment{}

func NewEnvironment(sim *Simulation, config EnvConfig) *Environment {
	return &Environment{
		sim:       sim,
		config:    config,
		numStates: sim.ObservationSize(config.PatchesAhead, config.PatchesBehind, config.LanesSide),
	}
}

func (e *Environment) Simulation() *Simulation {
	return e.sim
}

func (e *Environment) generate() core.Observation {
	e.sim.Reset()
	e.sim.Generate(e.config.PatchesAhead, e.config.PatchesBehind, e.config.LanesSide)
	return core.Observation(e.sim.Observe())
}

func (e *Environment) Reset() (core.Observation, error) {
	return e.generate(), nil
}

func (e *Environment) Step(action int, ctx *core.StepContext) (*core.Transition, error) {
	if !e.sim.Generated() {
		e.generate()
	}
	requested := ActionFromIndex(action)
	res := e.sim.Update(requested)
	if e.config.CheckConsistency {
		if err := e.sim.CheckConsistency(); err != nil {
			return nil, fmt.Errorf("tick %d: %w", e.sim.Tick(), err)
		}
	}
	return &core.Transition{
		Observation: core.Observation(e.sim.Observe()),
		Reward:      e.config.Reward.Reward(res, requested, e.sim.Speeds()),
		Info: map[string]interface{}{
			"action":          res.Action.String(),
			"overtaken_delta": res.OvertakenDelta,
			"overtaken_total": e.sim.OvertakenCars(),
			"speed":           res.UserSpeed,
			"lane":            e.sim.UserLane(),
		},
	}, nil
}

func (e *Environment) NumStates() int {
	return e.numStates
}

func (e *Environment) NumActions() int {
	return NumActions
}

// EnvironmentConstructor builds one independent simulation per worker,
// seeded with Seed plus the worker's instance number.
type EnvironmentConstructor struct {
	config *Config
	env    EnvConfig
	seed   int64
	logger *logrus.Entry
}

var _ core.EnvironmentConstructor = &EnvironmentConstructor{}

func NewEnvironmentConstructor(config *Config, env EnvConfig, seed int64, logger *logrus.Entry) (*EnvironmentConstructor, error) {
	if config == nil {
		return nil, invalid("no configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &EnvironmentConstructor{
		config: config,
		env:    env,
		seed:   seed,
		logger: logger,
	}, nil
}

func (c *EnvironmentConstructor) NewEnvironment(instance int) core.Environment {
	// the configuration was validated by NewEnvironmentConstructor
	sim, _ := NewSimulation(
		c.config,
		WithRand(rand.New(rand.NewSource(c.seed+int64(instance)))),
		WithLogger(c.logger.WithField("instance", instance)),
	)
	return NewEnvironment(sim, c.env)
}
