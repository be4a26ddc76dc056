package traffic

import (
	"fmt"
	"path"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/deep-traffic/analysis"
	"github.com/zeu5/deep-traffic/benchmarks/common"
	"github.com/zeu5/deep-traffic/brain"
	"github.com/zeu5/deep-traffic/core"
	"github.com/zeu5/deep-traffic/highway"
	"github.com/zeu5/deep-traffic/policies"
)

// Policy names accepted on the command line.
const (
	PolicyDQN     = "dqn"
	PolicyTabular = "tabular"
	PolicySoftmax = "softmax"
	PolicyUCB     = "ucb"
	PolicyRandom  = "random"
)

func HighwayConfig(flags *common.Flags) (*highway.Config, error) {
	if flags.ConfigPath == "" {
		return highway.DefaultConfig(), nil
	}
	return highway.LoadConfig(flags.ConfigPath)
}

func EnvConfig(flags *common.Flags) highway.EnvConfig {
	env := highway.DefaultEnvConfig()
	env.PatchesAhead = flags.PatchesAhead
	env.PatchesBehind = flags.PatchesBehind
	env.LanesSide = flags.LanesSide
	env.CheckConsistency = flags.CheckConsistency
	return env
}

func BrainOptions(flags *common.Flags) brain.Options {
	options := brain.DefaultOptions()
	options.TemporalWindow = flags.TemporalWindow
	options.ExperienceSize = flags.ExperienceSize
	options.HiddenLayers = append([]int(nil), flags.HiddenLayers...)
	options.Gamma = flags.Gamma
	options.Trainer.LearningRate = flags.LearningRate
	options.Trainer.BatchSize = flags.BatchSize
	// anneal epsilon over half of the learning ticks
	learningTicks := (flags.Episodes - flags.EvalEpisodes) * flags.Horizon
	if learningTicks/2 > options.LearningStepsBurnin {
		options.LearningStepsTotal = learningTicks / 2
	}
	return options
}

func NewEnvironmentConstructor(flags *common.Flags, logger *logrus.Entry) (*highway.EnvironmentConstructor, error) {
	config, err := HighwayConfig(flags)
	if err != nil {
		return nil, err
	}
	return highway.NewEnvironmentConstructor(config, EnvConfig(flags), flags.Seed, logger)
}

// PolicyConstructor maps a policy name to its constructor.
func PolicyConstructor(name string, flags *common.Flags, logger *logrus.Entry) (core.PolicyConstructor, error) {
	switch name {
	case PolicyDQN:
		return policies.NewDQNPolicyConstructor(BrainOptions(flags), logger), nil
	case PolicyTabular:
		return policies.NewTabularPolicyConstructor(0.2, 0.9, 0.05), nil
	case PolicySoftmax:
		return policies.NewSoftmaxPolicyConstructor(0.3, 0.9, 1), nil
	case PolicyUCB:
		return policies.NewUCBPolicyConstructor(policies.UCBParams{
			Horizon:  flags.Horizon,
			Episodes: flags.Episodes,
			Constant: 0.01,
			Epsilon:  0.05,
			Gamma:    0.9,
		}), nil
	case PolicyRandom:
		return &policies.RandomPolicyConstructor{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

func addFileAnalyses(flags *common.Flags, add func(string, core.AnalyzerConstructor, core.ComparatorConstructor)) {
	if flags.Debug {
		add("Debug", analysis.NewPrintDebugAnalyzerConstructor(flags.SavePath, flags.Episodes-10), analysis.NewNoOpComparatorConstructor())
	}
	add("Errors", analysis.NewErrorAnalyzerConstructor(flags.SavePath), analysis.NewJSONComparatorConstructor(flags.SavePath, "errors.json"))
	add("Events", analysis.NewEventAnalyzerConstructor(flags.SavePath, analysis.StalledEvent(), analysis.OvertakenEvent(10)), analysis.NewJSONComparatorConstructor(flags.SavePath, "events.json"))
}

// PrepareComparison runs every policy on its own highway in parallel.
func PrepareComparison(flags *common.Flags, logger *logrus.Entry) (*core.ParallelComparison, error) {
	envConstructor, err := NewEnvironmentConstructor(flags, logger)
	if err != nil {
		return nil, err
	}
	cmp := core.NewParallelComparison()

	addFileAnalyses(flags, cmp.AddAnalysis)
	cmp.AddAnalysis("Rewards", analysis.NewRewardAnalyzerConstructor(), analysis.NewRewardComparatorConstructor(flags.SavePath))
	cmp.AddAnalysis("Coverage", analysis.NewCoverageAnalyzerConstructor(), analysis.NewJSONComparatorConstructor(flags.SavePath, "coverage.json"))

	for _, e := range []struct{ name, policy string }{
		{"Random", PolicyRandom},
		{"Tabular", PolicyTabular},
		{"Softmax", PolicySoftmax},
		{"UCB", PolicyUCB},
		{"DQN", PolicyDQN},
	} {
		policy, err := PolicyConstructor(e.policy, flags, logger.WithField("experiment", e.name))
		if err != nil {
			return nil, err
		}
		cmp.AddExperiment(&core.ParallelExperiment{
			Name:        e.name,
			Environment: envConstructor,
			Policy:      policy,
		})
	}
	return cmp, nil
}

// PrepareTraining trains a single DQN agent and tracks its loss next to
// the episode rewards.
func PrepareTraining(flags *common.Flags, logger *logrus.Entry) (*core.Comparison, *policies.DQNPolicy, error) {
	envConstructor, err := NewEnvironmentConstructor(flags, logger)
	if err != nil {
		return nil, nil, err
	}
	env := envConstructor.NewEnvironment(0)
	b, err := brain.New(env.NumStates(), env.NumActions(), BrainOptions(flags), logger.WithField("experiment", "DQN"))
	if err != nil {
		return nil, nil, err
	}
	policy := policies.NewDQNPolicy(b)
	agent, err := core.NewAgent(policy)
	if err != nil {
		return nil, nil, err
	}

	cmp := core.NewComparison()
	run := path.Join(flags.SavePath, "train")
	addFileAnalyses(flags, func(name string, a core.AnalyzerConstructor, c core.ComparatorConstructor) {
		cmp.AddAnalysis(name, a.NewAnalyzer("DQN", 0), c.NewComparator(0))
	})
	cmp.AddAnalysis("Rewards", analysis.NewRewardAnalyzer(b.AverageLoss), analysis.NewRewardComparator(run))
	cmp.AddAnalysis("Coverage", analysis.NewCoverageAnalyzer(), analysis.NewJSONComparator(run, "coverage.json"))
	cmp.AddExperiment(&core.Experiment{
		Name:        "DQN",
		Environment: env,
		Agent:       agent,
	})
	return cmp, policy, nil
}

func RunConfig(flags *common.Flags) *core.RunConfig {
	return &core.RunConfig{
		Episodes:                     flags.Episodes,
		EvalEpisodes:                 flags.EvalEpisodes,
		Horizon:                      flags.Horizon,
		ThresholdConsecutiveErrors:   flags.MaxConsecutiveErrors,
		ThresholdConsecutiveTimeouts: flags.MaxConsecutiveTimeouts,
		EpisodeTimeout:               flags.EpisodeTimeout,
	}
}
