package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeu5/deep-traffic/benchmarks/common"
)

var (
	flags      *common.Flags = common.DefaultFlags()
	savePath   string
	configPath string
	logLevel   string
	envFile    string

	patchesAhead     int
	patchesBehind    int
	lanesSide        int
	seed             int64
	checkConsistency bool

	numRuns                int
	episodes               int
	evalEpisodes           int
	horizon                int
	maxConsecutiveErrors   int
	maxConsecutiveTimeouts int
	episodeTimeout         int
	parallelism            int
	debug                  bool

	temporalWindow int
	experienceSize int
	hiddenLayers   []int
	gamma          float64
	learningRate   float64
	batchSize      int
)

func AddFlags(cmd *cobra.Command) {
	addSessionFlags(cmd.PersistentFlags())
	addHighwayFlags(cmd.PersistentFlags())
	addRunFlags(cmd.PersistentFlags())
	addBrainFlags(cmd.PersistentFlags())
}

func addSessionFlags(fs *pflag.FlagSet) {
	fs.StringVar(&savePath, "save-path", flags.SavePath, "Path to save results")
	fs.StringVar(&configPath, "config", flags.ConfigPath, "Highway configuration file (yaml), defaults are used when empty")
	fs.StringVar(&logLevel, "log-level", flags.LogLevel, "Log level")
	fs.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
}

func addHighwayFlags(fs *pflag.FlagSet) {
	fs.IntVar(&patchesAhead, "patches-ahead", flags.PatchesAhead, "Patches ahead of the user seen by the agent")
	fs.IntVar(&patchesBehind, "patches-behind", flags.PatchesBehind, "Patches behind the user seen by the agent")
	fs.IntVar(&lanesSide, "lanes-side", flags.LanesSide, "Lanes on each side of the user seen by the agent")
	fs.Int64Var(&seed, "seed", flags.Seed, "Seed of the highway random source")
	fs.BoolVar(&checkConsistency, "check-consistency", flags.CheckConsistency, "Verify the grid after every tick")
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.IntVar(&numRuns, "num-runs", flags.NumRuns, "Number of runs")
	fs.IntVar(&episodes, "episodes", flags.Episodes, "Number of episodes")
	fs.IntVar(&evalEpisodes, "eval-episodes", flags.EvalEpisodes, "Number of final episodes run without learning")
	fs.IntVar(&horizon, "horizon", flags.Horizon, "Ticks per episode")
	fs.IntVar(&maxConsecutiveErrors, "max-consecutive-errors", flags.MaxConsecutiveErrors, "Maximum number of consecutive errors")
	fs.IntVar(&maxConsecutiveTimeouts, "max-consecutive-timeouts", flags.MaxConsecutiveTimeouts, "Maximum number of consecutive timeouts")
	fs.IntVar(&episodeTimeout, "episode-timeout", int(flags.EpisodeTimeout.Seconds()), "Episode timeout in seconds")
	fs.IntVar(&parallelism, "parallelism", flags.Parallelism, "Number of parallel runs")
	fs.BoolVar(&debug, "debug", flags.Debug, "Write the traces of the last episodes")
}

func addBrainFlags(fs *pflag.FlagSet) {
	fs.IntVar(&temporalWindow, "temporal-window", flags.TemporalWindow, "Past states and actions fed to the network")
	fs.IntVar(&experienceSize, "experience-size", flags.ExperienceSize, "Replay buffer capacity")
	fs.IntSliceVar(&hiddenLayers, "hidden-layers", flags.HiddenLayers, "Neurons of each hidden layer")
	fs.Float64Var(&gamma, "gamma", flags.Gamma, "Discount factor")
	fs.Float64Var(&learningRate, "learning-rate", flags.LearningRate, "SGD learning rate")
	fs.IntVar(&batchSize, "batch-size", flags.BatchSize, "Minibatch size")
}

func UpdateFlags() {
	flags.SavePath = savePath
	flags.ConfigPath = configPath
	flags.LogLevel = logLevel

	flags.PatchesAhead = patchesAhead
	flags.PatchesBehind = patchesBehind
	flags.LanesSide = lanesSide
	flags.Seed = seed
	flags.CheckConsistency = checkConsistency

	flags.NumRuns = numRuns
	flags.Episodes = episodes
	flags.EvalEpisodes = evalEpisodes
	flags.Horizon = horizon
	flags.MaxConsecutiveErrors = maxConsecutiveErrors
	flags.MaxConsecutiveTimeouts = maxConsecutiveTimeouts
	flags.EpisodeTimeout = time.Duration(episodeTimeout) * time.Second
	flags.Parallelism = parallelism
	flags.Debug = debug

	flags.TemporalWindow = temporalWindow
	flags.ExperienceSize = experienceSize
	flags.HiddenLayers = hiddenLayers
	flags.Gamma = gamma
	flags.LearningRate = learningRate
	flags.BatchSize = batchSize
}
