package traffic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/deep-traffic/benchmarks/common"
	"github.com/zeu5/deep-traffic/highway"
	"github.com/zeu5/deep-traffic/util"
)

func smallFlags(t *testing.T) *common.Flags {
	t.Helper()
	flags := common.DefaultFlags()
	flags.SavePath = t.TempDir()
	flags.Seed = 7
	flags.Episodes = 3
	flags.EvalEpisodes = 1
	flags.Horizon = 30
	flags.ExperienceSize = 500
	flags.CheckConsistency = true
	flags.Debug = true
	return flags
}

func TestPolicyConstructor(t *testing.T) {
	flags := smallFlags(t)
	for _, name := range []string{PolicyDQN, PolicyTabular, PolicySoftmax, PolicyUCB, PolicyRandom} {
		pc, err := PolicyConstructor(name, flags, util.DiscardLogger())
		require.NoError(t, err, name)
		p, err := pc.NewPolicy(120, highway.NumActions)
		require.NoError(t, err, name)
		assert.NotNil(t, p, name)
	}
	_, err := PolicyConstructor("autopilot", flags, util.DiscardLogger())
	assert.Error(t, err)
}

func TestBrainOptions(t *testing.T) {
	flags := smallFlags(t)
	flags.Episodes = 100
	flags.EvalEpisodes = 10
	flags.Horizon = 500
	options := BrainOptions(flags)
	assert.Equal(t, 22500, options.LearningStepsTotal)
	assert.Equal(t, flags.HiddenLayers, options.HiddenLayers)
	assert.Equal(t, flags.BatchSize, options.Trainer.BatchSize)

	flags.Episodes = 2
	assert.Equal(t, 100000, BrainOptions(flags).LearningStepsTotal)
}

func TestHighwayConfigFromFile(t *testing.T) {
	flags := smallFlags(t)
	flags.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewEnvironmentConstructor(flags, util.DiscardLogger())
	assert.Error(t, err)
}

func TestPrepareComparison(t *testing.T) {
	flags := smallFlags(t)
	cmp, err := PrepareComparison(flags, util.DiscardLogger())
	require.NoError(t, err)
	require.Len(t, cmp.Experiments, 5)

	results := cmp.Run(context.Background(), 1, RunConfig(flags), 2)
	require.Len(t, results, 5)
	for name, res := range results {
		require.NoError(t, res.Error, name)
		assert.Equal(t, 3, res.CompletedEpisodes, name)
		assert.Equal(t, 90, res.TotalTimeSteps, name)
	}
	for _, file := range []string{"rewards.json", "rewards.html", "coverage.json", "events.json", "errors.json"} {
		_, err := os.Stat(filepath.Join(flags.SavePath, "0", file))
		assert.NoError(t, err, file)
	}
}

func TestPrepareTraining(t *testing.T) {
	flags := smallFlags(t)
	cmp, policy, err := PrepareTraining(flags, util.DiscardLogger())
	require.NoError(t, err)

	results := cmp.Run(context.Background(), 1, RunConfig(flags))
	require.NoError(t, results["DQN"].Error)
	assert.Equal(t, 90, results["DQN"].TotalTimeSteps)
	// the last episode only evaluates
	assert.Equal(t, 60, policy.Brain().Age())
	assert.False(t, policy.Brain().Learning())

	_, err = os.Stat(filepath.Join(flags.SavePath, "train", "rewards.json"))
	assert.NoError(t, err)
}
