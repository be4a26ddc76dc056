package analysis

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/zeu5/deep-traffic/core"
	"github.com/zeu5/deep-traffic/util"
)

type rewardDataset struct {
	Episodes  []int
	Learning  []bool
	Rewards   []float64
	Overtaken []int
	MeanSpeed []float64
	// running average of the learner's loss, 0 until defined
	Loss []float64
}

func newRewardDataset() *rewardDataset {
	return &rewardDataset{
		Episodes:  make([]int, 0),
		Learning:  make([]bool, 0),
		Rewards:   make([]float64, 0),
		Overtaken: make([]int, 0),
		MeanSpeed: make([]float64, 0),
		Loss:      make([]float64, 0),
	}
}

func (r *rewardDataset) Copy() *rewardDataset {
	return &rewardDataset{
		Episodes:  util.CopyIntSlice(r.Episodes),
		Learning:  append([]bool(nil), r.Learning...),
		Rewards:   append([]float64(nil), r.Rewards...),
		Overtaken: util.CopyIntSlice(r.Overtaken),
		MeanSpeed: append([]float64(nil), r.MeanSpeed...),
		Loss:      append([]float64(nil), r.Loss...),
	}
}

// LossSource reports a running loss, e.g. brain.Brain.AverageLoss.
type LossSource func() (float64, bool)

// RewardAnalyzer records per episode the total reward, the cars overtaken
// by the end of the episode and the mean speed of the user.
type RewardAnalyzer struct {
	dataset *rewardDataset
	loss    LossSource
}

var _ core.Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer(loss LossSource) *RewardAnalyzer {
	return &RewardAnalyzer{
		dataset: newRewardDataset(),
		loss:    loss,
	}
}

func (r *RewardAnalyzer) Analyze(eCtx *core.EpisodeContext, trace *core.Trace) {
	if trace.Error() != nil {
		return
	}
	overtaken := 0
	if last := trace.Last(); last != nil {
		v, _ := infoFloat(last, "overtaken_total")
		overtaken = int(v)
	}
	speed := 0.0
	for i := 0; i < trace.Len(); i++ {
		v, _ := infoFloat(trace.Step(i), "speed")
		speed += v
	}
	if trace.Len() > 0 {
		speed /= float64(trace.Len())
	}
	loss := 0.0
	if r.loss != nil {
		if l, ok := r.loss(); ok {
			loss = l
		}
	}

	r.dataset.Episodes = append(r.dataset.Episodes, eCtx.Episode)
	r.dataset.Learning = append(r.dataset.Learning, eCtx.Learning)
	r.dataset.Rewards = append(r.dataset.Rewards, trace.TotalReward())
	r.dataset.Overtaken = append(r.dataset.Overtaken, overtaken)
	r.dataset.MeanSpeed = append(r.dataset.MeanSpeed, speed)
	r.dataset.Loss = append(r.dataset.Loss, loss)
}

func (r *RewardAnalyzer) DataSet() core.DataSet {
	return r.dataset.Copy()
}

func (r *RewardAnalyzer) Reset() {
	r.dataset = newRewardDataset()
}

type RewardAnalyzerConstructor struct{}

var _ core.AnalyzerConstructor = &RewardAnalyzerConstructor{}

func NewRewardAnalyzerConstructor() *RewardAnalyzerConstructor {
	return &RewardAnalyzerConstructor{}
}

func (c *RewardAnalyzerConstructor) NewAnalyzer(_ string, _ int) core.Analyzer {
	return NewRewardAnalyzer(nil)
}

// RewardComparator saves the reward datasets as JSON and plots the
// episode rewards of all experiments in one HTML line chart.
type RewardComparator struct {
	savePath string
}

var _ core.Comparator = &RewardComparator{}

func NewRewardComparator(savePath string) *RewardComparator {
	return &RewardComparator{
		savePath: savePath,
	}
}

func (c *RewardComparator) Compare(experimentNames []string, datasets []core.DataSet) {
	out := make(map[string]*rewardDataset)
	for i, name := range experimentNames {
		if ds, ok := datasets[i].(*rewardDataset); ok {
			out[name] = ds
		}
	}
	util.SaveJson(path.Join(c.savePath, "rewards.json"), out)

	f, err := os.Create(path.Join(c.savePath, "rewards.html"))
	if err != nil {
		return
	}
	defer f.Close()
	plotRewards(f, experimentNames, out)
}

func plotRewards(w io.Writer, experimentNames []string, datasets map[string]*rewardDataset) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Reward per episode",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	numEpisodes := 0
	for _, ds := range datasets {
		numEpisodes = max(numEpisodes, len(ds.Rewards))
	}
	episodes := make([]string, numEpisodes)
	for i := range episodes {
		episodes[i] = fmt.Sprintf("%d", i)
	}

	line = line.SetXAxis(episodes)
	for _, name := range experimentNames {
		ds, ok := datasets[name]
		if !ok {
			continue
		}
		items := make([]opts.LineData, 0, len(ds.Rewards))
		for _, r := range ds.Rewards {
			items = append(items, opts.LineData{Value: r})
		}
		line.AddSeries(name, items)
	}

	page := components.NewPage()
	page.AddCharts(
		line,
	)
	return page.Render(w)
}

type RewardComparatorConstructor struct {
	savePath string
}

var _ core.ComparatorConstructor = &RewardComparatorConstructor{}

func NewRewardComparatorConstructor(savePath string) *RewardComparatorConstructor {
	return &RewardComparatorConstructor{
		savePath: savePath,
	}
}

func (c *RewardComparatorConstructor) NewComparator(run int) core.Comparator {
	return NewRewardComparator(path.Join(c.savePath, strconv.Itoa(run)))
}
