package analysis

import (
	"path"
	"strconv"

	"github.com/zeu5/deep-traffic/core"
	"github.com/zeu5/deep-traffic/util"
)

type coverageDataset struct {
	Timesteps    []int
	UniqueStates []int
}

func (c *coverageDataset) Copy() *coverageDataset {
	return &coverageDataset{
		Timesteps:    util.CopyIntSlice(c.Timesteps),
		UniqueStates: util.CopyIntSlice(c.UniqueStates),
	}
}

// CoverageAnalyzer counts the distinct observations seen so far.
type CoverageAnalyzer struct {
	states  map[string]bool
	dataset *coverageDataset
}

var _ core.Analyzer = &CoverageAnalyzer{}

func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{
		states: make(map[string]bool),
		dataset: &coverageDataset{
			Timesteps:    make([]int, 0),
			UniqueStates: make([]int, 0),
		},
	}
}

func (c *CoverageAnalyzer) Reset() {
	c.states = make(map[string]bool)
	c.dataset = &coverageDataset{
		Timesteps:    make([]int, 0),
		UniqueStates: make([]int, 0),
	}
}

func (c *CoverageAnalyzer) Analyze(_ *core.EpisodeContext, trace *core.Trace) {
	for i := 0; i < trace.Len(); i++ {
		c.states[util.JsonHash(trace.Step(i).Observation)] = true
	}
	lastTimeStep := 0
	if len(c.dataset.Timesteps) > 0 {
		lastTimeStep = c.dataset.Timesteps[len(c.dataset.Timesteps)-1]
	}
	c.dataset.Timesteps = append(c.dataset.Timesteps, lastTimeStep+trace.Len())
	c.dataset.UniqueStates = append(c.dataset.UniqueStates, len(c.states))
}

func (c *CoverageAnalyzer) DataSet() core.DataSet {
	return c.dataset.Copy()
}

type CoverageAnalyzerConstructor struct{}

var _ core.AnalyzerConstructor = &CoverageAnalyzerConstructor{}

func NewCoverageAnalyzerConstructor() *CoverageAnalyzerConstructor {
	return &CoverageAnalyzerConstructor{}
}

func (c *CoverageAnalyzerConstructor) NewAnalyzer(_ string, _ int) core.Analyzer {
	return NewCoverageAnalyzer()
}

// JSONComparator saves the datasets of all experiments keyed by name.
type JSONComparator struct {
	savePath string
}

var _ core.Comparator = &JSONComparator{}

func NewJSONComparator(savePath, fileName string) *JSONComparator {
	return &JSONComparator{
		savePath: path.Join(savePath, fileName),
	}
}

func (c *JSONComparator) Compare(experimentNames []string, datasets []core.DataSet) {
	out := make(map[string]core.DataSet)
	for i, name := range experimentNames {
		if datasets[i] != nil {
			out[name] = datasets[i]
		}
	}

	util.SaveJson(c.savePath, out)
}

type JSONComparatorConstructor struct {
	savePath string
	fileName string
}

var _ core.ComparatorConstructor = &JSONComparatorConstructor{}

func NewJSONComparatorConstructor(savePath, fileName string) *JSONComparatorConstructor {
	return &JSONComparatorConstructor{
		savePath: savePath,
		fileName: fileName,
	}
}

func (c *JSONComparatorConstructor) NewComparator(run int) core.Comparator {
	return NewJSONComparator(path.Join(c.savePath, strconv.Itoa(run)), c.fileName)
}
