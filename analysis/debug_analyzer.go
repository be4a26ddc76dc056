package analysis

import (
	"bytes"
	"fmt"
	"os"
	"path"

	"github.com/zeu5/deep-traffic/core"
)

// PrintDebugAnalyzer writes every episode trace once the episode number
// reaches a threshold.
type PrintDebugAnalyzer struct {
	// savePath is the path to save the trace
	savePath string
	exp      string
	// will save the trace to the file only after the episode number exceeds this threshold
	thresholdEpisode int
}

var _ core.Analyzer = &PrintDebugAnalyzer{}

func NewPrintDebugAnalyzer(savePath string, threshold int) *PrintDebugAnalyzer {
	// create a traces directory under save path if not exists
	if _, err := os.Stat(path.Join(savePath, "traces")); os.IsNotExist(err) {
		os.MkdirAll(path.Join(savePath, "traces"), 0755)
	}
	return &PrintDebugAnalyzer{
		savePath:         path.Join(savePath, "traces"),
		thresholdEpisode: threshold,
	}
}

func (a *PrintDebugAnalyzer) Analyze(ctx *core.EpisodeContext, trace *core.Trace) {
	if ctx.Episode < a.thresholdEpisode {
		return
	}
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "Learning: %v\nTotal reward: %.4f\n\n", ctx.Learning, trace.TotalReward())
	buf.WriteString(traceToString(trace))

	fileName := fmt.Sprintf("%d_trace_%d.txt", ctx.Run, ctx.Episode)
	if a.exp != "" {
		fileName = fmt.Sprintf("%d_%s_trace_%d.txt", ctx.Run, a.exp, ctx.Episode)
	}
	file := path.Join(a.savePath, fileName)
	os.WriteFile(file, buf.Bytes(), 0644)
}

func (a *PrintDebugAnalyzer) DataSet() core.DataSet {
	return nil
}

func (a *PrintDebugAnalyzer) Reset() {
	// do nothing
}

type PrintDebugAnalyzerConstructor struct {
	SavePath         string
	ThresholdEpisode int
}

var _ core.AnalyzerConstructor = &PrintDebugAnalyzerConstructor{}

func NewPrintDebugAnalyzerConstructor(savePath string, thresholdEpisode int) *PrintDebugAnalyzerConstructor {
	return &PrintDebugAnalyzerConstructor{
		SavePath:         savePath,
		ThresholdEpisode: thresholdEpisode,
	}
}

func (c *PrintDebugAnalyzerConstructor) NewAnalyzer(exp string, _ int) core.Analyzer {
	a := NewPrintDebugAnalyzer(c.SavePath, c.ThresholdEpisode)
	a.exp = exp
	return a
}
