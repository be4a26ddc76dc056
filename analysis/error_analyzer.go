package analysis

import (
	"bytes"
	"fmt"
	"os"
	"path"

	"github.com/zeu5/deep-traffic/core"
)

// ErrorAnalyzer writes the trace of every failed episode along with its error.
type ErrorAnalyzer struct {
	savePath string
	exp      string
	errors   int
}

var _ core.Analyzer = &ErrorAnalyzer{}

func NewErrorAnalyzer(savePath string) *ErrorAnalyzer {
	if _, err := os.Stat(path.Join(savePath, "errors")); os.IsNotExist(err) {
		os.MkdirAll(path.Join(savePath, "errors"), 0755)
	}
	return &ErrorAnalyzer{
		savePath: path.Join(savePath, "errors"),
	}
}

func (a *ErrorAnalyzer) Analyze(ctx *core.EpisodeContext, trace *core.Trace) {
	err := trace.Error()
	if err == nil {
		return
	}
	a.errors++
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "Error: %s\n", err)
	buf.WriteString(traceToString(trace))

	fileName := fmt.Sprintf("%d_error_%d.txt", ctx.Run, ctx.Episode)
	if a.exp != "" {
		fileName = fmt.Sprintf("%d_%s_error_%d.txt", ctx.Run, a.exp, ctx.Episode)
	}
	file := path.Join(a.savePath, fileName)
	os.WriteFile(file, buf.Bytes(), 0644)
}

// DataSet is the number of failed episodes.
func (a *ErrorAnalyzer) DataSet() core.DataSet {
	return a.errors
}

func (a *ErrorAnalyzer) Reset() {
	a.errors = 0
}

type ErrorAnalyzerConstructor struct {
	SavePath string
}

var _ core.AnalyzerConstructor = &ErrorAnalyzerConstructor{}

func NewErrorAnalyzerConstructor(savePath string) *ErrorAnalyzerConstructor {
	return &ErrorAnalyzerConstructor{
		SavePath: savePath,
	}
}

func (e *ErrorAnalyzerConstructor) NewAnalyzer(exp string, _ int) core.Analyzer {
	a := NewErrorAnalyzer(e.SavePath)
	a.exp = exp
	return a
}
