package analysis

import (
	"fmt"
	"os"
	"path"

	"github.com/zeu5/deep-traffic/core"
)

// EventSpec names a property of a whole episode.
type EventSpec struct {
	Name  string
	Check func(*core.Trace) bool
}

// StalledEvent fires when the user's speed never changed during the episode.
func StalledEvent() EventSpec {
	return EventSpec{
		Name: "stalled",
		Check: func(t *core.Trace) bool {
			if t.Len() == 0 {
				return false
			}
			first, ok := infoFloat(t.Step(0), "speed")
			if !ok {
				return false
			}
			for i := 1; i < t.Len(); i++ {
				if s, _ := infoFloat(t.Step(i), "speed"); s != first {
					return false
				}
			}
			return true
		},
	}
}

// OvertakenEvent fires when the user ends the episode at least n cars ahead.
func OvertakenEvent(n int) EventSpec {
	return EventSpec{
		Name: fmt.Sprintf("overtaken_%d", n),
		Check: func(t *core.Trace) bool {
			last := t.Last()
			if last == nil {
				return false
			}
			total, ok := infoFloat(last, "overtaken_total")
			return ok && total >= float64(n)
		},
	}
}

// EventAnalyzer counts the episodes matching each event and writes their
// traces under <savePath>/events.
type EventAnalyzer struct {
	events   []EventSpec
	savePath string
	exp      string
	counts   map[string]int
}

var _ core.Analyzer = &EventAnalyzer{}

func NewEventAnalyzer(savePath string, events ...EventSpec) *EventAnalyzer {
	if _, err := os.Stat(path.Join(savePath, "events")); os.IsNotExist(err) {
		os.MkdirAll(path.Join(savePath, "events"), 0755)
	}
	return &EventAnalyzer{
		events:   events,
		savePath: path.Join(savePath, "events"),
		counts:   make(map[string]int),
	}
}

func (ea *EventAnalyzer) Analyze(eCtx *core.EpisodeContext, trace *core.Trace) {
	for _, event := range ea.events {
		if !event.Check(trace) {
			continue
		}
		ea.counts[event.Name]++
		fileName := path.Join(ea.savePath, fmt.Sprintf("%d_%s_%d.txt", eCtx.Run, event.Name, eCtx.Episode))
		if ea.exp != "" {
			fileName = path.Join(ea.savePath, fmt.Sprintf("%d_%s_%s_%d.txt", eCtx.Run, ea.exp, event.Name, eCtx.Episode))
		}

		os.WriteFile(fileName, []byte(traceToString(trace)), 0644)
	}
}

func (ea *EventAnalyzer) DataSet() core.DataSet {
	out := make(map[string]int)
	for k, v := range ea.counts {
		out[k] = v
	}
	return out
}

func (ea *EventAnalyzer) Reset() {
	ea.counts = make(map[string]int)
}

type EventAnalyzerConstructor struct {
	SavePath string
	Events   []EventSpec
}

var _ core.AnalyzerConstructor = &EventAnalyzerConstructor{}

func NewEventAnalyzerConstructor(savePath string, events ...EventSpec) *EventAnalyzerConstructor {
	return &EventAnalyzerConstructor{
		SavePath: savePath,
		Events:   events,
	}
}

func (e *EventAnalyzerConstructor) NewAnalyzer(exp string, _ int) core.Analyzer {
	a := NewEventAnalyzer(e.SavePath, e.Events...)
	a.exp = exp
	return a
}
