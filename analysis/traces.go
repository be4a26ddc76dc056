package analysis

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/zeu5/deep-traffic/core"
)

func traceToString(trace *core.Trace) string {
	buf := new(bytes.Buffer)
	for i := 0; i < trace.Len(); i++ {
		fmt.Fprintf(buf, "Step %d\n%s\n", i, stepToString(trace.Step(i)))
	}
	return buf.String()
}

func stepToString(step *core.Step) string {
	return fmt.Sprintf(
		"Observation: %v\nAction: %d\nReward: %.4f\nAdditional Info:\n%s",
		step.Observation,
		step.Action,
		step.Reward,
		addInfoToString(step.Misc),
	)
}

func addInfoToString(addInfo map[string]interface{}) string {
	keys := make([]string, 0, len(addInfo))
	for k := range addInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("  %s: %v\n", k, addInfo[k])
	}
	return out
}

// infoFloat reads a numeric entry of the step info.
func infoFloat(step *core.Step, key string) (float64, bool) {
	switch v := step.Misc[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
