package policies

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/zeu5/deep-traffic/core"
	"github.com/zeu5/deep-traffic/util"
)

// QTable maps a state key and an action key to a value. Missing entries
// are created with the default value passed by the caller.
type QTable struct {
	table map[string]map[string]float64

	rand *rand.Rand
}

func NewQTable() *QTable {
	return &QTable{
		table: make(map[string]map[string]float64),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (q *QTable) GetAll(state string) (map[string]float64, bool) {
	values, ok := q.table[state]
	return values, ok
}

func (q *QTable) Get(state, action string, def float64) float64 {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	if _, ok := q.table[state][action]; !ok {
		q.table[state][action] = def
	}
	return q.table[state][action]
}

func (q *QTable) Set(state, action string, val float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	q.table[state][action] = val
}

// Max returns the best known action of state, or def when the state has
// no entries yet.
func (q *QTable) Max(state string, def float64) (string, float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
		return "", def
	}
	maxAction := ""
	maxVal := math.Inf(-1)
	for a, val := range q.table[state] {
		if val > maxVal {
			maxAction = a
			maxVal = val
		}
	}

	if maxAction == "" {
		return "", def
	}

	return maxAction, maxVal
}

func (q *QTable) Exists(state string) bool {
	_, ok := q.table[state]
	return ok
}

func (q *QTable) Size() int {
	return len(q.table)
}

// MaxAmong returns the best of the given actions, breaking ties at random.
func (q *QTable) MaxAmong(state string, actions []string, def float64) (string, float64) {
	if len(actions) == 0 {
		return "", def
	}
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	maxActions := make([]string, 0)
	maxVal := math.Inf(-1)
	for _, a := range actions {
		if _, ok := q.table[state][a]; !ok {
			q.table[state][a] = def
		}
		val := q.table[state][a]
		if val > maxVal {
			maxActions = make([]string, 0)
			maxVal = val
		}
		if val == maxVal {
			maxActions = append(maxActions, a)
		}
	}

	randAction := q.rand.Intn(len(maxActions))
	return maxActions[randAction], maxVal
}

// Read loads a table written by Record.
func (q *QTable) Read(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		in := struct {
			State   string             `json:"state"`
			Entries map[string]float64 `json:"entries"`
		}{}
		if err := json.Unmarshal(scanner.Bytes(), &in); err != nil {
			return fmt.Errorf("error reading file contents: %w", err)
		}
		q.table[in.State] = in.Entries
	}
	return scanner.Err()
}

// Record writes the table to path as one JSON object per state.
func (q *QTable) Record(path string) error {
	bs := new(bytes.Buffer)

	for state, entries := range q.table {
		stateJ := make(map[string]interface{})
		stateJ["state"] = state
		stateJ["entries"] = entries

		stateBS, err := json.Marshal(stateJ)
		if err == nil {
			bs.Write(stateBS)
			bs.Write([]byte("\n"))
		}
	}

	if bs.Len() == 0 {
		return nil
	}
	return os.WriteFile(path, bs.Bytes(), 0644)
}

// Recorder is implemented by policies that can write what they learned.
type Recorder interface {
	Record(path string) error
}

func stateKey(o core.Observation) string {
	return util.JsonHash(o)
}

func actionKeys(numActions int) []string {
	keys := make([]string, numActions)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	return keys
}

func actionIndex(key string) int {
	i, err := strconv.Atoi(key)
	if err != nil {
		return -1
	}
	return i
}

// stepMemory holds the last state and action of a tabular policy until
// the reward (Backward) and the next state (Forward) complete the
// transition.
type stepMemory struct {
	state     string
	action    string
	reward    float64
	hasAction bool
	hasReward bool
}

func (m *stepMemory) complete() bool {
	return m.hasAction && m.hasReward
}

func (m *stepMemory) act(state, action string) {
	*m = stepMemory{state: state, action: action, hasAction: true}
}

func (m *stepMemory) setReward(r float64) {
	m.reward = r
	m.hasReward = true
}

func (m *stepMemory) clear() {
	*m = stepMemory{}
}
