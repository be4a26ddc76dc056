package common

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/zeu5/deep-traffic/util"
)

const (
	EnvLogLevel = "DEEPTRAFFIC_LOG_LEVEL"
	EnvSavePath = "DEEPTRAFFIC_SAVE_PATH"
)

type Flags struct {
	SessionID  string
	SavePath   string
	ConfigPath string
	LogLevel   string
	HighwayFlags
	RunFlags
	BrainFlags
	Parallelism int
	Debug       bool
}

// HighwayFlags select the window the agent drives with.
type HighwayFlags struct {
	PatchesAhead     int
	PatchesBehind    int
	LanesSide        int
	Seed             int64
	CheckConsistency bool
}

type RunFlags struct {
	NumRuns                int
	Episodes               int
	EvalEpisodes           int
	Horizon                int
	MaxConsecutiveErrors   int
	MaxConsecutiveTimeouts int
	EpisodeTimeout         time.Duration
}

type BrainFlags struct {
	TemporalWindow int
	ExperienceSize int
	HiddenLayers   []int
	Gamma          float64
	LearningRate   float64
	BatchSize      int
}

func DefaultFlags() *Flags {
	return &Flags{
		SavePath: "results",
		LogLevel: "info",
		HighwayFlags: HighwayFlags{
			PatchesAhead:  30,
			PatchesBehind: 10,
			LanesSide:     1,
		},
		RunFlags: RunFlags{
			NumRuns:                1,
			Episodes:               200,
			EvalEpisodes:           20,
			Horizon:                500,
			MaxConsecutiveErrors:   20,
			MaxConsecutiveTimeouts: 20,
			EpisodeTimeout:         30 * time.Second,
		},
		BrainFlags: BrainFlags{
			TemporalWindow: 1,
			ExperienceSize: 30000,
			HiddenLayers:   []int{32},
			Gamma:          0.8,
			LearningRate:   0.01,
			BatchSize:      64,
		},
		Parallelism: 4,
		Debug:       false,
	}
}

// LoadEnv reads an optional dotenv file into the process environment.
// A missing file is not an error.
func LoadEnv(file string) error {
	err := godotenv.Load(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides the flags that were not given on the command line
// with the environment. changed reports whether a flag was set explicitly.
func (f *Flags) ApplyEnv(changed func(string) bool) {
	if v := os.Getenv(EnvLogLevel); v != "" && !changed("log-level") {
		f.LogLevel = v
	}
	if v := os.Getenv(EnvSavePath); v != "" && !changed("save-path") {
		f.SavePath = v
	}
}

// Record writes the flags of this session to <SavePath>/config.json.
func (f *Flags) Record() error {
	if f.SessionID == "" {
		f.SessionID = uuid.NewString()
	}
	return util.SaveJson(path.Join(f.SavePath, "config.json"), f)
}
