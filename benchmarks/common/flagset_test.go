package common

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	f := DefaultFlags()
	f.SavePath = filepath.Join(t.TempDir(), "session")
	require.NoError(t, f.Record())
	assert.NotEmpty(t, f.SessionID)

	bs, err := os.ReadFile(filepath.Join(f.SavePath, "config.json"))
	require.NoError(t, err)
	saved := &Flags{}
	require.NoError(t, json.Unmarshal(bs, saved))
	assert.Equal(t, f.SessionID, saved.SessionID)
	assert.Equal(t, f.Horizon, saved.Horizon)
	assert.Equal(t, f.HiddenLayers, saved.HiddenLayers)

	id := f.SessionID
	require.NoError(t, f.Record())
	assert.Equal(t, id, f.SessionID)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvSavePath, "/tmp/elsewhere")

	f := DefaultFlags()
	f.ApplyEnv(func(name string) bool { return name == "save-path" })
	assert.Equal(t, "debug", f.LogLevel)
	assert.Equal(t, "results", f.SavePath)
}

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))

	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("DEEPTRAFFIC_TEST_KEY=loaded\n"), 0644))
	t.Setenv("DEEPTRAFFIC_TEST_KEY", "")
	os.Unsetenv("DEEPTRAFFIC_TEST_KEY")
	require.NoError(t, LoadEnv(file))
	assert.Equal(t, "loaded", os.Getenv("DEEPTRAFFIC_TEST_KEY"))
}
