package util

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJson(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "dir", "out.json")
	require.NoError(t, SaveJson(file, map[string]int{"cars": 3}))

	bs, err := os.ReadFile(file)
	require.NoError(t, err)
	out := make(map[string]int)
	require.NoError(t, json.Unmarshal(bs, &out))
	assert.Equal(t, 3, out["cars"])

	assert.Error(t, SaveJson(filepath.Join(t.TempDir(), "bad.json"), make(chan int)))
}

func TestJsonHash(t *testing.T) {
	assert.Equal(t, JsonHash([]float64{1, 0.5}), JsonHash([]float64{1, 0.5}))
	assert.NotEqual(t, JsonHash([]float64{1, 0.5}), JsonHash([]float64{0.5, 1}))

	s := []int{1, 2}
	c := CopyIntSlice(s)
	c[0] = 9
	assert.Equal(t, []int{1, 2}, s)
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("chatty").GetLevel())
	DiscardLogger().Info("dropped")
}

func TestTerminalPrinter(t *testing.T) {
	out := new(bytes.Buffer)
	p := NewTerminalPrinter(out, time.Hour)
	status := p.NewLine()
	stats := p.NewLine()
	status.Set("tick 1")
	stats.Set("overtaken 0")
	assert.Equal(t, "tick 1", status.Get())

	p.Start(context.Background())
	status.Set("tick 2")
	p.Stop()
	p.Stop()

	text := out.String()
	assert.True(t, strings.Contains(text, "tick 2"), text)
	assert.True(t, strings.Contains(text, "overtaken 0"), text)
}
