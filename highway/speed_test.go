package highway

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, seed int64) *SpeedTable {
	t.Helper()
	table, err := NewSpeedTable(DefaultConfig().SpeedPatchRatio, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return table
}

func TestSpeedTableOrder(t *testing.T) {
	table, err := NewSpeedTable([]SpeedTier{
		{Speed: 110, Patches: 4},
		{Speed: 50, Patches: 1},
		{Speed: 70, Patches: 2},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 50.0, table.Min().Value())
	assert.Equal(t, 110.0, table.Max().Value())
	assert.Equal(t, 0, table.Min().Rank())
	assert.True(t, table.Max().Faster(table.Min()))
}

func TestSpeedGenerateStaysInCatalog(t *testing.T) {
	table := newTestTable(t, 11)
	catalog := make(map[SpeedTier]bool)
	for _, tier := range DefaultConfig().SpeedPatchRatio {
		catalog[tier] = true
	}
	seen := make(map[SpeedTier]bool)
	for i := 0; i < 1000; i++ {
		s := table.Generate()
		require.True(t, catalog[s.Tier()], "generated %v", s)
		require.GreaterOrEqual(t, s.Value(), table.Min().Value())
		require.LessOrEqual(t, s.Value(), table.Max().Value())
		seen[s.Tier()] = true
	}
	assert.Len(t, seen, len(catalog))
}

func TestSpeedNewSpeed(t *testing.T) {
	table := newTestTable(t, 1)

	up, ok := table.NewSpeed(table.Min(), true)
	require.True(t, ok)
	assert.Equal(t, 70.0, up.Value())

	_, ok = table.NewSpeed(table.Min(), false)
	assert.False(t, ok)

	_, ok = table.NewSpeed(table.Max(), true)
	assert.False(t, ok)

	down, ok := table.NewSpeed(table.Max(), false)
	require.True(t, ok)
	assert.Equal(t, 90.0, down.Value())
}

func TestSpeedLookup(t *testing.T) {
	table := newTestTable(t, 1)

	s, err := table.Lookup(90)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Patches())

	s, err = table.Lookup(10)
	require.NoError(t, err)
	assert.Equal(t, table.Min(), s)

	s, err = table.Lookup(300)
	require.NoError(t, err)
	assert.Equal(t, table.Max(), s)

	_, err = table.Lookup(60)
	assert.ErrorIs(t, err, ErrInvalidSpeed)

	_, err = table.Lookup(-1)
	assert.ErrorIs(t, err, ErrInvalidSpeed)

	_, err = table.Lookup(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidSpeed)
}

func TestSpeedNormalize(t *testing.T) {
	table := newTestTable(t, 1)
	assert.Equal(t, 0.0, table.Normalize(table.Min()))
	assert.Equal(t, 1.0, table.Normalize(table.Max()))
	assert.InDelta(t, 1.0/3, table.Normalize(table.at(1)), 1e-9)

	single, err := NewSpeedTable([]SpeedTier{{Speed: 80, Patches: 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, single.Normalize(single.Min()))
}

func TestCarSpeed(t *testing.T) {
	table := newTestTable(t, 1)
	car := NewCar(false, table.Max(), StraightOnly())
	assert.False(t, car.ChangeSpeed(table.Max()))
	assert.True(t, car.ChangeSpeed(table.Min()))
	assert.Equal(t, table.Min(), car.Speed())
	assert.Equal(t, table.Max(), car.Baseline())

	car.RestoreSpeed()
	assert.Equal(t, table.Max(), car.Speed())
}

func TestActionMapping(t *testing.T) {
	for i := 0; i < NumActions; i++ {
		a := ActionFromIndex(i)
		assert.Equal(t, i, a.Index())
		assert.Equal(t, a, ParseAction(a.String()))
	}
	assert.Equal(t, None, ActionFromIndex(-1))
	assert.Equal(t, None, ActionFromIndex(17))
	assert.Equal(t, Left, ParseAction(" LEFT "))
	assert.Equal(t, None, ParseAction("jump"))
	assert.Equal(t, "none", Action(42).String())

	var a Action
	require.NoError(t, a.UnmarshalText([]byte("backward")))
	assert.Equal(t, Backward, a)
	text, err := Right.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "right", string(text))
}

func TestCarID(t *testing.T) {
	assert.True(t, CarID{}.IsZero())
	assert.True(t, UserCarID.IsUser())
	id := GeneratedCarID(12)
	seq, ok := id.Seq()
	assert.True(t, ok)
	assert.Equal(t, uint64(12), seq)
	assert.Equal(t, "12", id.String())
	_, ok = UserCarID.Seq()
	assert.False(t, ok)
}
