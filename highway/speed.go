package highway

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	ErrInvalidSpeed = errors.New("invalid speed")
)

// SpeedTier is one entry of the speed catalog: a speed and the number
// of patches a car at that speed covers in one tick.
type SpeedTier struct {
	Speed   float64 `yaml:"speed" json:"speed"`
	Patches int     `yaml:"patches" json:"patches"`
}

// Speed references a tier of a SpeedTable. The zero value is not a valid
// speed; speeds are only obtained from a table.
type Speed struct {
	tier SpeedTier
	rank int
}

func (s Speed) Value() float64 { return s.tier.Speed }

func (s Speed) Patches() int { return s.tier.Patches }

func (s Speed) Tier() SpeedTier { return s.tier }

// Rank is the position of the tier in the catalog, 0 being the slowest.
func (s Speed) Rank() int { return s.rank }

func (s Speed) Faster(o Speed) bool { return s.rank > o.rank }

func (s Speed) String() string {
	return fmt.Sprintf("%v (%d patches/tick)", s.tier.Speed, s.tier.Patches)
}

// SpeedTable is the catalog of speed tiers sorted ascending by speed.
type SpeedTable struct {
	tiers []SpeedTier
	rand  *rand.Rand
}

func NewSpeedTable(tiers []SpeedTier, r *rand.Rand) (*SpeedTable, error) {
	if len(tiers) == 0 {
		return nil, invalid("speedPatchRatio must list at least one tier")
	}
	sorted := make([]SpeedTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Speed < sorted[j].Speed
	})
	for i, t := range sorted {
		if t.Speed <= 0 || t.Patches <= 0 {
			return nil, invalid("speedPatchRatio entries must be positive, got {speed: %v, patches: %d}", t.Speed, t.Patches)
		}
		if i > 0 && sorted[i-1].Speed == t.Speed {
			return nil, invalid("speedPatchRatio lists speed %v twice", t.Speed)
		}
	}
	return &SpeedTable{tiers: sorted, rand: r}, nil
}

func (t *SpeedTable) Len() int { return len(t.tiers) }

func (t *SpeedTable) at(i int) Speed {
	return Speed{tier: t.tiers[i], rank: i}
}

func (t *SpeedTable) Min() Speed { return t.at(0) }

func (t *SpeedTable) Max() Speed { return t.at(len(t.tiers) - 1) }

// Generate samples a tier uniformly at random.
func (t *SpeedTable) Generate() Speed {
	return t.at(t.rand.Intn(len(t.tiers)))
}

// NewSpeed returns the adjacent tier of cur. The boolean is false when
// cur is already at the boundary in the requested direction.
func (t *SpeedTable) NewSpeed(cur Speed, increase bool) (Speed, bool) {
	i := cur.rank - 1
	if increase {
		i = cur.rank + 1
	}
	if i < 0 || i >= len(t.tiers) {
		return Speed{}, false
	}
	return t.at(i), true
}

// Lookup returns the tier for the given speed value. Values outside the
// catalog range are clamped to the slowest or fastest tier; values inside
// the range that match no tier are rejected.
func (t *SpeedTable) Lookup(v float64) (Speed, error) {
	if math.IsNaN(v) || v < 0 {
		return Speed{}, fmt.Errorf("%w: %v", ErrInvalidSpeed, v)
	}
	if v <= t.tiers[0].Speed {
		return t.Min(), nil
	}
	if v >= t.tiers[len(t.tiers)-1].Speed {
		return t.Max(), nil
	}
	for i, tier := range t.tiers {
		if tier.Speed == v {
			return t.at(i), nil
		}
	}
	return Speed{}, fmt.Errorf("%w: %v is not a catalog speed", ErrInvalidSpeed, v)
}

// Normalize maps a speed to [0, 1] across the catalog range.
func (t *SpeedTable) Normalize(s Speed) float64 {
	lo, hi := t.tiers[0].Speed, t.tiers[len(t.tiers)-1].Speed
	if hi == lo {
		return 1
	}
	return (s.Value() - lo) / (hi - lo)
}
