package highway

// RewardConfig weighs the parts of the per-tick reward.
type RewardConfig struct {
	OvertakeWeight float64 `yaml:"overtakeWeight" json:"overtakeWeight"`
	SpeedWeight    float64 `yaml:"speedWeight" json:"speedWeight"`
	// BrakePenalty is paid when the user's car had to slow down although
	// the agent did not ask for it.
	BrakePenalty float64 `yaml:"brakePenalty" json:"brakePenalty"`
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		OvertakeWeight: 1,
		SpeedWeight:    0.1,
		BrakePenalty:   0.5,
	}
}

// Reward scores one tick. Speeds that are not in table count as the
// slowest tier.
func (c RewardConfig) Reward(res UpdateResult, requested Action, table *SpeedTable) float64 {
	reward := c.OvertakeWeight * float64(res.OvertakenDelta)
	if table != nil {
		speed, err := table.Lookup(res.UserSpeed)
		if err != nil {
			speed = table.Min()
		}
		reward += c.SpeedWeight * table.Normalize(speed)
	}
	if res.Action == Backward && requested != Backward {
		reward -= c.BrakePenalty
	}
	return reward
}
