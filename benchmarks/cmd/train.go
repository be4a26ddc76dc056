package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/deep-traffic/benchmarks/traffic"
)

func TrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a DQN driver on the highway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done := interruptContext()
			defer done()

			cmp, policy, err := traffic.PrepareTraining(flags, logger)
			if err != nil {
				return err
			}
			results := cmp.Run(ctx, flags.NumRuns, traffic.RunConfig(flags))
			b := policy.Brain()
			for name, result := range results {
				entry := logger.WithFields(logrus.Fields{
					"experiment": name,
					"episodes":   result.CompletedEpisodes,
					"errors":     result.ErrorEpisodes,
					"timeouts":   result.TimeoutEpisodes,
					"timesteps":  result.TotalTimeSteps,
					"age":        b.Age(),
					"epsilon":    b.Epsilon(),
				})
				if avg, ok := b.AverageReward(); ok {
					entry = entry.WithField("average_reward", avg)
				}
				if result.IsError() {
					entry.WithError(result.Error).Error("training stopped")
					continue
				}
				entry.Info("training finished")
			}
			return nil
		},
	}

	return cmd
}
