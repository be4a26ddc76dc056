package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/deep-traffic/benchmarks/traffic"
)

func CompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the random, tabular, softmax, ucb and dqn drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done := interruptContext()
			defer done()

			cmp, err := traffic.PrepareComparison(flags, logger)
			if err != nil {
				return err
			}
			results := cmp.Run(ctx, flags.NumRuns, traffic.RunConfig(flags), flags.Parallelism)
			for name, result := range results {
				entry := logger.WithFields(logrus.Fields{
					"experiment": name,
					"episodes":   result.CompletedEpisodes,
					"errors":     result.ErrorEpisodes,
					"timeouts":   result.TimeoutEpisodes,
				})
				if result.IsError() {
					entry.WithError(result.Error).Error("experiment stopped")
					continue
				}
				entry.Info("experiment finished")
			}
			return nil
		},
	}

	return cmd
}
