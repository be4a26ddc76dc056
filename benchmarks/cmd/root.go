package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/deep-traffic/benchmarks/common"
	"github.com/zeu5/deep-traffic/util"
)

var logger *logrus.Entry = util.DiscardLogger()

func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deep-traffic",
		Short:         "Highway traffic simulation and reinforcement learning drivers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnv(envFile); err != nil {
				return err
			}
			UpdateFlags()
			flags.ApplyEnv(cmd.Flags().Changed)
			logger = logrus.NewEntry(util.NewLogger(flags.LogLevel))
			if err := flags.Record(); err != nil {
				return err
			}
			logger = logger.WithField("session", flags.SessionID)
			return nil
		},
	}
	AddFlags(cmd)

	cmd.AddCommand(
		TrainCommand(),
		CompareCommand(),
		DriveCommand(),
		ServeCommand(),
	)

	return cmd
}

// interruptContext is cancelled on an interrupt or once done is called.
func interruptContext() (context.Context, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt) // channel for interrupts from os

	doneCh := make(chan struct{}) // channel for done signal from application

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigCh:
		case <-doneCh:
		}
		signal.Stop(sigCh)
		cancel()
	}()
	return ctx, func() { close(doneCh) }
}
