package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeu5/deep-traffic/benchmarks/traffic"
	"github.com/zeu5/deep-traffic/highway"
	"github.com/zeu5/deep-traffic/policies"
)

func ServeCommand() *cobra.Command {
	var (
		addr       string
		policyName string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a policy over websocket for remote drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done := interruptContext()
			defer done()

			config, err := traffic.HighwayConfig(flags)
			if err != nil {
				return err
			}
			sim, err := highway.NewSimulation(config)
			if err != nil {
				return err
			}
			numStates := sim.ObservationSize(flags.PatchesAhead, flags.PatchesBehind, flags.LanesSide)

			pc, err := traffic.PolicyConstructor(policyName, flags, logger)
			if err != nil {
				return err
			}
			mux := http.NewServeMux()
			mux.Handle("/policy", policies.ServePolicy(pc, numStates, highway.NumActions, logger.WithField("component", "policy")))
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()

			logger.WithField("addr", addr).Info("serving policy on /policy")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&policyName, "policy", traffic.PolicyDQN, "Policy to host (dqn, tabular, softmax, ucb, random)")

	return cmd
}
