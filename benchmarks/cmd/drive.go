package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/deep-traffic/benchmarks/traffic"
	"github.com/zeu5/deep-traffic/core"
	"github.com/zeu5/deep-traffic/highway"
	"github.com/zeu5/deep-traffic/policies"
	"github.com/zeu5/deep-traffic/util"
)

func DriveCommand() *cobra.Command {
	var (
		policyName string
		remoteURL  string
		ticks      int
		delay      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Drive one session and show its status every tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done := interruptContext()
			defer done()

			config, err := traffic.HighwayConfig(flags)
			if err != nil {
				return err
			}
			opts := []highway.Option{highway.WithLogger(logger.WithField("component", "highway"))}
			if flags.Seed != 0 {
				opts = append(opts, highway.WithSeed(flags.Seed))
			}
			sim, err := highway.NewSimulation(config, opts...)
			if err != nil {
				return err
			}
			env := highway.NewEnvironment(sim, traffic.EnvConfig(flags))

			var policy core.Policy
			var remote *policies.RemotePolicy
			if remoteURL != "" {
				remote, err = policies.DialRemotePolicy(ctx, remoteURL, 5*time.Second)
				if err != nil {
					return err
				}
				defer remote.Close()
				policy = remote
			} else {
				pc, err := traffic.PolicyConstructor(policyName, flags, logger)
				if err != nil {
					return err
				}
				if policy, err = pc.NewPolicy(env.NumStates(), env.NumActions()); err != nil {
					return err
				}
			}
			agent, err := core.NewAgent(policy)
			if err != nil {
				return err
			}

			printer := util.NewTerminalPrinter(os.Stdout, 100*time.Millisecond)
			status := printer.NewLine()
			printer.Start(ctx)
			err = drive(ctx, env, agent, remote, ticks, delay, status)
			printer.Stop()
			if err != nil {
				return err
			}

			if err := util.SaveJson(path.Join(flags.SavePath, "snapshot.json"), sim.Snapshot()); err != nil {
				return err
			}
			if r, ok := policy.(policies.Recorder); ok {
				if err := r.Record(path.Join(flags.SavePath, "qtable.jsonl")); err != nil {
					return err
				}
			}
			logger.WithFields(logrus.Fields{
				"ticks":     sim.Tick(),
				"overtaken": sim.OvertakenCars(),
			}).Info("drive finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&policyName, "policy", traffic.PolicyDQN, "Policy driving the user car (dqn, tabular, softmax, ucb, random)")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "Websocket URL of a served policy, overrides --policy")
	cmd.Flags().IntVar(&ticks, "ticks", 1000, "Number of ticks to drive")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between ticks")

	return cmd
}

func drive(ctx context.Context, env *highway.Environment, agent *core.Agent, remote *policies.RemotePolicy, ticks int, delay time.Duration, status *util.StatusLine) error {
	eCtx := core.NewEpisodeContext(ctx)
	eCtx.Horizon = ticks
	obs, err := env.Reset()
	if err != nil {
		return err
	}
	for tick := 0; tick < ticks; tick++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		action := agent.Forward(obs)
		transition, err := env.Step(action, &core.StepContext{Step: tick, EpisodeContext: eCtx})
		if err != nil {
			return err
		}
		agent.Backward(transition.Reward)
		if remote != nil && remote.Err() != nil {
			return remote.Err()
		}
		status.Set(statusLine(tick, transition))
		obs = transition.Observation
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}

func statusLine(tick int, t *core.Transition) string {
	overtaken, _ := t.Info["overtaken_total"].(int)
	total := aurora.Green(overtaken)
	if overtaken < 0 {
		total = aurora.Red(overtaken)
	}
	return fmt.Sprintf(
		"tick %d  lane %v  action %s  speed %s  overtaken %s  reward %.3f",
		tick,
		t.Info["lane"],
		aurora.Cyan(t.Info["action"]),
		aurora.Yellow(t.Info["speed"]),
		total,
		t.Reward,
	)
}
