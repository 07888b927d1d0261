package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/client/config"
	"github.com/DianaJonathan/timecapsule/support/agent"
)

type soakOptions struct {
	accounts int
	seed     int64
	rate     float64
	maxDelay time.Duration
	ticks    int
}

func soakCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var opts soakOptions
	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Drive many identities creating and unlocking capsules, checking state invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSoak(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().IntVar(&opts.accounts, "accounts", 20, "Number of simulated identities")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0.1, "Mean capsules created per identity per block")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", 30*time.Minute, "Upper bound on release delay beyond one block")
	cmd.Flags().IntVar(&opts.ticks, "blocks", 500, "Number of blocks to mine")
	return cmd
}

func runSoak(ctx context.Context, out io.Writer, cfg config.Config, opts soakOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sim, err := agent.NewSim(ctx, agent.SimConfig{
		AccountCount: opts.accounts,
		Seed:         opts.seed,
		CreateRate:   opts.rate,
		MaxDelay:     opts.maxDelay,
		BlockTime:    cfg.BlockTime,
	})
	if err != nil {
		return err
	}

	for i := 0; i < opts.ticks; i++ {
		if err := sim.Tick(); err != nil {
			return xerrors.Errorf("block %d: %w", i+1, err)
		}
	}

	summary, msgs, err := sim.CheckInvariants()
	if err != nil {
		return err
	}
	if !msgs.IsEmpty() {
		return xerrors.Errorf("state invariants broken:\n%s", strings.Join(msgs.Messages(), "\n"))
	}
	_, err = fmt.Fprintf(out, "blocks=%d capsules=%d unlocked=%d handles=%d grants=%d\n",
		opts.ticks, summary.CapsuleCount, summary.UnlockedCount, summary.HandleCount, summary.GrantCount)
	return err
}
