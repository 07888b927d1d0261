package main

import (
	"context"
	"fmt"
	"io"
	"time"

	addr "github.com/filecoin-project/go-address"
	"github.com/jonboulle/clockwork"
	"github.com/multiformats/go-multibase"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
	"github.com/DianaJonathan/timecapsule/client/config"
	"github.com/DianaJonathan/timecapsule/client/engine"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/orchestrator"
	"github.com/DianaJonathan/timecapsule/client/session"
	"github.com/DianaJonathan/timecapsule/client/wallet"
	"github.com/DianaJonathan/timecapsule/support/chain"
	"github.com/DianaJonathan/timecapsule/support/ipld"
)

type runOptions struct {
	payload  string
	delay    time.Duration
	withHeir bool
	realtime bool
}

func runCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a capsule, wait for its release, then unlock and decrypt it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runScenario(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.payload, "payload", "hi", "Plaintext to store")
	cmd.Flags().DurationVar(&opts.delay, "delay", time.Hour, "Time until release")
	cmd.Flags().BoolVar(&opts.withHeir, "heir", true, "Name a second identity as heir and unlock as the heir")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "Mine on the wall clock and actually wait for release")
	return cmd
}

func runScenario(ctx context.Context, out io.Writer, cfg config.Config, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var clock clockwork.Clock = clockwork.NewRealClock()
	var fake clockwork.FakeClock
	if !opts.realtime {
		fake = clockwork.NewFakeClockAt(time.Now().Truncate(time.Second))
		clock = fake
	}

	var store adt.Store
	if cfg.DataDir != "" {
		bs, err := ipld.OpenBadgerBlockStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer bs.Close() // nolint:errcheck
		store = adt.WrapBlockStore(ctx, bs)
	}

	stores := make([]addr.Address, 0, len(cfg.Stores))
	for _, id := range cfg.Stores {
		a, err := addr.NewIDAddress(id)
		if err != nil {
			return err
		}
		stores = append(stores, a)
	}

	eng, err := engine.NewLocal(clock)
	if err != nil {
		return err
	}
	c, err := chain.New(ctx, chain.Options{
		NetworkName:   cfg.Network,
		BlockTime:     cfg.BlockTime,
		Clock:         clock,
		Store:         store,
		Verifier:      eng,
		CapsuleStores: stores,
	})
	if err != nil {
		return err
	}
	eng.SetACL(c)

	events := make(chan chain.BlockEvent, 16)
	sub := c.SubscribeEvents(events)
	defer sub.Unsubscribe()

	var l ledger.Ledger = chain.InstantLedger{Chain: c}
	if opts.realtime {
		l = c
		go c.Run(ctx) // nolint:errcheck
	}

	w := wallet.New()
	owner, err := w.NewIdentity()
	if err != nil {
		return err
	}
	heir := owner
	if opts.withHeir {
		if heir, err = w.NewIdentity(); err != nil {
			return err
		}
	}
	if err := w.Connect(owner, cfg.Network); err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		Deployments:     map[string]orchestrator.Deployment{cfg.Network: {Store: stores[0], Ledger: l}},
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		Poll:            cfg.PollPolicy(),
	}, eng, session.NewManager(clock, cfg.SessionDuration), w)

	release := clock.Now().Add(opts.delay).Unix()
	outcome, id, err := orch.Create(ctx, []byte(opts.payload), release, &heir)
	if err != nil {
		return err
	}
	if outcome != orchestrator.OutcomeApplied {
		return xerrors.Errorf("create %s: %s", outcome, orch.Status())
	}
	view, _ := orch.Capsule(id)
	fmt.Fprintf(out, "capsule %d owner %s heir %s release %s\n", id, view.Owner, view.Heir, time.Unix(view.ReleaseTime, 0).UTC().Format(time.RFC3339))
	if err := printHandles(out, view); err != nil {
		return err
	}

	if fake != nil {
		fake.Advance(opts.delay)
		if _, err := c.Mine(ctx); err != nil {
			return err
		}
	} else {
		if err := waitUntilUnlockable(ctx, clock, orch, id, cfg.BlockTime); err != nil {
			return err
		}
	}

	if err := w.SwitchIdentity(heir); err != nil {
		return err
	}
	orch.ContextChanged()
	if _, err := orch.Refresh(ctx); err != nil {
		return err
	}
	for _, step := range []func(context.Context, capsule.CapsuleID) (orchestrator.Outcome, error){orch.Unlock, orch.Decrypt} {
		outcome, err := step(ctx, id)
		if err != nil {
			return err
		}
		if outcome != orchestrator.OutcomeApplied {
			return xerrors.Errorf("%s: %s", outcome, orch.Status())
		}
		fmt.Fprintln(out, orch.Status())
	}

	view, _ = orch.Capsule(id)
	fmt.Fprintf(out, "plaintext %q\n", view.Plaintext)

	epoch, ts, root, err := c.Head()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "head epoch %d at %d, state %s\n", epoch, ts, root)
	printEvents(out, events)
	return nil
}

func waitUntilUnlockable(ctx context.Context, clock clockwork.Clock, orch *orchestrator.Orchestrator, id capsule.CapsuleID, interval time.Duration) error {
	for {
		ok, err := orch.CanUnlock(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}

func printHandles(out io.Writer, view orchestrator.Capsule) error {
	for i, h := range view.Handles {
		s, err := h.StringOfBase(multibase.Base32)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  word %d: %s\n", i, s)
	}
	owner, err := multibase.Encode(multibase.Base58BTC, view.Owner.Bytes())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  owner bytes %s\n", owner)
	return nil
}

// printEvents reports the events delivered so far.
func printEvents(out io.Writer, events <-chan chain.BlockEvent) {
	for {
		var e chain.BlockEvent
		select {
		case e = <-events:
		default:
			return
		}
		switch e.Topic {
		case capsule.EventCapsuleCreated:
			var ev capsule.CapsuleCreatedEvent
			if err := e.Decode(&ev); err == nil {
				fmt.Fprintf(out, "event epoch %d: capsule %d created\n", e.Epoch, ev.ID)
			}
		case capsule.EventCapsuleUnlocked:
			var ev capsule.CapsuleUnlockedEvent
			if err := e.Decode(&ev); err == nil {
				fmt.Fprintf(out, "event epoch %d: capsule %d unlocked by %s\n", e.Epoch, ev.ID, ev.Unlocker)
			}
		}
	}
}
