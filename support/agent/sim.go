// Package agent drives a chain with simulated identities that create capsules and unlock them as
// they are released.
package agent

import (
	"context"
	"math/rand"
	"strings"
	"time"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
	"github.com/DianaJonathan/timecapsule/client/engine"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/wallet"
	"github.com/DianaJonathan/timecapsule/support/chain"
)

type SimConfig struct {
	AccountCount int
	Seed         int64
	// Mean capsules created per account per tick.
	CreateRate float64
	// Release delays are drawn uniformly from (BlockTime, BlockTime+MaxDelay].
	MaxDelay  time.Duration
	BlockTime time.Duration
	// Backing store. Defaults to memory.
	Store adt.Store
}

type Sim struct {
	Config SimConfig
	Agents []*CapsuleAgent

	ctx    context.Context
	clock  clockwork.FakeClock
	chain  *chain.Chain
	engine *engine.Local
	wallet *wallet.Wallet
	store  addr.Address
	rnd    *rand.Rand
	byAddr map[addr.Address]*CapsuleAgent
}

// Message is a call an agent wants included in the next block.
type Message struct {
	From          addr.Address
	Method        abi.MethodNum
	Params        cbor.Marshaler
	ReturnHandler func(rec *ledger.Receipt) error
}

func NewSim(ctx context.Context, cfg SimConfig) (*Sim, error) {
	if cfg.BlockTime < time.Second {
		cfg.BlockTime = 30 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Hour
	}
	clock := clockwork.NewFakeClockAt(time.Unix(1_600_000_000, 0))
	eng, err := engine.NewLocal(clock)
	if err != nil {
		return nil, err
	}
	store, err := addr.NewIDAddress(builtin.FirstNonSingletonActorId)
	if err != nil {
		return nil, err
	}
	c, err := chain.New(ctx, chain.Options{
		NetworkName:   "simnet",
		BlockTime:     cfg.BlockTime,
		Clock:         clock,
		Store:         cfg.Store,
		Verifier:      eng,
		CapsuleStores: []addr.Address{store},
	})
	if err != nil {
		return nil, err
	}
	eng.SetACL(c)

	s := &Sim{
		Config: cfg,
		ctx:    ctx,
		clock:  clock,
		chain:  c,
		engine: eng,
		wallet: wallet.New(),
		store:  store,
		rnd:    rand.New(rand.NewSource(cfg.Seed)),
		byAddr: make(map[addr.Address]*CapsuleAgent),
	}
	for i := 0; i < cfg.AccountCount; i++ {
		who, err := s.wallet.NewIdentity()
		if err != nil {
			return nil, err
		}
		a := newCapsuleAgent(who, cfg.CreateRate, s.rnd.Int63())
		s.Agents = append(s.Agents, a)
		s.byAddr[who] = a
	}
	return s, nil
}

// Tick collects the agents' messages, includes them in one block in random order and hands each
// receipt back to its sender. Every message is expected to succeed.
func (s *Sim) Tick() error {
	now := s.clock.Now().Unix()
	var blockMessages []Message
	for _, a := range s.Agents {
		msgs, err := a.Tick(s, now)
		if err != nil {
			return err
		}
		blockMessages = append(blockMessages, msgs...)
	}

	s.rnd.Shuffle(len(blockMessages), func(i, j int) {
		blockMessages[i], blockMessages[j] = blockMessages[j], blockMessages[i]
	})

	ids := make([]cid.Cid, len(blockMessages))
	for i, m := range blockMessages {
		msg, err := ledger.NewMessage(m.From, s.store, m.Method, m.Params)
		if err != nil {
			return err
		}
		sm, err := s.wallet.SignMessage(s.ctx, msg)
		if err != nil {
			return err
		}
		if ids[i], err = s.chain.Submit(s.ctx, sm); err != nil {
			return err
		}
	}

	s.clock.Advance(s.Config.BlockTime)
	if _, err := s.chain.Mine(s.ctx); err != nil {
		return err
	}

	for i, m := range blockMessages {
		rec, found, err := s.chain.Receipt(s.ctx, ids[i])
		if err != nil {
			return err
		}
		if !found {
			return xerrors.Errorf("no receipt for %s after mining", ids[i])
		}
		if rec.ExitCode != exitcode.Ok {
			return xerrors.Errorf("exitcode %d: method %d from %v failed:\n%s", rec.ExitCode, m.Method, m.From, strings.Join(s.chain.Logs(), "\n"))
		}
		if m.ReturnHandler != nil {
			if err := m.ReturnHandler(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckInvariants validates the capsule store's state.
func (s *Sim) CheckInvariants() (*capsule.StateSummary, *builtin.MessageAccumulator, error) {
	st, store, err := s.chain.CapsuleState(s.store)
	if err != nil {
		return nil, nil, err
	}
	summary, msgs := capsule.CheckStateInvariants(st, store)
	return summary, msgs, nil
}

func (s *Sim) Chain() *chain.Chain {
	return s.chain
}

func (s *Sim) randomHeir() addr.Address {
	return s.Agents[s.rnd.Intn(len(s.Agents))].Identity
}

func (s *Sim) releaseDelay() int64 {
	return int64(s.Config.BlockTime/time.Second) + 1 + s.rnd.Int63n(int64(s.Config.MaxDelay/time.Second)+1)
}
