// Package chain runs capsule store actors on a single-node ledger. Signed messages queue in a
// mempool and are applied in order when a block is mined; their receipts and events become visible
// at that point.
package chain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/wallet"
	"github.com/DianaJonathan/timecapsule/support/ipld"
	"github.com/DianaJonathan/timecapsule/support/vm"
)

var log = logging.Logger("capsule/chain")

var (
	ErrBadSignature = xerrors.New("message signature invalid")
	ErrDuplicate    = xerrors.New("message already submitted")
)

const DefaultBlockTime = 2 * time.Second

type Options struct {
	NetworkName string
	// Interval between blocks when driven by Run.
	BlockTime time.Duration
	Clock     clockwork.Clock
	// Backing store for all state. Defaults to an in-memory store.
	Store    adt.Store
	Verifier vm.ProofVerifier
	// ID addresses at which a capsule store is installed at genesis.
	CapsuleStores []addr.Address
}

// BlockEvent is an actor event included in a mined block.
type BlockEvent struct {
	Epoch   abi.ChainEpoch
	Message cid.Cid
	vm.Event
}

type Chain struct {
	clock     clockwork.Clock
	blockTime time.Duration
	feed      event.FeedOf[BlockEvent]

	mu       sync.Mutex
	vm       *vm.VM
	pending  []*ledger.SignedMessage
	queued   map[cid.Cid]struct{}
	receipts *adt.Map // HAMT[cid]ledger.Receipt
	included *adt.Set
}

var _ ledger.Ledger = (*Chain)(nil)

func New(ctx context.Context, opts Options) (*Chain, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = DefaultBlockTime
	}
	if opts.Store == nil {
		opts.Store = ipld.NewADTStore(ctx)
	}
	if opts.NetworkName == "" {
		opts.NetworkName = "capsulenet"
	}

	v, err := vm.Genesis(ctx, opts.Store, opts.Verifier, opts.NetworkName, opts.CapsuleStores...)
	if err != nil {
		return nil, xerrors.Errorf("creating genesis state: %w", err)
	}
	v.SetClock(0, opts.Clock.Now().Unix())

	receipts, err := adt.MakeEmptyMap(opts.Store, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("creating receipts map: %w", err)
	}
	included, err := adt.MakeEmptySet(opts.Store, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("creating inclusion set: %w", err)
	}

	log.Infow("chain started", "network", opts.NetworkName, "stores", opts.CapsuleStores)
	return &Chain{
		clock:     opts.Clock,
		blockTime: opts.BlockTime,
		vm:        v,
		queued:    make(map[cid.Cid]struct{}),
		receipts:  receipts,
		included:  included,
	}, nil
}

func (c *Chain) NetworkName(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vm.NetworkName(), nil
}

// Submit verifies the sender's signature and queues the message for the next block.
func (c *Chain) Submit(_ context.Context, sm *ledger.SignedMessage) (cid.Cid, error) {
	if err := wallet.VerifyMessage(sm); err != nil {
		return cid.Undef, xerrors.Errorf("%w: %s", ErrBadSignature, err)
	}
	id, err := sm.Cid()
	if err != nil {
		return cid.Undef, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.queued[id]; ok {
		return cid.Undef, xerrors.Errorf("%s: %w", id, ErrDuplicate)
	}
	seen, err := c.included.Has(adt.CidKey(id))
	if err != nil {
		return cid.Undef, err
	}
	if seen {
		return cid.Undef, xerrors.Errorf("%s: %w", id, ErrDuplicate)
	}
	c.pending = append(c.pending, sm)
	c.queued[id] = struct{}{}
	log.Debugw("message queued", "cid", id, "from", sm.Message.From, "method", sm.Message.Method)
	return id, nil
}

func (c *Chain) Receipt(_ context.Context, id cid.Cid) (*ledger.Receipt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rec ledger.Receipt
	found, err := c.receipts.Get(adt.CidKey(id), &rec)
	if err != nil || !found {
		return nil, false, err
	}
	return &rec, true, nil
}

// Call executes msg against the head state. Nothing it does persists.
func (c *Chain) Call(_ context.Context, msg *ledger.Message) (*ledger.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.vm.Call(msg.From, msg.To, msg.Method, msg.Params)
	return &ledger.Receipt{ExitCode: res.Code, Return: res.Ret, Epoch: c.vm.GetEpoch()}, nil
}

// Mine applies every pending message in a new block stamped with the current clock time and
// publishes the events they emitted. It returns the new epoch.
func (c *Chain) Mine(_ context.Context) (abi.ChainEpoch, error) {
	c.mu.Lock()
	epoch := c.vm.GetEpoch() + 1
	ts := c.clock.Now().Unix()
	if ts < c.vm.Timestamp() {
		ts = c.vm.Timestamp()
	}
	c.vm.SetClock(epoch, ts)

	var events []BlockEvent
	for _, sm := range c.pending {
		id, err := sm.Cid()
		if err != nil {
			c.mu.Unlock()
			return epoch, err
		}
		msg := sm.Message
		res := c.vm.ApplyMessage(msg.From, msg.To, msg.Method, msg.Params)
		if err := c.receipts.Put(adt.CidKey(id), &ledger.Receipt{ExitCode: res.Code, Return: res.Ret, Epoch: epoch}); err != nil {
			c.mu.Unlock()
			return epoch, xerrors.Errorf("recording receipt of %s: %w", id, err)
		}
		if err := c.included.Put(adt.CidKey(id)); err != nil {
			c.mu.Unlock()
			return epoch, xerrors.Errorf("recording inclusion of %s: %w", id, err)
		}
		for _, e := range res.Events {
			events = append(events, BlockEvent{Epoch: epoch, Message: id, Event: e})
		}
		log.Debugw("message applied", "cid", id, "epoch", epoch, "code", res.Code)
	}
	count := len(c.pending)
	c.pending = nil
	c.queued = make(map[cid.Cid]struct{})
	c.mu.Unlock()

	for _, e := range events {
		c.feed.Send(e)
	}
	if count > 0 {
		log.Infow("block mined", "epoch", epoch, "timestamp", ts, "messages", count, "events", len(events))
	}
	return epoch, nil
}

// Run mines a block every block time until ctx is done.
func (c *Chain) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.blockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := c.Mine(ctx); err != nil {
				log.Errorw("mining block", "error", err)
				return err
			}
		}
	}
}

// SubscribeEvents delivers every BlockEvent published after the call to ch.
func (c *Chain) SubscribeEvents(ch chan<- BlockEvent) event.Subscription {
	return c.feed.Subscribe(ch)
}

// Head returns the current epoch, block timestamp and state root.
func (c *Chain) Head() (abi.ChainEpoch, int64, cid.Cid, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root, err := c.vm.StateRoot()
	return c.vm.GetEpoch(), c.vm.Timestamp(), root, err
}

// Pending returns the number of queued messages.
func (c *Chain) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CapsuleState loads the state of the capsule store at a and the store it lives in.
func (c *Chain) CapsuleState(a addr.Address) (*capsule.State, adt.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var st capsule.State
	if err := c.vm.GetState(a, &st); err != nil {
		return nil, nil, xerrors.Errorf("loading capsule store %v: %w", a, err)
	}
	return &st, c.vm.Store(), nil
}

// CanReveal answers whether who holds a grant on handle in the store at a, and the capsule holding
// it has been unlocked.
func (c *Chain) CanReveal(_ context.Context, a addr.Address, handle cid.Cid, who addr.Address) (bool, error) {
	st, store, err := c.CapsuleState(a)
	if err != nil {
		return false, err
	}
	return st.CanReveal(store, handle, who)
}

// Logs returns what actors have logged.
func (c *Chain) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.vm.GetLogs()...)
}

// InstantLedger mines a block as soon as a message is submitted.
type InstantLedger struct {
	*Chain
}

func (l InstantLedger) Submit(ctx context.Context, sm *ledger.SignedMessage) (cid.Cid, error) {
	id, err := l.Chain.Submit(ctx, sm)
	if err != nil {
		return cid.Undef, err
	}
	if _, err := l.Chain.Mine(ctx); err != nil {
		return cid.Undef, err
	}
	return id, nil
}
