package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/client/capsuleerr"
	"github.com/DianaJonathan/timecapsule/client/engine"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/orchestrator"
	"github.com/DianaJonathan/timecapsule/client/session"
	"github.com/DianaJonathan/timecapsule/client/wallet"
	"github.com/DianaJonathan/timecapsule/support/chain"
	tutil "github.com/DianaJonathan/timecapsule/support/testing"
)

const (
	network     = "capsulenet"
	genesisTime = int64(1_700_000_000)
)

// autoLedger mines a block after every submission.
type autoLedger struct {
	*chain.Chain
	afterSubmit func()
	failCall    func(msg *ledger.Message) error
}

func (l *autoLedger) Submit(ctx context.Context, sm *ledger.SignedMessage) (cid.Cid, error) {
	id, err := l.Chain.Submit(ctx, sm)
	if err != nil {
		return cid.Undef, err
	}
	if l.afterSubmit != nil {
		l.afterSubmit()
	}
	if _, err := l.Chain.Mine(ctx); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (l *autoLedger) Call(ctx context.Context, msg *ledger.Message) (*ledger.Receipt, error) {
	if l.failCall != nil {
		if err := l.failCall(msg); err != nil {
			return nil, err
		}
	}
	return l.Chain.Call(ctx, msg)
}

type hookEngine struct {
	*engine.Local
	onEncrypt func()
	onReveal  func()
	reveals   atomic.Int32
}

func (e *hookEngine) EncryptVector(ctx context.Context, values []uint32, store, requester addr.Address) ([]cid.Cid, []byte, error) {
	handles, proof, err := e.Local.EncryptVector(ctx, values, store, requester)
	if e.onEncrypt != nil {
		e.onEncrypt()
	}
	return handles, proof, err
}

func (e *hookEngine) Reveal(ctx context.Context, handles []cid.Cid, s *session.Session) (map[cid.Cid]uint32, error) {
	e.reveals.Inc()
	out, err := e.Local.Reveal(ctx, handles, s)
	if e.onReveal != nil {
		e.onReveal()
	}
	return out, err
}

type fixture struct {
	ctx      context.Context
	clock    clockwork.FakeClock
	chain    *chain.Chain
	ledger   *autoLedger
	engine   *hookEngine
	wallet   *wallet.Wallet
	sessions *session.Manager
	orch     *orchestrator.Orchestrator
	store    addr.Address
	alice    addr.Address
	bob      addr.Address
	carol    addr.Address
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(genesisTime, 0))
	local, err := engine.NewLocal(clock)
	require.NoError(t, err)

	store := tutil.NewIDAddr(t, builtin.FirstNonSingletonActorId)
	c, err := chain.New(ctx, chain.Options{
		NetworkName:   network,
		Clock:         clock,
		Verifier:      local,
		CapsuleStores: []addr.Address{store},
	})
	require.NoError(t, err)
	local.SetACL(c)

	w := wallet.New()
	alice, err := w.NewIdentity()
	require.NoError(t, err)
	bob, err := w.NewIdentity()
	require.NoError(t, err)
	carol, err := w.NewIdentity()
	require.NoError(t, err)
	require.NoError(t, w.Connect(alice, network))

	l := &autoLedger{Chain: c}
	e := &hookEngine{Local: local}
	sessions := session.NewManager(clock, 24*time.Hour)
	orch := orchestrator.New(orchestrator.Config{
		Deployments: map[string]orchestrator.Deployment{network: {Store: store, Ledger: l}},
		Poll:        ledger.PollPolicy{InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond},
	}, e, sessions, w)

	return &fixture{
		ctx: ctx, clock: clock, chain: c, ledger: l, engine: e, wallet: w, sessions: sessions, orch: orch,
		store: store, alice: alice, bob: bob, carol: carol,
	}
}

// passTime advances the clock and mines a block so the ledger observes the new time.
func (f *fixture) passTime(t *testing.T, d time.Duration) {
	f.clock.Advance(d)
	_, err := f.chain.Mine(f.ctx)
	require.NoError(t, err)
}

func (f *fixture) switchTo(t *testing.T, who addr.Address) {
	require.NoError(t, f.wallet.SwitchIdentity(who))
	f.orch.ContextChanged()
}

func (f *fixture) create(t *testing.T, payload string, heir *addr.Address) capsule.CapsuleID {
	out, id, err := f.orch.Create(f.ctx, []byte(payload), f.clock.Now().Unix()+3600, heir)
	require.NoError(t, err)
	require.Equal(t, orchestrator.OutcomeApplied, out)
	return id
}

func (f *fixture) ledgerCapsule(t *testing.T, id capsule.CapsuleID) *capsule.Capsule {
	st, store, err := f.chain.CapsuleState(f.store)
	require.NoError(t, err)
	c, found, err := st.GetCapsule(store, id)
	require.NoError(t, err)
	require.True(t, found)
	return c
}

func (f *fixture) totalCapsules(t *testing.T) capsule.CapsuleID {
	st, _, err := f.chain.CapsuleState(f.store)
	require.NoError(t, err)
	return st.NextID
}

func TestHiScenario(t *testing.T) {
	f := newFixture(t)

	id := f.create(t, "hi", nil)
	assert.Equal(t, capsule.CapsuleID(0), id)

	c, ok := f.orch.Capsule(id)
	require.True(t, ok)
	assert.Len(t, c.Handles, 1)
	assert.Equal(t, f.alice, c.Owner)
	assert.Equal(t, f.alice, c.Heir)
	assert.Equal(t, genesisTime+3600, c.ReleaseTime)
	assert.False(t, c.Unlocked)
	assert.Equal(t, "capsule 0 created", f.orch.Status())

	can, err := f.orch.CanUnlock(f.ctx, id)
	require.NoError(t, err)
	assert.False(t, can)

	out, err := f.orch.Decrypt(f.ctx, id)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrUnauthorized), "locked capsule cannot be revealed: %v", err)

	f.passTime(t, time.Hour)
	can, err = f.orch.CanUnlock(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, can)

	out, err = f.orch.Unlock(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)
	c, _ = f.orch.Capsule(id)
	assert.True(t, c.Unlocked)

	out, err = f.orch.Decrypt(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)
	c, _ = f.orch.Capsule(id)
	assert.True(t, c.Decrypted)
	assert.Equal(t, []byte("hi"), c.Plaintext)

	reveals := f.engine.reveals.Load()
	out, err = f.orch.Decrypt(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)
	assert.Equal(t, reveals, f.engine.reveals.Load(), "decrypted capsule is not revealed again")

	_, err = f.orch.CanUnlock(f.ctx, id)
	assert.True(t, errors.Is(err, capsuleerr.ErrAlreadyUnlocked))
}

func TestCreate(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		f := newFixture(t)
		out, _, err := f.orch.Create(f.ctx, nil, genesisTime+60, nil)
		assert.Equal(t, orchestrator.OutcomeFailed, out)
		assert.True(t, errors.Is(err, capsuleerr.ErrInvalidInput))
		assert.Contains(t, f.orch.Status(), "create failed")
	})

	t.Run("release time must be in the future", func(t *testing.T) {
		f := newFixture(t)
		for _, release := range []int64{genesisTime, genesisTime - 1} {
			out, _, err := f.orch.Create(f.ctx, []byte("x"), release, nil)
			assert.Equal(t, orchestrator.OutcomeFailed, out)
			assert.True(t, errors.Is(err, capsuleerr.ErrInvalidSchedule), err)
		}
		assert.Equal(t, capsule.CapsuleID(0), f.totalCapsules(t))
		assert.Empty(t, f.orch.Capsules())
	})

	t.Run("configured payload limit", func(t *testing.T) {
		f := newFixture(t)
		orch := orchestrator.New(orchestrator.Config{
			Deployments:     map[string]orchestrator.Deployment{network: {Store: f.store, Ledger: f.ledger}},
			MaxPayloadBytes: 8,
		}, f.engine, f.sessions, f.wallet)
		out, _, err := orch.Create(f.ctx, []byte("123456789"), genesisTime+60, nil)
		assert.Equal(t, orchestrator.OutcomeFailed, out)
		assert.True(t, errors.Is(err, capsuleerr.ErrInvalidInput))
	})

	t.Run("explicit and implicit self heir index once", func(t *testing.T) {
		f := newFixture(t)
		first := f.create(t, "one", nil)
		second := f.create(t, "two", &f.alice)

		st, store, err := f.chain.CapsuleState(f.store)
		require.NoError(t, err)
		ids, err := st.CapsulesFor(store, f.alice)
		require.NoError(t, err)
		assert.Equal(t, []capsule.CapsuleID{first, second}, ids)
		for _, id := range ids {
			assert.Equal(t, f.alice, f.ledgerCapsule(t, id).Heir)
		}
		assert.Len(t, f.orch.Capsules(), 2)
	})

	t.Run("heir sees the capsule after refresh", func(t *testing.T) {
		f := newFixture(t)
		id := f.create(t, "for bob", &f.bob)
		c, _ := f.orch.Capsule(id)
		assert.Equal(t, f.bob, c.Heir)

		f.switchTo(t, f.bob)
		assert.Empty(t, f.orch.Capsules())
		out, err := f.orch.Refresh(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeApplied, out)
		require.Len(t, f.orch.Capsules(), 1)
		assert.Equal(t, id, f.orch.Capsules()[0].ID)
	})

	t.Run("no deployment on network", func(t *testing.T) {
		f := newFixture(t)
		f.wallet.SwitchNetwork("othernet")
		out, _, err := f.orch.Create(f.ctx, []byte("x"), genesisTime+60, nil)
		assert.Equal(t, orchestrator.OutcomeFailed, out)
		assert.True(t, errors.Is(err, capsuleerr.ErrLedgerFailure))
	})

	t.Run("not connected", func(t *testing.T) {
		f := newFixture(t)
		orch := orchestrator.New(orchestrator.Config{}, f.engine, f.sessions, wallet.New())
		out, _, err := orch.Create(f.ctx, []byte("x"), genesisTime+60, nil)
		assert.Equal(t, orchestrator.OutcomeFailed, out)
		assert.True(t, errors.Is(err, capsuleerr.ErrUnauthorized))
	})
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "later", &f.bob)

	out, err := f.orch.Unlock(f.ctx, id)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrTooEarly))

	f.passTime(t, time.Hour)

	f.switchTo(t, f.carol)
	out, err = f.orch.Unlock(f.ctx, id)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrUnauthorized))
	assert.False(t, f.ledgerCapsule(t, id).Unlocked)

	out, err = f.orch.Unlock(f.ctx, 42)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrNotFound))

	f.switchTo(t, f.bob)
	out, err = f.orch.Unlock(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)
	assert.True(t, f.ledgerCapsule(t, id).Unlocked)

	out, err = f.orch.Unlock(f.ctx, id)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrAlreadyUnlocked))
	assert.True(t, f.ledgerCapsule(t, id).Unlocked)
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	t.Run("create switched during encryption", func(t *testing.T) {
		f := newFixture(t)
		f.engine.onEncrypt = func() { require.NoError(t, f.wallet.SwitchIdentity(f.bob)) }

		out, _, err := f.orch.Create(f.ctx, []byte("hi"), genesisTime+60, nil)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeStale, out)
		assert.Empty(t, f.orch.Capsules())
		assert.Equal(t, capsule.CapsuleID(0), f.totalCapsules(t))
		assert.Contains(t, f.orch.Status(), "discarded")
	})

	t.Run("create switched while awaiting commit", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.afterSubmit = func() { require.NoError(t, f.wallet.SwitchIdentity(f.bob)) }

		out, id, err := f.orch.Create(f.ctx, []byte("hi"), genesisTime+60, nil)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeStale, out)
		assert.Empty(t, f.orch.Capsules())
		// The ledger write stands.
		assert.Equal(t, capsule.CapsuleID(1), f.totalCapsules(t))
		assert.Equal(t, f.alice, f.ledgerCapsule(t, id).Owner)
	})

	t.Run("unlock switched while awaiting commit", func(t *testing.T) {
		f := newFixture(t)
		id := f.create(t, "hi", nil)
		f.passTime(t, time.Hour)
		f.ledger.afterSubmit = func() { f.wallet.SwitchNetwork("othernet") }

		out, err := f.orch.Unlock(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeStale, out)
		c, ok := f.orch.Capsule(id)
		require.True(t, ok)
		assert.False(t, c.Unlocked)
		assert.True(t, f.ledgerCapsule(t, id).Unlocked)
	})

	t.Run("decrypt switched during reveal", func(t *testing.T) {
		f := newFixture(t)
		id := f.create(t, "hi", nil)
		f.passTime(t, time.Hour)
		_, err := f.orch.Unlock(f.ctx, id)
		require.NoError(t, err)

		f.engine.onReveal = func() { require.NoError(t, f.wallet.SwitchIdentity(f.bob)) }
		out, err := f.orch.Decrypt(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeStale, out)
		c, _ := f.orch.Capsule(id)
		assert.False(t, c.Decrypted)
		assert.Nil(t, c.Plaintext)

		f.engine.onReveal = nil
		require.NoError(t, f.wallet.SwitchIdentity(f.alice))
		out, err = f.orch.Decrypt(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.OutcomeApplied, out)
		c, _ = f.orch.Capsule(id)
		assert.Equal(t, []byte("hi"), c.Plaintext)
	})
}

func TestDecryptKeepsConcurrentUpdates(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "hi", nil)
	f.passTime(t, time.Hour)

	// Another client of the same identity unlocks the capsule; this one still holds the locked view.
	other := orchestrator.New(orchestrator.Config{
		Deployments: map[string]orchestrator.Deployment{network: {Store: f.store, Ledger: f.ledger}},
		Poll:        ledger.PollPolicy{InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond},
	}, f.engine, f.sessions, f.wallet)
	out, err := other.Unlock(f.ctx, id)
	require.NoError(t, err)
	require.Equal(t, orchestrator.OutcomeApplied, out)
	c, _ := f.orch.Capsule(id)
	require.False(t, c.Unlocked)

	f.engine.onReveal = func() {
		out, err := f.orch.Refresh(f.ctx)
		require.NoError(t, err)
		require.Equal(t, orchestrator.OutcomeApplied, out)
		c, _ := f.orch.Capsule(id)
		require.True(t, c.Unlocked)
	}
	out, err = f.orch.Decrypt(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)

	c, ok := f.orch.Capsule(id)
	require.True(t, ok)
	assert.True(t, c.Unlocked, "refresh during decryption is not reverted")
	assert.True(t, c.Decrypted)
	assert.Equal(t, []byte("hi"), c.Plaintext)

	f.engine.onReveal = nil
	_, err = f.orch.Refresh(f.ctx)
	require.NoError(t, err)
	c, _ = f.orch.Capsule(id)
	assert.True(t, c.Unlocked)
	assert.Equal(t, []byte("hi"), c.Plaintext)
}

func TestBusy(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.engine.onEncrypt = func() {
		close(entered)
		<-release
	}

	type result struct {
		out orchestrator.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := f.orch.Create(f.ctx, []byte("first"), genesisTime+60, nil)
		done <- result{out, err}
	}()
	<-entered

	out, _, err := f.orch.Create(f.ctx, []byte("second"), genesisTime+60, nil)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeBusy, out)

	// Other workflows are not blocked.
	out, err = f.orch.Unlock(f.ctx, 7)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrNotFound))

	close(release)
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, orchestrator.OutcomeApplied, r.out)

	f.engine.onEncrypt = nil
	out, _, err = f.orch.Create(f.ctx, nil, genesisTime+60, nil)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.Error(t, err)
	out, _, err = f.orch.Create(f.ctx, []byte("third"), genesisTime+60, nil)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out, "busy flag is released after a failure")
}

func TestCapabilityScope(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "secret", &f.bob)
	f.passTime(t, time.Hour)
	_, err := f.orch.Unlock(f.ctx, id)
	require.NoError(t, err)
	out, err := f.orch.Decrypt(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)

	f.switchTo(t, f.bob)
	_, err = f.orch.Refresh(f.ctx)
	require.NoError(t, err)
	out, err = f.orch.Decrypt(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)
	c, _ := f.orch.Capsule(id)
	assert.Equal(t, []byte("secret"), c.Plaintext)

	f.switchTo(t, f.carol)
	_, err = f.orch.Refresh(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, f.orch.Capsules())
	out, err = f.orch.Decrypt(f.ctx, id)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrContentUnavailable))

	// Even with the handles in hand, a third identity cannot reveal them.
	handles := f.ledgerHandles(t, id)
	s, err := f.sessions.Obtain(f.ctx, []addr.Address{f.store}, f.carol, f.wallet)
	require.NoError(t, err)
	_, err = f.engine.Reveal(f.ctx, handles, s)
	assert.True(t, errors.Is(err, capsuleerr.ErrUnauthorized))
}

func (f *fixture) ledgerHandles(t *testing.T, id capsule.CapsuleID) []cid.Cid {
	st, store, err := f.chain.CapsuleState(f.store)
	require.NoError(t, err)
	handles, err := st.ChunkHandles(store, f.ledgerCapsule(t, id))
	require.NoError(t, err)
	return handles
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "one", nil)
	second := f.create(t, "two", nil)

	f.switchTo(t, f.alice)
	assert.Empty(t, f.orch.Capsules())

	f.ledger.failCall = func(msg *ledger.Message) error {
		if msg.Method == builtin.MethodsCapsule.GetCiphertextHandles {
			var p capsule.CapsuleIDParams
			require.NoError(t, p.UnmarshalCBOR(bytes.NewReader(msg.Params)))
			if p.ID == second {
				return errors.New("node unavailable")
			}
		}
		return nil
	}
	out, err := f.orch.Refresh(f.ctx)
	assert.Equal(t, orchestrator.OutcomeFailed, out)
	assert.True(t, errors.Is(err, capsuleerr.ErrLedgerFailure))
	assert.Contains(t, err.Error(), "loading capsule 1")
	require.Len(t, f.orch.Capsules(), 1)
	assert.Equal(t, first, f.orch.Capsules()[0].ID)

	f.ledger.failCall = nil
	out, err = f.orch.Refresh(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeApplied, out)
	assert.Len(t, f.orch.Capsules(), 2)
	assert.Equal(t, "2 capsules loaded", f.orch.Status())
}

func TestContextChanged(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "hi", nil)
	f.passTime(t, time.Hour)
	_, err := f.orch.Unlock(f.ctx, id)
	require.NoError(t, err)
	_, err = f.orch.Decrypt(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.Len())

	f.switchTo(t, f.bob)
	assert.Equal(t, 0, f.sessions.Len())
	assert.Empty(t, f.orch.Capsules())
	assert.Equal(t, orchestrator.Snapshot{Identity: f.bob, Network: network}, f.orch.Snapshot())
}
