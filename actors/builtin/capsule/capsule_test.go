package capsule_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/support/mock"
	tutil "github.com/DianaJonathan/timecapsule/support/testing"
)

const startTime = int64(1_700_000_000)

var proof = []byte("engine-attestation")

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, capsule.Actor{})
}

func TestConstruction(t *testing.T) {
	actor := capsule.Actor{}
	receiver := tutil.NewIDAddr(t, builtin.FirstNonSingletonActorId)

	t.Run("empty store", func(t *testing.T) {
		rt := mock.NewBuilder(context.Background(), receiver).
			WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID).
			Build(t)

		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		ret := rt.Call(actor.Constructor, nil)
		assert.Nil(t, ret)
		rt.Verify()

		var st capsule.State
		rt.GetState(&st)
		assert.Equal(t, capsule.CapsuleID(0), st.NextID)

		summary, msgs := capsule.CheckStateInvariants(&st, rt.AdtStore())
		assert.Empty(t, msgs.Messages(), "%v", msgs.Messages())
		assert.Equal(t, uint64(0), summary.CapsuleCount)
	})

	t.Run("only the system may construct", func(t *testing.T) {
		rt := mock.NewBuilder(context.Background(), receiver).
			WithCaller(tutil.NewIDAddr(t, 1000), builtin.AccountActorCodeID).
			Build(t)

		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(actor.Constructor, nil)
		})
		rt.Verify()
	})
}

func TestCreateCapsule(t *testing.T) {
	owner := tutil.NewSECP256K1Addr(t, "owner")
	heir := tutil.NewSECP256K1Addr(t, "heir")

	t.Run("records capsule, grants and index", func(t *testing.T) {
		rt, h := newHarness(t)
		handles := h.handles(3)

		id := h.createCapsule(rt, owner, handles, startTime+100, &heir)
		assert.Equal(t, capsule.CapsuleID(0), id)

		meta := h.getMetadata(rt, id)
		assert.Equal(t, capsule.MetadataReturn{
			ReleaseTime: startTime + 100,
			Owner:       owner,
			Heir:        heir,
			Exists:      true,
			Unlocked:    false,
		}, *meta)
		assert.Equal(t, handles, h.getHandles(rt, id))
		assert.Equal(t, []capsule.CapsuleID{0}, h.listFor(rt, owner))
		assert.Equal(t, []capsule.CapsuleID{0}, h.listFor(rt, heir))

		st := h.getState(rt)
		for _, handle := range handles {
			for _, who := range []addr.Address{owner, heir} {
				ok, err := st.HasCapability(rt.AdtStore(), handle, who)
				require.NoError(t, err)
				assert.True(t, ok)
			}
			ok, err := st.HasCapability(rt.AdtStore(), handle, tutil.NewIDAddr(t, 999))
			require.NoError(t, err)
			assert.False(t, ok)
		}

		c, found := h.capsule(rt, id)
		require.True(t, found)
		assert.Equal(t, startTime, c.CreatedAt)
		assert.Equal(t, uint64(3), c.ChunkCount)
		h.checkState(rt)
	})

	t.Run("heir defaults to the caller", func(t *testing.T) {
		rt, h := newHarness(t)
		id := h.createCapsule(rt, owner, h.handles(1), startTime+1, nil)

		meta := h.getMetadata(rt, id)
		assert.Equal(t, owner, meta.Heir)
		// A self-heir is indexed once.
		assert.Equal(t, []capsule.CapsuleID{id}, h.listFor(rt, owner))
		h.checkState(rt)
	})

	t.Run("ids are assigned in creation order", func(t *testing.T) {
		rt, h := newHarness(t)
		assert.Equal(t, capsule.CapsuleID(0), h.createCapsule(rt, owner, h.handles(1), startTime+10, &heir))
		assert.Equal(t, capsule.CapsuleID(1), h.createCapsule(rt, heir, h.handles(2), startTime+20, nil))
		assert.Equal(t, capsule.CapsuleID(2), h.createCapsule(rt, owner, h.handles(1), startTime+30, nil))

		assert.Equal(t, int64(3), h.total(rt))
		assert.Equal(t, []capsule.CapsuleID{0, 2}, h.listFor(rt, owner))
		assert.Equal(t, []capsule.CapsuleID{0, 1}, h.listFor(rt, heir))
		h.checkState(rt)
	})

	t.Run("rejects release time not in the future", func(t *testing.T) {
		rt, h := newHarness(t)
		for _, release := range []int64{startTime, startTime - 1, 0} {
			rt.SetCaller(owner, builtin.AccountActorCodeID)
			rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
			rt.ExpectAbort(capsule.ErrInvalidSchedule, func() {
				rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
					Chunks:      h.handles(1),
					Proof:       proof,
					ReleaseTime: release,
				})
			})
			rt.Verify()
		}
		assert.Equal(t, int64(0), h.total(rt))
	})

	t.Run("rejects empty content", func(t *testing.T) {
		rt, h := newHarness(t)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(capsule.ErrEmptyContent, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      nil,
				Proof:       proof,
				ReleaseTime: startTime + 100,
			})
		})
		rt.Verify()
	})

	t.Run("rejects too many words", func(t *testing.T) {
		rt, h := newHarness(t)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      h.handles(capsule.MaxChunks + 1),
				Proof:       proof,
				ReleaseTime: startTime + 100,
			})
		})
		rt.Verify()
	})

	t.Run("rejects undefined handle", func(t *testing.T) {
		rt, h := newHarness(t)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      []cid.Cid{h.handles(1)[0], cid.Undef},
				Proof:       proof,
				ReleaseTime: startTime + 100,
			})
		})
		rt.Verify()
	})

	t.Run("rejects undefined heir", func(t *testing.T) {
		rt, h := newHarness(t)
		undef := addr.Undef
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      h.handles(1),
				Proof:       proof,
				ReleaseTime: startTime + 100,
				Heir:        &undef,
			})
		})
		rt.Verify()
	})

	t.Run("rejects handles the engine does not vouch for", func(t *testing.T) {
		rt, h := newHarness(t)
		handles := h.handles(2)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectVerifyCiphertextProof(owner, handles, []byte("forged"), xerrors.New("bad proof"))
		rt.ExpectAbort(capsule.ErrInvalidProof, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      handles,
				Proof:       []byte("forged"),
				ReleaseTime: startTime + 100,
			})
		})
		rt.Verify()
		assert.Equal(t, int64(0), h.total(rt))
		h.checkState(rt)
	})

	t.Run("rejects handles recorded in an earlier capsule", func(t *testing.T) {
		rt, h := newHarness(t)
		stranger := tutil.NewSECP256K1Addr(t, "stranger")
		handles := h.handles(2)
		id := h.createCapsule(rt, owner, handles, startTime+3600, &heir)

		reused := []cid.Cid{h.handles(1)[0], handles[1]}
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectVerifyCiphertextProof(owner, reused, proof, nil)
		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "already recorded", func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      reused,
				Proof:       proof,
				ReleaseTime: startTime + 10,
				Heir:        &stranger,
			})
		})
		rt.Verify()

		assert.Equal(t, int64(1), h.total(rt))
		assert.Empty(t, h.listFor(rt, stranger))
		st := h.getState(rt)
		for _, handle := range handles {
			ok, err := st.HasCapability(rt.AdtStore(), handle, stranger)
			require.NoError(t, err)
			assert.False(t, ok)

			granted, found, err := st.GrantFor(rt.AdtStore(), handle, owner)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, id, granted)

			recorded, found, err := st.CapsuleOf(rt.AdtStore(), handle)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, id, recorded)
		}
		h.checkState(rt)
	})

	t.Run("rejects a handle repeated within one capsule", func(t *testing.T) {
		rt, h := newHarness(t)
		handle := h.handles(1)[0]
		chunks := []cid.Cid{handle, handle}
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectVerifyCiphertextProof(owner, chunks, proof, nil)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      chunks,
				Proof:       proof,
				ReleaseTime: startTime + 100,
			})
		})
		rt.Verify()
		assert.Equal(t, int64(0), h.total(rt))
		h.checkState(rt)
	})

	t.Run("rejects non-signable callers", func(t *testing.T) {
		rt, h := newHarness(t)
		rt.SetCaller(tutil.NewIDAddr(t, 555), builtin.CapsuleStoreActorCodeID)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectAbort(exitcode.SysErrForbidden, func() {
			rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
				Chunks:      h.handles(1),
				Proof:       proof,
				ReleaseTime: startTime + 100,
			})
		})
		rt.Verify()
	})
}

func TestUnlockCapsule(t *testing.T) {
	owner := tutil.NewSECP256K1Addr(t, "owner")
	heir := tutil.NewSECP256K1Addr(t, "heir")
	stranger := tutil.NewSECP256K1Addr(t, "stranger")
	release := startTime + 3600

	t.Run("heir unlocks at release time", func(t *testing.T) {
		rt, h := newHarness(t)
		handles := h.handles(2)
		id := h.createCapsule(rt, owner, handles, release, &heir)

		rt.SetTimestamp(release)
		h.unlock(rt, heir, id)

		meta := h.getMetadata(rt, id)
		assert.True(t, meta.Unlocked)

		st := h.getState(rt)
		for _, handle := range handles {
			ok, err := st.CanReveal(rt.AdtStore(), handle, heir)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = st.CanReveal(rt.AdtStore(), handle, stranger)
			require.NoError(t, err)
			assert.False(t, ok)
		}
		h.checkState(rt)
	})

	t.Run("owner unlocks after release time", func(t *testing.T) {
		rt, h := newHarness(t)
		id := h.createCapsule(rt, owner, h.handles(1), release, &heir)
		rt.SetTimestamp(release + 1000)
		h.unlock(rt, owner, id)
		assert.True(t, h.getMetadata(rt, id).Unlocked)
	})

	t.Run("handles are not revealable before unlock", func(t *testing.T) {
		rt, h := newHarness(t)
		handles := h.handles(1)
		h.createCapsule(rt, owner, handles, release, &heir)

		st := h.getState(rt)
		ok, err := st.CanReveal(rt.AdtStore(), handles[0], owner)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("too early", func(t *testing.T) {
		rt, h := newHarness(t)
		id := h.createCapsule(rt, owner, h.handles(1), release, &heir)

		rt.SetTimestamp(release - 1)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(capsule.ErrTooEarly, func() {
			rt.Call(h.a.UnlockCapsule, &capsule.CapsuleIDParams{ID: id})
		})
		rt.Verify()
		assert.False(t, h.getMetadata(rt, id).Unlocked)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		rt, h := newHarness(t)
		id := h.createCapsule(rt, owner, h.handles(1), release, &heir)

		rt.SetTimestamp(release)
		rt.SetCaller(stranger, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.a.UnlockCapsule, &capsule.CapsuleIDParams{ID: id})
		})
		rt.Verify()
		assert.False(t, h.getMetadata(rt, id).Unlocked)
	})

	t.Run("unlock is one-way", func(t *testing.T) {
		rt, h := newHarness(t)
		id := h.createCapsule(rt, owner, h.handles(1), release, &heir)
		rt.SetTimestamp(release)
		h.unlock(rt, owner, id)

		rt.SetCaller(heir, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(capsule.ErrAlreadyUnlocked, func() {
			rt.Call(h.a.UnlockCapsule, &capsule.CapsuleIDParams{ID: id})
		})
		rt.Verify()
		assert.True(t, h.getMetadata(rt, id).Unlocked)
	})

	t.Run("unknown capsule", func(t *testing.T) {
		rt, h := newHarness(t)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrNotFound, func() {
			rt.Call(h.a.UnlockCapsule, &capsule.CapsuleIDParams{ID: 7})
		})
		rt.Verify()
	})
}

func TestViews(t *testing.T) {
	owner := tutil.NewSECP256K1Addr(t, "owner")
	heir := tutil.NewBLSAddr(t, 1)
	release := startTime + 60

	t.Run("can unlock follows the clock", func(t *testing.T) {
		rt, h := newHarness(t)
		id := h.createCapsule(rt, owner, h.handles(1), release, &heir)

		assert.False(t, h.canUnlock(rt, id))
		rt.SetTimestamp(release)
		assert.True(t, h.canUnlock(rt, id))

		h.unlock(rt, heir, id)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(capsule.ErrAlreadyUnlocked, func() {
			rt.Call(h.a.CanUnlock, &capsule.CapsuleIDParams{ID: id})
		})
		rt.Verify()
	})

	t.Run("missing capsule", func(t *testing.T) {
		rt, h := newHarness(t)
		for _, method := range []interface{}{h.a.GetMetadata, h.a.GetCiphertextHandles, h.a.CanUnlock} {
			rt.ExpectValidateCallerAny()
			rt.ExpectAbort(exitcode.ErrNotFound, func() {
				rt.Call(method, &capsule.CapsuleIDParams{ID: 0})
			})
			rt.Verify()
		}
	})

	t.Run("unknown identity has no capsules", func(t *testing.T) {
		rt, h := newHarness(t)
		h.createCapsule(rt, owner, h.handles(1), release, &heir)
		assert.Equal(t, []capsule.CapsuleID{}, h.listFor(rt, tutil.NewIDAddr(t, 4242)))
	})

	t.Run("total on empty store", func(t *testing.T) {
		rt, h := newHarness(t)
		assert.Equal(t, int64(0), h.total(rt))
	})
}

type actorHarness struct {
	a        capsule.Actor
	t        testing.TB
	receiver addr.Address
	nextCid  func() cid.Cid
}

func newHarness(t *testing.T) (*mock.Runtime, *actorHarness) {
	receiver := tutil.NewIDAddr(t, builtin.FirstNonSingletonActorId)
	rt := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID).
		WithTimestamp(startTime).
		Build(t)
	h := &actorHarness{
		a:        capsule.Actor{},
		t:        t,
		receiver: receiver,
		nextCid:  tutil.NewCidForTestGetter(),
	}

	rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
	rt.Call(h.a.Constructor, nil)
	rt.Verify()
	return rt, h
}

func (h *actorHarness) handles(n int) []cid.Cid {
	out := make([]cid.Cid, n)
	for i := range out {
		out[i] = h.nextCid()
	}
	return out
}

func (h *actorHarness) createCapsule(rt *mock.Runtime, owner addr.Address, handles []cid.Cid, release int64, heir *addr.Address) capsule.CapsuleID {
	expectedID := capsule.CapsuleID(h.total(rt))
	expectedHeir := owner
	if heir != nil {
		expectedHeir = *heir
	}

	rt.SetCaller(owner, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
	rt.ExpectVerifyCiphertextProof(owner, handles, proof, nil)
	rt.ExpectEmitEvent(capsule.EventCapsuleCreated, &capsule.CapsuleCreatedEvent{
		ID:          expectedID,
		Owner:       owner,
		Heir:        expectedHeir,
		ReleaseTime: release,
	})
	ret := rt.Call(h.a.CreateCapsule, &capsule.CreateCapsuleParams{
		Chunks:      handles,
		Proof:       proof,
		ReleaseTime: release,
		Heir:        heir,
	}).(*capsule.CreateCapsuleReturn)
	rt.Verify()

	require.Equal(h.t, expectedID, ret.ID)
	return ret.ID
}

func (h *actorHarness) unlock(rt *mock.Runtime, caller addr.Address, id capsule.CapsuleID) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.ExpectEmitEvent(capsule.EventCapsuleUnlocked, &capsule.CapsuleUnlockedEvent{ID: id, Unlocker: caller})
	rt.Call(h.a.UnlockCapsule, &capsule.CapsuleIDParams{ID: id})
	rt.Verify()
}

func (h *actorHarness) getMetadata(rt *mock.Runtime, id capsule.CapsuleID) *capsule.MetadataReturn {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.a.GetMetadata, &capsule.CapsuleIDParams{ID: id}).(*capsule.MetadataReturn)
	rt.Verify()
	return ret
}

func (h *actorHarness) getHandles(rt *mock.Runtime, id capsule.CapsuleID) []cid.Cid {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.a.GetCiphertextHandles, &capsule.CapsuleIDParams{ID: id}).(*capsule.HandlesReturn)
	rt.Verify()
	return ret.Handles
}

func (h *actorHarness) canUnlock(rt *mock.Runtime, id capsule.CapsuleID) bool {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.a.CanUnlock, &capsule.CapsuleIDParams{ID: id}).(*cbg.CborBool)
	rt.Verify()
	return bool(*ret)
}

func (h *actorHarness) listFor(rt *mock.Runtime, who addr.Address) []capsule.CapsuleID {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.a.ListCapsulesFor, &capsule.IdentityParams{Identity: who}).(*capsule.CapsuleIDsReturn)
	rt.Verify()
	return ret.IDs
}

func (h *actorHarness) total(rt *mock.Runtime) int64 {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.a.TotalCapsules, nil).(*cbg.CborInt)
	rt.Verify()
	return int64(*ret)
}

func (h *actorHarness) getState(rt *mock.Runtime) *capsule.State {
	var st capsule.State
	rt.GetState(&st)
	return &st
}

func (h *actorHarness) capsule(rt *mock.Runtime, id capsule.CapsuleID) (capsule.Capsule, bool) {
	st := h.getState(rt)
	c, found, err := st.GetCapsule(rt.AdtStore(), id)
	require.NoError(h.t, err)
	if !found {
		return capsule.Capsule{}, false
	}
	return *c, true
}

func (h *actorHarness) checkState(rt *mock.Runtime) {
	st := h.getState(rt)
	_, msgs := capsule.CheckStateInvariants(st, rt.AdtStore())
	assert.Empty(h.t, msgs.Messages(), "%v", msgs.Messages())
}
