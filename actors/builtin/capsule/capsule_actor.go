package capsule

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/runtime"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
)

type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.CreateCapsule,
		3:                         a.UnlockCapsule,
		4:                         a.GetMetadata,
		5:                         a.GetCiphertextHandles,
		6:                         a.CanUnlock,
		7:                         a.ListCapsulesFor,
		8:                         a.TotalCapsules,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.CapsuleStoreActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

func (a Actor) Constructor(rt runtime.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	st, err := ConstructState(adt.AsStore(rt))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

type CreateCapsuleParams struct {
	// Ciphertext handles produced by the engine, one per 32-bit word.
	Chunks []cid.Cid
	// The engine's attestation that Chunks were produced for this store and caller.
	Proof []byte
	// Unix seconds.
	ReleaseTime int64
	// Defaults to the caller when nil.
	Heir *addr.Address
}

type CreateCapsuleReturn struct {
	ID CapsuleID
}

type CapsuleCreatedEvent struct {
	ID          CapsuleID
	Owner       addr.Address
	Heir        addr.Address
	ReleaseTime int64
}

// CreateCapsule records a capsule owned by the caller and grants its handles to the owner and heir.
func (a Actor) CreateCapsule(rt runtime.Runtime, params *CreateCapsuleParams) *CreateCapsuleReturn {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)
	owner := rt.Caller()
	now := rt.Timestamp()

	if params.ReleaseTime <= now {
		rt.Abortf(ErrInvalidSchedule, "release time %d must be after current time %d", params.ReleaseTime, now)
	}
	if len(params.Chunks) == 0 {
		rt.Abortf(ErrEmptyContent, "capsule must hold at least one ciphertext word")
	}
	builtin.RequireParam(rt, len(params.Chunks) <= MaxChunks, "too many ciphertext words %d, max %d", len(params.Chunks), MaxChunks)
	for i, h := range params.Chunks {
		builtin.RequireParam(rt, h.Defined(), "ciphertext handle %d is undefined", i)
	}

	heir := owner
	if params.Heir != nil {
		builtin.RequireParam(rt, *params.Heir != addr.Undef, "heir address is undefined")
		heir = *params.Heir
	}

	if err := rt.VerifyCiphertextProof(owner, params.Chunks, params.Proof); err != nil {
		rt.Abortf(ErrInvalidProof, "ciphertext proof from %v rejected: %s", owner, err)
	}

	var id CapsuleID
	var st State
	rt.StateTransaction(&st, func() {
		var err error
		id, err = st.AddCapsule(adt.AsStore(rt), owner, heir, params.Chunks, params.ReleaseTime, now)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to add capsule")
	})

	rt.EmitEvent(EventCapsuleCreated, &CapsuleCreatedEvent{
		ID:          id,
		Owner:       owner,
		Heir:        heir,
		ReleaseTime: params.ReleaseTime,
	})
	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "capsule %d created by %v for heir %v, release at %d", id, owner, heir, params.ReleaseTime)
	return &CreateCapsuleReturn{ID: id}
}

type CapsuleIDParams struct {
	ID CapsuleID
}

type CapsuleUnlockedEvent struct {
	ID       CapsuleID
	Unlocker addr.Address
}

// UnlockCapsule marks a capsule unlocked once its release time is reached.
// Only the owner or the heir may unlock.
func (a Actor) UnlockCapsule(rt runtime.Runtime, params *CapsuleIDParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Caller()
	now := rt.Timestamp()

	var st State
	rt.StateTransaction(&st, func() {
		store := adt.AsStore(rt)
		c := loadCapsule(rt, &st, params.ID)
		if c.Unlocked {
			rt.Abortf(ErrAlreadyUnlocked, "capsule %d is already unlocked", params.ID)
		}
		if now < c.ReleaseTime {
			rt.Abortf(ErrTooEarly, "capsule %d releases at %d, current time %d", params.ID, c.ReleaseTime, now)
		}
		if caller != c.Owner && caller != c.Heir {
			rt.Abortf(exitcode.ErrForbidden, "%v is neither owner nor heir of capsule %d", caller, params.ID)
		}

		c.Unlocked = true
		err := st.SetCapsule(store, params.ID, c)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to save capsule %d", params.ID)
	})

	rt.EmitEvent(EventCapsuleUnlocked, &CapsuleUnlockedEvent{ID: params.ID, Unlocker: caller})
	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "capsule %d unlocked by %v", params.ID, caller)
	return nil
}

type MetadataReturn struct {
	ReleaseTime int64
	Owner       addr.Address
	Heir        addr.Address
	Exists      bool
	Unlocked    bool
}

func (a Actor) GetMetadata(rt runtime.Runtime, params *CapsuleIDParams) *MetadataReturn {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.StateReadonly(&st)
	c := loadCapsule(rt, &st, params.ID)
	return &MetadataReturn{
		ReleaseTime: c.ReleaseTime,
		Owner:       c.Owner,
		Heir:        c.Heir,
		Exists:      true,
		Unlocked:    c.Unlocked,
	}
}

type HandlesReturn struct {
	Handles []cid.Cid
}

// GetCiphertextHandles returns the handles regardless of unlock state. Handles are opaque; revealing
// them is gated by the engine.
func (a Actor) GetCiphertextHandles(rt runtime.Runtime, params *CapsuleIDParams) *HandlesReturn {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.StateReadonly(&st)
	c := loadCapsule(rt, &st, params.ID)
	handles, err := st.ChunkHandles(adt.AsStore(rt), c)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load handles of capsule %d", params.ID)
	return &HandlesReturn{Handles: handles}
}

func (a Actor) CanUnlock(rt runtime.Runtime, params *CapsuleIDParams) *cbg.CborBool {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.StateReadonly(&st)
	c := loadCapsule(rt, &st, params.ID)
	if c.Unlocked {
		rt.Abortf(ErrAlreadyUnlocked, "capsule %d is already unlocked", params.ID)
	}
	ret := cbg.CborBool(c.CanUnlock(rt.Timestamp()))
	return &ret
}

type IdentityParams struct {
	Identity addr.Address
}

type CapsuleIDsReturn struct {
	IDs []CapsuleID
}

// ListCapsulesFor returns the capsules an identity owns or is heir to, in creation order.
func (a Actor) ListCapsulesFor(rt runtime.Runtime, params *IdentityParams) *CapsuleIDsReturn {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.StateReadonly(&st)
	ids, err := st.CapsulesFor(adt.AsStore(rt), params.Identity)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to list capsules for %v", params.Identity)
	return &CapsuleIDsReturn{IDs: ids}
}

func (a Actor) TotalCapsules(rt runtime.Runtime, _ *adt.EmptyValue) *cbg.CborInt {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.StateReadonly(&st)
	ret := cbg.CborInt(st.NextID)
	return &ret
}

func loadCapsule(rt runtime.Runtime, st *State, id CapsuleID) *Capsule {
	c, found, err := st.GetCapsule(adt.AsStore(rt), id)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load capsule %d", id)
	if !found {
		rt.Abortf(exitcode.ErrNotFound, "no capsule %d", id)
	}
	return c
}
