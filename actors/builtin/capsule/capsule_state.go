package capsule

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/util/adt"
)

// CapsuleID identifies a capsule within one store. IDs are dense and assigned in creation order.
type CapsuleID uint64

type State struct {
	// All capsules ever created, indexed by ID.
	Capsules cid.Cid // AMT[CapsuleID]Capsule
	// The ID the next capsule receives; equal to the number of capsules.
	NextID CapsuleID
	// Capsule IDs an identity is owner or heir of, in creation order.
	Index cid.Cid // Multimap, HAMT[addr.Address]AMT[CapsuleID]
	// Which identities may have a ciphertext handle revealed, and under which capsule.
	Grants cid.Cid // HAMT[GrantKey]CapsuleID
	// The capsule each ciphertext handle was recorded in. A handle belongs to at most one capsule.
	Handles cid.Cid // HAMT[cid]CapsuleID
}

type Capsule struct {
	// Ciphertext handles, one per 32-bit word.
	Chunks     cid.Cid // AMT[uint64]cid.Cid
	ChunkCount uint64
	// Unix seconds at or after which the capsule may be unlocked.
	ReleaseTime int64
	// Block timestamp at creation.
	CreatedAt int64
	Owner     addr.Address
	Heir      addr.Address
	Unlocked  bool
}

// CanUnlock reports whether an unlock at block timestamp now would pass the schedule checks.
func (c *Capsule) CanUnlock(now int64) bool {
	return !c.Unlocked && now >= c.ReleaseTime
}

// Holders lists the identities granted access to the capsule: the owner, and the heir if distinct.
func (c *Capsule) Holders() []addr.Address {
	return holders(c.Owner, c.Heir)
}

func holders(owner, heir addr.Address) []addr.Address {
	if owner == heir {
		return []addr.Address{owner}
	}
	return []addr.Address{owner, heir}
}

// GrantKey keys the capability table by (handle, identity).
type GrantKey struct {
	Handle cid.Cid
	Holder addr.Address
}

func (k GrantKey) Key() string {
	return k.Handle.KeyString() + string(k.Holder.Bytes())
}

func ConstructState(store adt.Store) (*State, error) {
	emptyCapsules, err := adt.StoreEmptyArray(store, CapsulesAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty capsules array: %w", err)
	}
	emptyIndex, err := adt.StoreEmptyMultimap(store, IndexHamtBitwidth, IndexAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty index: %w", err)
	}
	emptyGrants, err := adt.StoreEmptyMap(store, GrantsHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty grants: %w", err)
	}
	emptyHandles, err := adt.StoreEmptyMap(store, HandlesHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty handle table: %w", err)
	}

	return &State{
		Capsules: emptyCapsules,
		NextID:   0,
		Index:    emptyIndex,
		Grants:   emptyGrants,
		Handles:  emptyHandles,
	}, nil
}

// AddCapsule records a new capsule, grants every handle to its holders and indexes it under them.
// Fails with ErrIllegalArgument if any handle is already recorded, in this or an earlier capsule.
// The caller is responsible for validating the other arguments.
func (st *State) AddCapsule(store adt.Store, owner, heir addr.Address, handles []cid.Cid, releaseTime, createdAt int64) (CapsuleID, error) {
	id := st.NextID
	idVal := cbg.CborInt(id)

	claims, err := adt.AsMap(store, st.Handles, HandlesHamtBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load handle table: %w", err)
	}
	for _, h := range handles {
		added, err := claims.PutIfAbsent(adt.CidKey(h), &idVal)
		if err != nil {
			return 0, xerrors.Errorf("failed to record handle %s: %w", h, err)
		}
		if !added {
			return 0, exitcode.ErrIllegalArgument.Wrapf("handle %s is already recorded", h)
		}
	}
	if st.Handles, err = claims.Root(); err != nil {
		return 0, xerrors.Errorf("failed to flush handle table: %w", err)
	}

	chunks, err := adt.MakeEmptyArray(store, ChunksAmtBitwidth)
	if err != nil {
		return 0, err
	}
	for _, h := range handles {
		c := cbg.CborCid(h)
		if err := chunks.AppendContinuous(&c); err != nil {
			return 0, xerrors.Errorf("failed to append handle %s: %w", h, err)
		}
	}
	chunksRoot, err := chunks.Root()
	if err != nil {
		return 0, xerrors.Errorf("failed to flush chunks: %w", err)
	}

	if err := st.SetCapsule(store, id, &Capsule{
		Chunks:      chunksRoot,
		ChunkCount:  uint64(len(handles)),
		ReleaseTime: releaseTime,
		CreatedAt:   createdAt,
		Owner:       owner,
		Heir:        heir,
		Unlocked:    false,
	}); err != nil {
		return 0, err
	}

	grants, err := adt.AsMap(store, st.Grants, GrantsHamtBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load grants: %w", err)
	}
	for _, h := range handles {
		for _, who := range holders(owner, heir) {
			if err := grants.Put(GrantKey{Handle: h, Holder: who}, &idVal); err != nil {
				return 0, xerrors.Errorf("failed to grant %s to %s: %w", h, who, err)
			}
		}
	}
	if st.Grants, err = grants.Root(); err != nil {
		return 0, xerrors.Errorf("failed to flush grants: %w", err)
	}

	index, err := adt.AsMultimap(store, st.Index, IndexHamtBitwidth, IndexAmtBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load index: %w", err)
	}
	for _, who := range holders(owner, heir) {
		if err := index.Add(adt.AddrKey(who), &idVal); err != nil {
			return 0, xerrors.Errorf("failed to index capsule %d under %s: %w", id, who, err)
		}
	}
	if st.Index, err = index.Root(); err != nil {
		return 0, xerrors.Errorf("failed to flush index: %w", err)
	}

	st.NextID++
	return id, nil
}

// GetCapsule loads a capsule by ID.
func (st *State) GetCapsule(store adt.Store, id CapsuleID) (*Capsule, bool, error) {
	capsules, err := adt.AsArray(store, st.Capsules, CapsulesAmtBitwidth)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load capsules: %w", err)
	}
	var out Capsule
	found, err := capsules.Get(uint64(id), &out)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load capsule %d: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	return &out, true, nil
}

// SetCapsule stores a capsule under an ID, replacing any previous value.
func (st *State) SetCapsule(store adt.Store, id CapsuleID, c *Capsule) error {
	capsules, err := adt.AsArray(store, st.Capsules, CapsulesAmtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load capsules: %w", err)
	}
	if err := capsules.Set(uint64(id), c); err != nil {
		return xerrors.Errorf("failed to set capsule %d: %w", id, err)
	}
	if st.Capsules, err = capsules.Root(); err != nil {
		return xerrors.Errorf("failed to flush capsules: %w", err)
	}
	return nil
}

// ChunkHandles loads a capsule's ciphertext handles in word order.
func (st *State) ChunkHandles(store adt.Store, c *Capsule) ([]cid.Cid, error) {
	chunks, err := adt.AsArray(store, c.Chunks, ChunksAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load chunks: %w", err)
	}
	out := make([]cid.Cid, 0, c.ChunkCount)
	var h cbg.CborCid
	if err := chunks.ForEach(&h, func(i int64) error {
		out = append(out, cid.Cid(h))
		return nil
	}); err != nil {
		return nil, xerrors.Errorf("failed to iterate chunks: %w", err)
	}
	return out, nil
}

// CapsulesFor lists the IDs indexed under an identity, in creation order.
func (st *State) CapsulesFor(store adt.Store, who addr.Address) ([]CapsuleID, error) {
	index, err := adt.AsMultimap(store, st.Index, IndexHamtBitwidth, IndexAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load index: %w", err)
	}
	out := []CapsuleID{}
	var id cbg.CborInt
	if err := index.ForEach(adt.AddrKey(who), &id, func(i int64) error {
		out = append(out, CapsuleID(id))
		return nil
	}); err != nil {
		return nil, xerrors.Errorf("failed to iterate index for %s: %w", who, err)
	}
	return out, nil
}

// GrantFor returns the capsule under which a handle was granted to an identity, if any.
func (st *State) GrantFor(store adt.Store, handle cid.Cid, who addr.Address) (CapsuleID, bool, error) {
	grants, err := adt.AsMap(store, st.Grants, GrantsHamtBitwidth)
	if err != nil {
		return 0, false, xerrors.Errorf("failed to load grants: %w", err)
	}
	var id cbg.CborInt
	found, err := grants.Get(GrantKey{Handle: handle, Holder: who}, &id)
	if err != nil {
		return 0, false, xerrors.Errorf("failed to look up grant of %s to %s: %w", handle, who, err)
	}
	return CapsuleID(id), found, nil
}

// CapsuleOf returns the capsule a handle was recorded in, if any.
func (st *State) CapsuleOf(store adt.Store, handle cid.Cid) (CapsuleID, bool, error) {
	claims, err := adt.AsMap(store, st.Handles, HandlesHamtBitwidth)
	if err != nil {
		return 0, false, xerrors.Errorf("failed to load handle table: %w", err)
	}
	var id cbg.CborInt
	found, err := claims.Get(adt.CidKey(handle), &id)
	if err != nil {
		return 0, false, xerrors.Errorf("failed to look up handle %s: %w", handle, err)
	}
	return CapsuleID(id), found, nil
}

// HasCapability reports whether an identity holds a grant on a handle.
func (st *State) HasCapability(store adt.Store, handle cid.Cid, who addr.Address) (bool, error) {
	_, found, err := st.GrantFor(store, handle, who)
	return found, err
}

// CanReveal reports whether the engine may reveal a handle to an identity: the identity holds a
// grant on it and the capsule it belongs to has been unlocked.
func (st *State) CanReveal(store adt.Store, handle cid.Cid, who addr.Address) (bool, error) {
	id, found, err := st.GrantFor(store, handle, who)
	if err != nil || !found {
		return false, err
	}
	c, found, err := st.GetCapsule(store, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, xerrors.Errorf("grant of %s refers to missing capsule %d", handle, id)
	}
	return c.Unlocked, nil
}
