package capsule

import (
	addr "github.com/filecoin-project/go-address"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
)

type StateSummary struct {
	CapsuleCount  uint64
	UnlockedCount uint64
	HandleCount   uint64
	GrantCount    uint64
}

// Checks internal invariants of capsule store state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	summary := &StateSummary{}

	capsules, err := adt.AsArray(store, st.Capsules, CapsulesAmtBitwidth)
	if err != nil {
		acc.Addf("error loading capsules: %v", err)
		return summary, acc
	}

	index, err := adt.AsMultimap(store, st.Index, IndexHamtBitwidth, IndexAmtBitwidth)
	if err != nil {
		acc.Addf("error loading index: %v", err)
		return summary, acc
	}

	grants, err := adt.AsMap(store, st.Grants, GrantsHamtBitwidth)
	if err != nil {
		acc.Addf("error loading grants: %v", err)
		return summary, acc
	}

	claims, err := adt.AsMap(store, st.Handles, HandlesHamtBitwidth)
	if err != nil {
		acc.Addf("error loading handle table: %v", err)
		return summary, acc
	}

	// Capsules
	byID := map[CapsuleID]Capsule{}
	expectedGrants := uint64(0)
	expectedID := CapsuleID(0)
	var c Capsule
	err = capsules.ForEach(&c, func(i int64) error {
		id := CapsuleID(i)
		cacc := acc.WithPrefix("capsule %d: ", id)
		cacc.Require(id == expectedID, "expected dense ids, found %d after %d", id, expectedID)
		expectedID = id + 1

		cacc.Require(c.Owner != addr.Undef, "owner is undefined")
		cacc.Require(c.Heir != addr.Undef, "heir is undefined")
		cacc.Require(c.CreatedAt < c.ReleaseTime, "created at %d not before release %d", c.CreatedAt, c.ReleaseTime)
		cacc.Require(c.ChunkCount > 0 && c.ChunkCount <= MaxChunks, "chunk count %d out of range", c.ChunkCount)

		handles, err := st.ChunkHandles(store, &c)
		if err != nil {
			cacc.Addf("error loading handles: %v", err)
		} else {
			cacc.Require(uint64(len(handles)) == c.ChunkCount, "chunk count %d does not match %d handles", c.ChunkCount, len(handles))
			for _, h := range handles {
				var claimedBy cbg.CborInt
				found, err := claims.Get(adt.CidKey(h), &claimedBy)
				cacc.RequireNoError(err, "error loading handle table entry for %v", h)
				cacc.Require(found, "handle %v not recorded", h)
				cacc.Require(!found || CapsuleID(claimedBy) == id, "handle %v recorded for capsule %d", h, claimedBy)

				for _, who := range c.Holders() {
					var grantedTo cbg.CborInt
					found, err := grants.Get(GrantKey{Handle: h, Holder: who}, &grantedTo)
					cacc.RequireNoError(err, "error loading grant of %v to %v", h, who)
					cacc.Require(found, "handle %v not granted to %v", h, who)
					cacc.Require(!found || CapsuleID(grantedTo) == id, "handle %v granted to %v under capsule %d", h, who, grantedTo)
				}
			}
		}

		summary.CapsuleCount++
		summary.HandleCount += c.ChunkCount
		expectedGrants += c.ChunkCount * uint64(len(c.Holders()))
		if c.Unlocked {
			summary.UnlockedCount++
		}
		byID[id] = c
		return nil
	})
	acc.RequireNoError(err, "error iterating capsules")
	acc.Require(summary.CapsuleCount == uint64(st.NextID), "next id %d does not match capsule count %d", st.NextID, summary.CapsuleCount)

	// Index
	indexed := map[CapsuleID]int{}
	err = index.ForAll(func(k string, arr *adt.Array) error {
		who, err := addr.NewFromBytes([]byte(k))
		if err != nil {
			acc.Addf("index key %x is not an address: %v", k, err)
			return nil
		}
		iacc := acc.WithPrefix("index %v: ", who)
		seen := map[CapsuleID]bool{}
		prev := CapsuleID(0)
		first := true
		var id cbg.CborInt
		return arr.ForEach(&id, func(i int64) error {
			capID := CapsuleID(id)
			iacc.Require(!seen[capID], "capsule %d listed twice", capID)
			iacc.Require(first || capID > prev, "capsule %d listed after %d", capID, prev)
			seen[capID] = true
			prev, first = capID, false
			indexed[capID]++

			c, ok := byID[capID]
			if !ok {
				iacc.Addf("capsule %d does not exist", capID)
				return nil
			}
			iacc.Require(who == c.Owner || who == c.Heir, "not a holder of capsule %d", capID)
			return nil
		})
	})
	acc.RequireNoError(err, "error iterating index")
	for id, c := range byID {
		acc.Require(indexed[id] == len(c.Holders()), "capsule %d indexed %d times, expected %d", id, indexed[id], len(c.Holders()))
	}

	// Grants
	var grantedTo cbg.CborInt
	err = grants.ForEach(&grantedTo, func(k string) error {
		summary.GrantCount++
		_, ok := byID[CapsuleID(grantedTo)]
		acc.Require(ok, "grant %x refers to missing capsule %d", k, grantedTo)
		return nil
	})
	acc.RequireNoError(err, "error iterating grants")
	acc.Require(summary.GrantCount == expectedGrants, "%d grants, expected %d", summary.GrantCount, expectedGrants)

	// Handle table
	handleCount := uint64(0)
	var claimedBy cbg.CborInt
	err = claims.ForEach(&claimedBy, func(k string) error {
		handleCount++
		_, ok := byID[CapsuleID(claimedBy)]
		acc.Require(ok, "handle %x recorded for missing capsule %d", k, claimedBy)
		return nil
	})
	acc.RequireNoError(err, "error iterating handle table")
	acc.Require(handleCount == summary.HandleCount, "handle table has %d entries, capsules hold %d handles", handleCount, summary.HandleCount)

	return summary, acc
}
