package capsule

import (
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
)

// Maximum number of ciphertext words per capsule: a 1024 byte payload packed four bytes per word.
const MaxChunks = 256

// Bitwidths of the store's collections.
const (
	CapsulesAmtBitwidth = 5
	ChunksAmtBitwidth   = 3
	IndexHamtBitwidth   = builtin.DefaultHamtBitwidth
	IndexAmtBitwidth    = 3
	GrantsHamtBitwidth  = builtin.DefaultHamtBitwidth
	HandlesHamtBitwidth = builtin.DefaultHamtBitwidth
)

// Exit codes specific to the capsule store.
const (
	// The release time is not strictly after the block timestamp.
	ErrInvalidSchedule = exitcode.FirstActorSpecificExitCode + iota
	// No ciphertext words were supplied.
	ErrEmptyContent
	// The engine did not vouch for the ciphertext handles.
	ErrInvalidProof
	// The capsule has already been unlocked.
	ErrAlreadyUnlocked
	// The release time has not been reached.
	ErrTooEarly
)

// Event topics.
const (
	EventCapsuleCreated  = "CapsuleCreated"
	EventCapsuleUnlocked = "CapsuleUnlocked"
)
