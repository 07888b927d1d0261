package vm

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/require"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/support/ipld"
)

// Creates a new VM over an in-memory store with the system actor and one capsule store installed.
// Returns the VM and the address of the capsule store.
func NewVMWithSingletons(ctx context.Context, t testing.TB, verifier ProofVerifier) (*VM, addr.Address) {
	storeAddr, err := addr.NewIDAddress(builtin.FirstNonSingletonActorId)
	require.NoError(t, err)

	v, err := Genesis(ctx, ipld.NewADTStore(ctx), verifier, "capsulenet", storeAddr)
	require.NoError(t, err)
	return v, storeAddr
}

// ApplyOk applies a message and requires it to succeed.
func ApplyOk(t testing.TB, v *VM, from, to addr.Address, method abi.MethodNum, params cbor.Marshaler) MessageResult {
	return ApplyCode(t, v, from, to, method, params, exitcode.Ok)
}

// ApplyCode applies a message and requires it to exit with the given code.
func ApplyCode(t testing.TB, v *VM, from, to addr.Address, method abi.MethodNum, params cbor.Marshaler, code exitcode.ExitCode) MessageResult {
	enc, err := SerializeParams(params)
	require.NoError(t, err)
	result := v.ApplyMessage(from, to, method, enc)
	require.Equal(t, code, result.Code, "unexpected exit code applying method %d to %v", method, to)
	return result
}
