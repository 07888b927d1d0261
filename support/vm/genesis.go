package vm

import (
	"bytes"
	"context"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/cbor"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/exported"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
)

// BuiltinActorImpls indexes every builtin actor by its code.
func BuiltinActorImpls() ActorImplLookup {
	lookup := ActorImplLookup{}
	for _, ba := range exported.BuiltinActors() {
		lookup[ba.Code()] = ba
	}
	return lookup
}

// Genesis creates a VM holding the system actor and a capsule store at each of the given addresses.
func Genesis(ctx context.Context, store adt.Store, verifier ProofVerifier, networkName string, capsuleStores ...addr.Address) (*VM, error) {
	vm := NewVM(ctx, BuiltinActorImpls(), store, verifier)
	vm.SetNetworkName(networkName)

	if err := vm.InstallActor(builtin.SystemActorCodeID, builtin.SystemActorAddr); err != nil {
		return nil, xerrors.Errorf("installing system actor: %w", err)
	}
	for _, a := range capsuleStores {
		if a.Protocol() != addr.ID {
			return nil, xerrors.Errorf("capsule store address %v is not an ID address", a)
		}
		if err := vm.InstallActor(builtin.CapsuleStoreActorCodeID, a); err != nil {
			return nil, xerrors.Errorf("installing capsule store: %w", err)
		}
	}
	return vm, nil
}

// SerializeParams encodes message parameters. A nil value encodes as no parameters.
func SerializeParams(params cbor.Marshaler) ([]byte, error) {
	if params == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := params.MarshalCBOR(&buf); err != nil {
		return nil, xerrors.Errorf("failed to serialize params: %w", err)
	}
	return buf.Bytes(), nil
}
