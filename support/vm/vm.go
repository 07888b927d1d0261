package vm

import (
	"bytes"
	"context"
	"fmt"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/runtime"
	"github.com/DianaJonathan/timecapsule/actors/util/adt"
)

var log = logging.Logger("capsule/vm")

// Bitwidth of the actor state tree.
const actorsHamtBitwidth = builtin.DefaultHamtBitwidth

// VM holds the state and executes messages over the state.
type VM struct {
	ctx   context.Context
	store adt.Store

	currentEpoch abi.ChainEpoch
	timestamp    int64
	networkName  string

	actorImpls ActorImplLookup
	actorRoot  cid.Cid  // The last committed root.
	actors     *adt.Map // The current (not necessarily committed) root node.

	emptyObject cid.Cid
	verifier    ProofVerifier

	logs []string
}

// VM types

// Actor is an entry in the state tree.
type Actor struct {
	Code cid.Cid
	Head cid.Cid
}

type ActorImplLookup map[cid.Cid]runtime.VMActor

// ProofVerifier checks the attestation that accompanies ciphertext handles recorded by an actor.
type ProofVerifier interface {
	VerifyProof(store, requester addr.Address, handles []cid.Cid, proof []byte) error
}

// Event is a notification emitted by an actor during a successful message.
type Event struct {
	Emitter addr.Address
	Topic   string
	Payload []byte
}

// Decode unmarshals the event payload.
func (e Event) Decode(out cbor.Unmarshaler) error {
	return out.UnmarshalCBOR(bytes.NewReader(e.Payload))
}

type MessageResult struct {
	Code   exitcode.ExitCode
	Ret    []byte
	Events []Event
}

// Unmarshal decodes the return value of a successful message.
func (r MessageResult) Unmarshal(out cbor.Unmarshaler) error {
	if r.Code != exitcode.Ok {
		return xerrors.Errorf("message failed with exit code %d", r.Code)
	}
	return out.UnmarshalCBOR(bytes.NewReader(r.Ret))
}

type internalMessage struct {
	from   addr.Address
	to     addr.Address
	method abi.MethodNum
	params []byte
}

// NewVM creates a new runtime for executing messages.
func NewVM(ctx context.Context, actorImpls ActorImplLookup, store adt.Store, verifier ProofVerifier) *VM {
	actors, err := adt.MakeEmptyMap(store, actorsHamtBitwidth)
	if err != nil {
		panic(err)
	}
	actorRoot, err := actors.Root()
	if err != nil {
		panic(err)
	}

	emptyObject, err := store.Put(ctx, []struct{}{})
	if err != nil {
		panic(err)
	}

	return &VM{
		ctx:         ctx,
		actorImpls:  actorImpls,
		store:       store,
		actors:      actors,
		actorRoot:   actorRoot,
		emptyObject: emptyObject,
		verifier:    verifier,
		networkName: "capsulenet",
	}
}

// NewVMAtRoot loads a VM over a previously committed state tree.
func NewVMAtRoot(ctx context.Context, actorImpls ActorImplLookup, store adt.Store, verifier ProofVerifier, root cid.Cid) (*VM, error) {
	vm := NewVM(ctx, actorImpls, store, verifier)
	if err := vm.rollback(root); err != nil {
		return nil, err
	}
	return vm, nil
}

func (vm *VM) rollback(root cid.Cid) error {
	var err error
	vm.actors, err = adt.AsMap(vm.store, root, actorsHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load node for %s: %w", root, err)
	}

	// reset the root node
	vm.actorRoot = root
	return nil
}

func (vm *VM) GetActor(a addr.Address) (*Actor, bool, error) {
	var act Actor
	found, err := vm.actors.Get(adt.AddrKey(a), &act)
	return &act, found, err
}

// setActor sets the the actor to the given value whether it previously existed or not.
func (vm *VM) setActor(key addr.Address, a *Actor) error {
	if err := vm.actors.Put(adt.AddrKey(key), a); err != nil {
		return xerrors.Errorf("setting actor in state tree failed: %w", err)
	}
	return nil
}

func (vm *VM) checkpoint() (cid.Cid, error) {
	root, err := vm.actors.Root()
	if err != nil {
		return cid.Undef, err
	}
	vm.actorRoot = root
	return root, nil
}

// StateRoot flushes pending changes and returns the root of the state tree.
func (vm *VM) StateRoot() (cid.Cid, error) {
	return vm.checkpoint()
}

// InstallActor places a new actor with the given code at an address and runs its constructor as the system actor.
func (vm *VM) InstallActor(code cid.Cid, a addr.Address) error {
	if _, ok := vm.actorImpls[code]; !ok {
		return xerrors.Errorf("no implementation for actor code %v", code)
	}
	if _, found, err := vm.GetActor(a); err != nil {
		return err
	} else if found {
		return xerrors.Errorf("actor already exists at %v", a)
	}

	priorRoot, err := vm.checkpoint()
	if err != nil {
		return err
	}
	if err := vm.setActor(a, &Actor{Code: code, Head: vm.emptyObject}); err != nil {
		return err
	}

	result := vm.invoke(internalMessage{
		from:   builtin.SystemActorAddr,
		to:     a,
		method: builtin.MethodConstructor,
	})
	if result.Code != exitcode.Ok {
		if err := vm.rollback(priorRoot); err != nil {
			return err
		}
		return xerrors.Errorf("constructing %s at %v failed with exit code %d", builtin.ActorNameByCode(code), a, result.Code)
	}
	_, err = vm.checkpoint()
	return err
}

// ApplyMessage applies the message to the current state.
// State changes and events are discarded unless the exit code is Ok.
func (vm *VM) ApplyMessage(from, to addr.Address, method abi.MethodNum, params []byte) MessageResult {
	priorRoot, err := vm.checkpoint()
	if err != nil {
		panic(err)
	}

	result := vm.invoke(internalMessage{from: from, to: to, method: method, params: params})

	// Roll back all state if the receipt's exit code is not ok.
	if result.Code != exitcode.Ok {
		if err := vm.rollback(priorRoot); err != nil {
			panic(err)
		}
		result.Events = nil
		return result
	}
	if _, err := vm.checkpoint(); err != nil {
		panic(err)
	}
	return result
}

// Call executes a message against the current state and discards every change it makes.
func (vm *VM) Call(from, to addr.Address, method abi.MethodNum, params []byte) MessageResult {
	priorRoot, err := vm.checkpoint()
	if err != nil {
		panic(err)
	}
	result := vm.invoke(internalMessage{from: from, to: to, method: method, params: params})
	if err := vm.rollback(priorRoot); err != nil {
		panic(err)
	}
	result.Events = nil
	return result
}

func (vm *VM) invoke(msg internalMessage) MessageResult {
	if msg.from.Protocol() != addr.SECP256K1 && msg.from.Protocol() != addr.BLS && msg.from != builtin.SystemActorAddr {
		return MessageResult{Code: exitcode.SysErrSenderInvalid}
	}

	toActor, found, err := vm.GetActor(msg.to)
	if err != nil {
		panic(err)
	}
	if !found {
		return MessageResult{Code: exitcode.SysErrInvalidReceiver}
	}

	ic := newInvocationContext(vm, msg, toActor)
	ret, code := ic.invoke()
	if code != exitcode.Ok {
		log.Debugw("message aborted", "from", msg.from, "to", msg.to, "method", msg.method, "code", code, "reason", ic.abortMsg)
	}
	return MessageResult{Code: code, Ret: ret, Events: ic.events}
}

func (vm *VM) GetState(a addr.Address, out cbor.Unmarshaler) error {
	act, found, err := vm.GetActor(a)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("actor %v not found", a)
	}
	return vm.store.Get(vm.ctx, act.Head, out)
}

func (vm *VM) Store() adt.Store {
	return vm.store
}

func (vm *VM) GetEpoch() abi.ChainEpoch {
	return vm.currentEpoch
}

func (vm *VM) Timestamp() int64 {
	return vm.timestamp
}

// SetClock advances the chain clock observed by subsequent messages.
func (vm *VM) SetClock(epoch abi.ChainEpoch, timestamp int64) {
	vm.currentEpoch = epoch
	vm.timestamp = timestamp
}

func (vm *VM) NetworkName() string {
	return vm.networkName
}

func (vm *VM) SetNetworkName(name string) {
	vm.networkName = name
}

// GetLogs returns the lines logged by actors so far.
func (vm *VM) GetLogs() []string {
	return vm.logs
}

func (vm *VM) getActorImpl(code cid.Cid) (runtime.VMActor, bool) {
	actorImpl, ok := vm.actorImpls[code]
	return actorImpl, ok
}

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

//
// implement runtime.Message for internalMessage
//

var _ runtime.Message = (*internalMessage)(nil)

// Caller implements runtime.Message.
func (msg internalMessage) Caller() addr.Address {
	return msg.from
}

// Receiver implements runtime.Message.
func (msg internalMessage) Receiver() addr.Address {
	return msg.to
}
