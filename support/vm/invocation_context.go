package vm

import (
	"bytes"
	"context"
	"fmt"
	"reflect"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/runtime"
	"github.com/DianaJonathan/timecapsule/support/ipld"
)

var typeOfRuntimeInterface = reflect.TypeOf((*runtime.Runtime)(nil)).Elem()
var typeOfCborUnmarshaler = reflect.TypeOf((*cbor.Unmarshaler)(nil)).Elem()
var typeOfCborMarshaler = reflect.TypeOf((*cbor.Marshaler)(nil)).Elem()

// Context for an individual message invocation.
type invocationContext struct {
	rt               *VM
	msg              internalMessage
	toActor          *Actor
	callerValidated  bool
	allowSideEffects bool
	events           []Event
	abortMsg         string
}

func newInvocationContext(rt *VM, msg internalMessage, toActor *Actor) invocationContext {
	return invocationContext{
		rt:               rt,
		msg:              msg,
		toActor:          toActor,
		callerValidated:  false,
		allowSideEffects: true,
	}
}

var _ runtime.Runtime = (*invocationContext)(nil)

func (ic *invocationContext) invoke() (ret []byte, errcode exitcode.ExitCode) {
	// recover from panics and convert them to exit codes
	defer func() {
		if r := recover(); r != nil {
			switch r := r.(type) {
			case abort:
				ic.abortMsg = r.msg
				errcode = r.code
			default:
				ic.abortMsg = fmt.Sprintf("%v", r)
				log.Errorw("actor panicked", "to", ic.msg.to, "method", ic.msg.method, "panic", r)
				errcode = exitcode.SysErrorIllegalActor
			}
			ret = nil
			ic.events = nil
		}
	}()

	actorImpl, ok := ic.rt.getActorImpl(ic.toActor.Code)
	if !ok {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "actor implementation not found for code %v", ic.toActor.Code)
	}

	exports := actorImpl.Exports()
	if uint64(len(exports)) <= uint64(ic.msg.method) || exports[ic.msg.method] == nil {
		ic.Abortf(exitcode.SysErrInvalidMethod, "no method %d on actor %s", ic.msg.method, builtin.ActorNameByCode(ic.toActor.Code))
	}
	m := reflect.ValueOf(exports[ic.msg.method])
	mt := m.Type()
	if mt.NumIn() != 2 || mt.In(0) != typeOfRuntimeInterface || !mt.In(1).Implements(typeOfCborUnmarshaler) ||
		mt.NumOut() != 1 || !mt.Out(0).Implements(typeOfCborMarshaler) {
		ic.Abortf(exitcode.SysErrInvalidMethod, "method %d has an invalid signature %v", ic.msg.method, mt)
	}

	var arg reflect.Value
	if len(ic.msg.params) == 0 {
		arg = reflect.Zero(mt.In(1))
	} else {
		arg = reflect.New(mt.In(1).Elem())
		if err := arg.Interface().(cbor.Unmarshaler).UnmarshalCBOR(bytes.NewReader(ic.msg.params)); err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to decode parameters of method %d: %s", ic.msg.method, err)
		}
	}

	out := m.Call([]reflect.Value{reflect.ValueOf(ic), arg})

	if !ic.callerValidated {
		ic.Abortf(exitcode.SysErrorIllegalActor, "caller MUST be validated during method execution")
	}

	if out[0].IsNil() {
		return nil, exitcode.Ok
	}
	var buf bytes.Buffer
	if err := out[0].Interface().(cbor.Marshaler).MarshalCBOR(&buf); err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to encode return value of method %d: %s", ic.msg.method, err)
	}
	return buf.Bytes(), exitcode.Ok
}

//
// implement runtime.Runtime
//

func (ic *invocationContext) Caller() addr.Address {
	return ic.msg.Caller()
}

func (ic *invocationContext) Receiver() addr.Address {
	return ic.msg.Receiver()
}

func (ic *invocationContext) NetworkName() string {
	return ic.rt.networkName
}

func (ic *invocationContext) CurrEpoch() abi.ChainEpoch {
	return ic.rt.currentEpoch
}

func (ic *invocationContext) Timestamp() int64 {
	return ic.rt.timestamp
}

func (ic *invocationContext) ValidateImmediateCallerAcceptAny() {
	ic.assertf(!ic.callerValidated, exitcode.SysErrorIllegalActor, "caller has been double validated")
	ic.callerValidated = true
}

func (ic *invocationContext) ValidateImmediateCallerIs(addrs ...addr.Address) {
	ic.assertf(!ic.callerValidated, exitcode.SysErrorIllegalActor, "caller has been double validated")
	ic.callerValidated = true
	for _, a := range addrs {
		if a == ic.msg.from {
			return
		}
	}
	ic.Abortf(exitcode.SysErrForbidden, "caller address %v forbidden, allowed: %v", ic.msg.from, addrs)
}

func (ic *invocationContext) ValidateImmediateCallerType(types ...cid.Cid) {
	ic.assertf(!ic.callerValidated, exitcode.SysErrorIllegalActor, "caller has been double validated")
	ic.callerValidated = true
	code := ic.callerCode()
	for _, t := range types {
		if t.Equals(code) {
			return
		}
	}
	ic.Abortf(exitcode.SysErrForbidden, "caller type %s forbidden, allowed: %v", builtin.ActorNameByCode(code), types)
}

// Key addresses are implicit accounts; other callers are looked up in the state tree.
func (ic *invocationContext) callerCode() cid.Cid {
	switch ic.msg.from.Protocol() {
	case addr.SECP256K1, addr.BLS:
		return builtin.AccountActorCodeID
	}
	if ic.msg.from == builtin.SystemActorAddr {
		return builtin.SystemActorCodeID
	}
	act, found, err := ic.rt.GetActor(ic.msg.from)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load caller %v: %s", ic.msg.from, err)
	}
	if !found {
		return cid.Undef
	}
	return act.Code
}

func (ic *invocationContext) StateCreate(obj cbor.Marshaler) {
	if !ic.toActor.Head.Equals(ic.rt.emptyObject) {
		ic.Abortf(exitcode.SysErrorIllegalActor, "failed to create state; expected empty array CID, got: %v", ic.toActor.Head)
	}
	ic.replace(obj)
}

func (ic *invocationContext) StateReadonly(obj cbor.Unmarshaler) {
	if !ic.StoreGet(ic.toActor.Head, obj) {
		ic.Abortf(exitcode.ErrIllegalState, "failed to get actor state for %v", ic.msg.to)
	}
}

func (ic *invocationContext) StateTransaction(obj cbor.Er, f func()) {
	if obj == nil {
		ic.Abortf(exitcode.SysErrorIllegalActor, "Must not pass nil to Transaction()")
	}
	ic.assertf(ic.allowSideEffects, exitcode.SysErrorIllegalActor, "nested transaction")

	ic.StateReadonly(obj)
	ic.allowSideEffects = false
	f()
	ic.allowSideEffects = true
	ic.replace(obj)
}

func (ic *invocationContext) replace(obj cbor.Marshaler) {
	ic.toActor.Head = ic.StorePut(obj)
	if err := ic.rt.setActor(ic.msg.to, ic.toActor); err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to update actor head: %s", err)
	}
}

func (ic *invocationContext) StoreGet(c cid.Cid, o cbor.Unmarshaler) bool {
	err := ic.rt.store.Get(ic.rt.ctx, c, o)
	if xerrors.Is(err, ipld.ErrNotFound) {
		return false
	}
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load %v: %s", c, err)
	}
	return true
}

func (ic *invocationContext) StorePut(x cbor.Marshaler) cid.Cid {
	c, err := ic.rt.store.Put(ic.rt.ctx, x)
	if err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to store object: %s", err)
	}
	return c
}

func (ic *invocationContext) VerifyCiphertextProof(requester addr.Address, handles []cid.Cid, proof []byte) error {
	ic.assertf(ic.allowSideEffects, exitcode.SysErrorIllegalActor, "proof verification within transaction")
	if ic.rt.verifier == nil {
		return xerrors.New("no ciphertext proof verifier configured")
	}
	return ic.rt.verifier.VerifyProof(ic.msg.to, requester, handles, proof)
}

func (ic *invocationContext) EmitEvent(topic string, payload cbor.Marshaler) {
	ic.assertf(ic.allowSideEffects, exitcode.SysErrorIllegalActor, "event emitted within transaction")
	var buf bytes.Buffer
	if err := payload.MarshalCBOR(&buf); err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to encode %s event: %s", topic, err)
	}
	ic.events = append(ic.events, Event{Emitter: ic.msg.to, Topic: topic, Payload: buf.Bytes()})
}

func (ic *invocationContext) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (ic *invocationContext) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	line := fmt.Sprintf(msg, args...)
	ic.rt.logs = append(ic.rt.logs, line)
	switch level {
	case rtt.DEBUG:
		log.Debugw(line, "actor", ic.msg.to)
	case rtt.INFO:
		log.Infow(line, "actor", ic.msg.to)
	case rtt.WARN:
		log.Warnw(line, "actor", ic.msg.to)
	default:
		log.Errorw(line, "actor", ic.msg.to)
	}
}

func (ic *invocationContext) Context() context.Context {
	return ic.rt.ctx
}

func (ic *invocationContext) assertf(condition bool, code exitcode.ExitCode, msg string, args ...interface{}) {
	if !condition {
		ic.Abortf(code, msg, args...)
	}
}
