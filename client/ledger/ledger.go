// Package ledger describes the ledger the capsule client submits messages to and reads state from.
package ledger

import (
	"bytes"
	"context"
	"fmt"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"
)

var cidBuilder = cid.V1Builder{Codec: cid.DagCBOR, MhType: mh.BLAKE2B_MIN + 31}

// Message invokes a method on an actor.
type Message struct {
	From   addr.Address
	To     addr.Address
	Nonce  uint64
	Method abi.MethodNum
	Params []byte
}

// NewMessage builds an unsigned message with encoded parameters.
func NewMessage(from, to addr.Address, method abi.MethodNum, params cbor.Marshaler) (*Message, error) {
	msg := &Message{From: from, To: to, Method: method}
	if params != nil {
		var buf bytes.Buffer
		if err := params.MarshalCBOR(&buf); err != nil {
			return nil, xerrors.Errorf("failed to serialize params for method %d: %w", method, err)
		}
		msg.Params = buf.Bytes()
	}
	return msg, nil
}

// Bytes returns the canonical encoding that is signed and hashed.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Cid identifies a message. Receipts are keyed by it.
func (m *Message) Cid() (cid.Cid, error) {
	data, err := m.Bytes()
	if err != nil {
		return cid.Undef, err
	}
	return cidBuilder.Sum(data)
}

type SignedMessage struct {
	Message   Message
	Signature crypto.Signature
}

func (sm *SignedMessage) Cid() (cid.Cid, error) {
	return sm.Message.Cid()
}

type Receipt struct {
	ExitCode exitcode.ExitCode
	Return   []byte
	Epoch    abi.ChainEpoch
}

// Unmarshal decodes the return value of a successful receipt.
func (r *Receipt) Unmarshal(out cbor.Unmarshaler) error {
	if r.ExitCode != exitcode.Ok {
		return &ExitError{Code: r.ExitCode}
	}
	return out.UnmarshalCBOR(bytes.NewReader(r.Return))
}

// ExitError reports a message that executed and failed.
type ExitError struct {
	Code   exitcode.ExitCode
	Method abi.MethodNum
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("method %d exited with code %d", e.Method, e.Code)
}

// Ledger accepts signed messages and answers point-in-time reads.
type Ledger interface {
	// NetworkName identifies the network the ledger belongs to.
	NetworkName(ctx context.Context) (string, error)
	// Submit queues a message for inclusion and returns its identifier.
	Submit(ctx context.Context, msg *SignedMessage) (cid.Cid, error)
	// Receipt returns the receipt of an included message, or false while it is pending.
	Receipt(ctx context.Context, id cid.Cid) (*Receipt, bool, error)
	// Call executes a message against the latest state without persisting any change.
	Call(ctx context.Context, msg *Message) (*Receipt, error)
}

// CallInto executes a read-only call and decodes its return value.
func CallInto(ctx context.Context, l Ledger, msg *Message, out cbor.Unmarshaler) error {
	rec, err := l.Call(ctx, msg)
	if err != nil {
		return err
	}
	if rec.ExitCode != exitcode.Ok {
		return &ExitError{Code: rec.ExitCode, Method: msg.Method}
	}
	if err := out.UnmarshalCBOR(bytes.NewReader(rec.Return)); err != nil {
		return xerrors.Errorf("failed to decode return of method %d: %w", msg.Method, err)
	}
	return nil
}
