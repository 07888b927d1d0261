// Package wallet holds the client's identities and the active identity and network selection.
package wallet

import (
	"context"
	"sync"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/client/ledger"
)

var log = logging.Logger("capsule/wallet")

var (
	ErrUnknownIdentity = xerrors.New("unknown identity")
	ErrRefused         = xerrors.New("signing request refused")
	ErrNotConnected    = xerrors.New("wallet not connected")
)

// Approver decides whether a signing request goes ahead. It stands in for the user confirming a prompt.
type Approver func(ctx context.Context, who addr.Address, msg []byte) bool

// Wallet is safe for concurrent use. The active identity and network may change at any time.
type Wallet struct {
	mu       sync.RWMutex
	keys     map[addr.Address]*Key
	nonces   map[addr.Address]uint64
	identity addr.Address
	network  string
	approve  Approver
}

func New() *Wallet {
	return &Wallet{
		keys:     make(map[addr.Address]*Key),
		nonces:   make(map[addr.Address]uint64),
		identity: addr.Undef,
	}
}

// Import adds a key and returns its address.
func (w *Wallet) Import(k *Key) addr.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys[k.Address] = k
	return k.Address
}

// NewIdentity generates and imports a fresh key.
func (w *Wallet) NewIdentity() (addr.Address, error) {
	k, err := GenerateKey()
	if err != nil {
		return addr.Undef, err
	}
	return w.Import(k), nil
}

// Connect selects the active identity and network.
func (w *Wallet) Connect(identity addr.Address, network string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.keys[identity]; !ok {
		return xerrors.Errorf("connecting %v: %w", identity, ErrUnknownIdentity)
	}
	w.identity = identity
	w.network = network
	log.Infow("wallet connected", "identity", identity, "network", network)
	return nil
}

// SwitchIdentity changes the active identity, keeping the network.
func (w *Wallet) SwitchIdentity(identity addr.Address) error {
	w.mu.RLock()
	network := w.network
	w.mu.RUnlock()
	return w.Connect(identity, network)
}

// SwitchNetwork changes the active network, keeping the identity.
func (w *Wallet) SwitchNetwork(network string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.network = network
	log.Infow("wallet switched network", "network", network)
}

// Active returns the active identity and network. The identity is addr.Undef until connected.
func (w *Wallet) Active() (addr.Address, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.identity, w.network
}

// SetApprover installs the hook consulted before every signature. A nil approver approves everything.
func (w *Wallet) SetApprover(a Approver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.approve = a
}

// Sign signs msg as who.
func (w *Wallet) Sign(ctx context.Context, who addr.Address, msg []byte) (*crypto.Signature, error) {
	w.mu.RLock()
	k, ok := w.keys[who]
	approve := w.approve
	w.mu.RUnlock()

	if !ok {
		return nil, xerrors.Errorf("signing as %v: %w", who, ErrUnknownIdentity)
	}
	if approve != nil && !approve(ctx, who, msg) {
		return nil, xerrors.Errorf("signing as %v: %w", who, ErrRefused)
	}
	return k.Sign(msg)
}

// SignMessage assigns the sender's next nonce to msg and signs it.
func (w *Wallet) SignMessage(ctx context.Context, msg *ledger.Message) (*ledger.SignedMessage, error) {
	w.mu.Lock()
	msg.Nonce = w.nonces[msg.From]
	w.nonces[msg.From]++
	w.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return nil, xerrors.Errorf("serializing message: %w", err)
	}
	sig, err := w.Sign(ctx, msg.From, data)
	if err != nil {
		return nil, err
	}
	return &ledger.SignedMessage{Message: *msg, Signature: *sig}, nil
}

// VerifyMessage checks that a signed message was signed by its sender.
func VerifyMessage(sm *ledger.SignedMessage) error {
	data, err := sm.Message.Bytes()
	if err != nil {
		return err
	}
	return Verify(&sm.Signature, sm.Message.From, data)
}
