// Package orchestrator drives capsule workflows for the active wallet identity: creating a capsule
// from plaintext, unlocking it once released, and decrypting it through a session. Results that
// arrive after the active identity or network changed are discarded.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/client/capsuleerr"
	"github.com/DianaJonathan/timecapsule/client/chunk"
	"github.com/DianaJonathan/timecapsule/client/engine"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/session"
)

var log = logging.Logger("capsule/orchestrator")

// Snapshot is the operating context a workflow runs under.
type Snapshot struct {
	Identity addr.Address
	Network  string
}

// Deployment locates the capsule store on one network.
type Deployment struct {
	Store  addr.Address
	Ledger ledger.Ledger
}

type Config struct {
	// Keyed by network name.
	Deployments map[string]Deployment
	// Optional limit below the codec's own.
	MaxPayloadBytes int
	Poll            ledger.PollPolicy
}

// Wallet supplies the active context and signs on behalf of its identities.
type Wallet interface {
	session.Signer
	Active() (addr.Address, string)
	SignMessage(ctx context.Context, msg *ledger.Message) (*ledger.SignedMessage, error)
}

type Outcome int

const (
	// The workflow completed and its result is visible.
	OutcomeApplied Outcome = iota
	// The context changed while the workflow ran. Ledger writes stand; nothing was applied locally.
	OutcomeStale
	// The same workflow was already running.
	OutcomeBusy
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeBusy:
		return "busy"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Capsule is the client's view of a capsule.
type Capsule struct {
	ID          capsule.CapsuleID
	ReleaseTime int64
	Owner       addr.Address
	Heir        addr.Address
	Unlocked    bool
	Handles     []cid.Cid
	Decrypted   bool
	Plaintext   []byte
}

// collection is never mutated once published.
type collection struct {
	snapshot Snapshot
	capsules map[capsule.CapsuleID]Capsule
}

func (c *collection) with(views ...Capsule) *collection {
	next := &collection{snapshot: c.snapshot, capsules: make(map[capsule.CapsuleID]Capsule, len(c.capsules)+len(views))}
	for id, v := range c.capsules {
		next.capsules[id] = v
	}
	for _, v := range views {
		if prev, ok := next.capsules[v.ID]; ok {
			// Unlocking is permanent on the ledger, so a view loaded earlier cannot undo it.
			v.Unlocked = v.Unlocked || prev.Unlocked
			if prev.Decrypted && !v.Decrypted {
				v.Decrypted = true
				v.Plaintext = prev.Plaintext
			}
		}
		next.capsules[v.ID] = v
	}
	return next
}

type Orchestrator struct {
	cfg      Config
	engine   engine.Engine
	sessions *session.Manager
	wallet   Wallet

	creating   atomic.Bool
	unlocking  atomic.Bool
	decrypting atomic.Bool
	refreshing atomic.Bool

	writeMu sync.Mutex
	coll    atomic.Pointer[collection]
	status  atomic.String
}

func New(cfg Config, e engine.Engine, sessions *session.Manager, w Wallet) *Orchestrator {
	if cfg.Poll == (ledger.PollPolicy{}) {
		cfg.Poll = ledger.DefaultPollPolicy
	}
	o := &Orchestrator{cfg: cfg, engine: e, sessions: sessions, wallet: w}
	o.coll.Store(&collection{snapshot: o.current(), capsules: map[capsule.CapsuleID]Capsule{}})
	o.status.Store("idle")
	return o
}

func (o *Orchestrator) current() Snapshot {
	identity, network := o.wallet.Active()
	return Snapshot{Identity: identity, Network: network}
}

func (o *Orchestrator) stale(snap Snapshot) bool {
	return o.current() != snap
}

// begin captures the operating context and, if it differs from the collection's, starts an empty
// collection for it.
func (o *Orchestrator) begin() (Snapshot, Deployment, error) {
	snap := o.current()
	o.writeMu.Lock()
	if o.coll.Load().snapshot != snap {
		o.coll.Store(&collection{snapshot: snap, capsules: map[capsule.CapsuleID]Capsule{}})
	}
	o.writeMu.Unlock()

	if snap.Identity == addr.Undef {
		return snap, Deployment{}, capsuleerr.Wrapf(capsuleerr.ErrUnauthorized, "no active identity")
	}
	dep, ok := o.cfg.Deployments[snap.Network]
	if !ok {
		return snap, Deployment{}, capsuleerr.Wrapf(capsuleerr.ErrLedgerFailure, "no capsule store deployed on network %q", snap.Network)
	}
	return snap, dep, nil
}

// apply publishes views if the workflow's context is still the current one.
func (o *Orchestrator) apply(snap Snapshot, views ...Capsule) bool {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	cur := o.coll.Load()
	if cur.snapshot != snap || o.stale(snap) {
		return false
	}
	o.coll.Store(cur.with(views...))
	return true
}

// attach sets the plaintext on the current view of a capsule, leaving fields published by other
// workflows in the meantime intact.
func (o *Orchestrator) attach(snap Snapshot, id capsule.CapsuleID, plaintext []byte) bool {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	cur := o.coll.Load()
	if cur.snapshot != snap || o.stale(snap) {
		return false
	}
	view, ok := cur.capsules[id]
	if !ok {
		return false
	}
	view.Plaintext = plaintext
	view.Decrypted = true
	o.coll.Store(cur.with(view))
	return true
}

func (o *Orchestrator) setStatus(format string, args ...interface{}) {
	o.status.Store(fmt.Sprintf(format, args...))
}

func (o *Orchestrator) failed(workflow string, err error) (Outcome, error) {
	o.setStatus("%s failed: %s", workflow, err)
	log.Warnw("workflow failed", "workflow", workflow, "error", err)
	return OutcomeFailed, err
}

func (o *Orchestrator) discarded(workflow string, snap Snapshot) (Outcome, error) {
	o.setStatus("%s result discarded: context changed", workflow)
	log.Infow("workflow result discarded", "workflow", workflow, "identity", snap.Identity, "network", snap.Network)
	return OutcomeStale, nil
}

// Create encrypts payload and records it as a capsule released at releaseTime (unix seconds).
// A nil heir makes the creator the heir.
func (o *Orchestrator) Create(ctx context.Context, payload []byte, releaseTime int64, heir *addr.Address) (Outcome, capsule.CapsuleID, error) {
	if !o.creating.CompareAndSwap(false, true) {
		return OutcomeBusy, 0, nil
	}
	defer o.creating.Store(false)
	const workflow = "create"

	fail := func(err error) (Outcome, capsule.CapsuleID, error) {
		out, err := o.failed(workflow, err)
		return out, 0, err
	}

	snap, dep, err := o.begin()
	if err != nil {
		return fail(err)
	}
	if o.cfg.MaxPayloadBytes > 0 && len(payload) > o.cfg.MaxPayloadBytes {
		return fail(capsuleerr.Wrapf(capsuleerr.ErrInvalidInput, "payload of %d bytes exceeds %d", len(payload), o.cfg.MaxPayloadBytes))
	}
	words, err := chunk.Encode(payload)
	if err != nil {
		return fail(err)
	}
	o.setStatus("encrypting %d words", len(words))

	handles, proof, err := o.engine.EncryptVector(ctx, words, dep.Store, snap.Identity)
	if err != nil {
		return fail(capsuleerr.Wrap(capsuleerr.ErrEngineFailure, err))
	}
	if o.stale(snap) {
		out, err := o.discarded(workflow, snap)
		return out, 0, err
	}

	o.setStatus("submitting capsule")
	rec, err := o.transact(ctx, dep, snap, builtin.MethodsCapsule.CreateCapsule, &capsule.CreateCapsuleParams{
		Chunks:      handles,
		Proof:       proof,
		ReleaseTime: releaseTime,
		Heir:        heir,
	})
	if err != nil {
		return fail(err)
	}
	var ret capsule.CreateCapsuleReturn
	if err := rec.Unmarshal(&ret); err != nil {
		return fail(capsuleerr.Wrap(capsuleerr.ErrLedgerFailure, err))
	}
	if o.stale(snap) {
		out, err := o.discarded(workflow, snap)
		return out, ret.ID, err
	}

	views, loadErr := o.load(ctx, dep, snap, nil)
	if !o.apply(snap, views...) {
		out, err := o.discarded(workflow, snap)
		return out, ret.ID, err
	}
	if loadErr != nil {
		out, err := o.failed(workflow, loadErr)
		return out, ret.ID, err
	}
	o.setStatus("capsule %d created", ret.ID)
	log.Infow("capsule created", "id", ret.ID, "identity", snap.Identity, "release", releaseTime)
	return OutcomeApplied, ret.ID, nil
}

// Unlock marks a released capsule unlocked and refreshes its metadata.
func (o *Orchestrator) Unlock(ctx context.Context, id capsule.CapsuleID) (Outcome, error) {
	if !o.unlocking.CompareAndSwap(false, true) {
		return OutcomeBusy, nil
	}
	defer o.unlocking.Store(false)
	const workflow = "unlock"

	snap, dep, err := o.begin()
	if err != nil {
		return o.failed(workflow, err)
	}

	o.setStatus("unlocking capsule %d", id)
	if _, err := o.transact(ctx, dep, snap, builtin.MethodsCapsule.UnlockCapsule, &capsule.CapsuleIDParams{ID: id}); err != nil {
		return o.failed(workflow, err)
	}
	if o.stale(snap) {
		return o.discarded(workflow, snap)
	}

	views, err := o.load(ctx, dep, snap, []capsule.CapsuleID{id})
	if err != nil {
		return o.failed(workflow, err)
	}
	if !o.apply(snap, views...) {
		return o.discarded(workflow, snap)
	}
	o.setStatus("capsule %d unlocked", id)
	log.Infow("capsule unlocked", "id", id, "identity", snap.Identity)
	return OutcomeApplied, nil
}

// Decrypt reveals a capsule's plaintext and attaches it to the capsule's view. The capsule's
// handles must have been loaded by Create or Refresh.
func (o *Orchestrator) Decrypt(ctx context.Context, id capsule.CapsuleID) (Outcome, error) {
	if !o.decrypting.CompareAndSwap(false, true) {
		return OutcomeBusy, nil
	}
	defer o.decrypting.Store(false)
	const workflow = "decrypt"

	snap, dep, err := o.begin()
	if err != nil {
		return o.failed(workflow, err)
	}
	view, ok := o.coll.Load().capsules[id]
	if ok && view.Decrypted {
		return OutcomeApplied, nil
	}
	if !ok || len(view.Handles) == 0 {
		return o.failed(workflow, capsuleerr.Wrapf(capsuleerr.ErrContentUnavailable, "no handles loaded for capsule %d", id))
	}

	o.setStatus("requesting decryption session")
	s, err := o.sessions.Obtain(ctx, []addr.Address{dep.Store}, snap.Identity, o.wallet)
	if err != nil {
		return o.failed(workflow, err)
	}
	if o.stale(snap) {
		return o.discarded(workflow, snap)
	}

	o.setStatus("decrypting capsule %d", id)
	values, err := o.engine.Reveal(ctx, view.Handles, s)
	if err != nil {
		return o.failed(workflow, capsuleerr.Wrap(capsuleerr.ErrEngineFailure, err))
	}
	if o.stale(snap) {
		return o.discarded(workflow, snap)
	}

	words := make([]uint32, len(view.Handles))
	for i, h := range view.Handles {
		v, ok := values[h]
		if !ok {
			return o.failed(workflow, capsuleerr.Wrapf(capsuleerr.ErrEngineFailure, "engine returned no value for %s", h))
		}
		words[i] = v
	}
	if !o.attach(snap, id, chunk.Decode(words)) {
		return o.discarded(workflow, snap)
	}
	o.setStatus("capsule %d decrypted", id)
	return OutcomeApplied, nil
}

// Refresh reloads every capsule the active identity owns or is heir to. Capsules that fail to load
// are reported together; the rest are applied.
func (o *Orchestrator) Refresh(ctx context.Context) (Outcome, error) {
	if !o.refreshing.CompareAndSwap(false, true) {
		return OutcomeBusy, nil
	}
	defer o.refreshing.Store(false)
	const workflow = "refresh"

	snap, dep, err := o.begin()
	if err != nil {
		return o.failed(workflow, err)
	}
	views, loadErr := o.load(ctx, dep, snap, nil)
	if o.stale(snap) {
		return o.discarded(workflow, snap)
	}
	if len(views) > 0 && !o.apply(snap, views...) {
		return o.discarded(workflow, snap)
	}
	if loadErr != nil {
		return o.failed(workflow, loadErr)
	}
	o.setStatus("%d capsules loaded", len(views))
	return OutcomeApplied, nil
}

// CanUnlock reports whether a capsule's release time has been reached on the ledger.
func (o *Orchestrator) CanUnlock(ctx context.Context, id capsule.CapsuleID) (bool, error) {
	snap, dep, err := o.begin()
	if err != nil {
		return false, err
	}
	var ret cbg.CborBool
	if err := o.read(ctx, dep, snap, builtin.MethodsCapsule.CanUnlock, &capsule.CapsuleIDParams{ID: id}, &ret); err != nil {
		return false, err
	}
	return bool(ret), nil
}

// ContextChanged drops the sessions and capsules of the previous context. Call it when the wallet
// switches identity or network.
func (o *Orchestrator) ContextChanged() {
	snap := o.current()
	o.writeMu.Lock()
	prev := o.coll.Swap(&collection{snapshot: snap, capsules: map[capsule.CapsuleID]Capsule{}})
	o.writeMu.Unlock()

	if prev.snapshot != snap && prev.snapshot.Identity != addr.Undef {
		o.sessions.InvalidateIdentity(prev.snapshot.Identity)
	}
	o.setStatus("context changed")
	log.Infow("context changed", "identity", snap.Identity, "network", snap.Network)
}

// Capsules returns the loaded capsules of the current context in ID order.
func (o *Orchestrator) Capsules() []Capsule {
	c := o.coll.Load()
	out := make([]Capsule, 0, len(c.capsules))
	for _, v := range c.capsules {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (o *Orchestrator) Capsule(id capsule.CapsuleID) (Capsule, bool) {
	v, ok := o.coll.Load().capsules[id]
	return v, ok
}

// Status describes the outcome of the most recent workflow step.
func (o *Orchestrator) Status() string {
	return o.status.Load()
}

// Snapshot returns the context the loaded capsules belong to.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.coll.Load().snapshot
}

func (o *Orchestrator) transact(ctx context.Context, dep Deployment, snap Snapshot, method abi.MethodNum, params cbor.Marshaler) (*ledger.Receipt, error) {
	msg, err := ledger.NewMessage(snap.Identity, dep.Store, method, params)
	if err != nil {
		return nil, capsuleerr.Wrap(capsuleerr.ErrInvalidInput, err)
	}
	sm, err := o.wallet.SignMessage(ctx, msg)
	if err != nil {
		return nil, capsuleerr.Wrap(capsuleerr.ErrSignatureDenied, err)
	}
	id, err := dep.Ledger.Submit(ctx, sm)
	if err != nil {
		return nil, capsuleerr.Wrap(capsuleerr.ErrLedgerFailure, err)
	}
	log.Debugw("message submitted", "cid", id, "method", method)

	rec, err := ledger.Await(ctx, dep.Ledger, id, o.cfg.Poll)
	if err != nil {
		var exit *ledger.ExitError
		if xerrors.As(err, &exit) {
			return nil, capsuleerr.FromExitCode(exit.Code, xerrors.Errorf("message %s: %w", id, err))
		}
		return nil, capsuleerr.Wrap(capsuleerr.ErrLedgerFailure, err)
	}
	return rec, nil
}

func (o *Orchestrator) read(ctx context.Context, dep Deployment, snap Snapshot, method abi.MethodNum, params cbor.Marshaler, out cbor.Unmarshaler) error {
	msg, err := ledger.NewMessage(snap.Identity, dep.Store, method, params)
	if err != nil {
		return capsuleerr.Wrap(capsuleerr.ErrInvalidInput, err)
	}
	if err := ledger.CallInto(ctx, dep.Ledger, msg, out); err != nil {
		var exit *ledger.ExitError
		if xerrors.As(err, &exit) {
			return capsuleerr.FromExitCode(exit.Code, err)
		}
		return capsuleerr.Wrap(capsuleerr.ErrLedgerFailure, err)
	}
	return nil
}
