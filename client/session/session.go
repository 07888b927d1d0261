// Package session negotiates and caches decryption sessions. A session is a statement signed by an
// identity authorising the engine to reveal values to it, scoped to a set of contract contexts and a
// validity window.
package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"github.com/pmylund/go-cache"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/client/capsuleerr"
)

var log = logging.Logger("capsule/session")

const DefaultDuration = 24 * time.Hour

// Statement is the payload an identity signs to open a session.
type Statement struct {
	Contexts  []addr.Address
	Identity  addr.Address
	PublicKey []byte
	// Unix seconds.
	Start int64
	// Seconds.
	Duration int64
}

type Session struct {
	Statement  Statement
	Signature  crypto.Signature
	privateKey *[32]byte
}

// Expired reports whether the session's window has closed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.Statement.Start+s.Statement.Duration
}

// Covers reports whether the session was opened for the given capsule store.
func (s *Session) Covers(store addr.Address) bool {
	for _, c := range s.Statement.Contexts {
		if c == store {
			return true
		}
	}
	return false
}

// StatementBytes returns the signed encoding of the statement.
func (s *Session) StatementBytes() ([]byte, error) {
	return s.Statement.Bytes()
}

// Verifier checks a signature by signer over msg.
type Verifier func(sig *crypto.Signature, signer addr.Address, msg []byte) error

// Verify checks the session signature against the statement's identity.
func (s *Session) Verify(verify Verifier) error {
	data, err := s.StatementBytes()
	if err != nil {
		return err
	}
	return verify(&s.Signature, s.Statement.Identity, data)
}

// PrivateKey is the curve25519 key matching Statement.PublicKey.
func (s *Session) PrivateKey() *[32]byte {
	return s.privateKey
}

func (st *Statement) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := st.MarshalCBOR(&buf); err != nil {
		return nil, xerrors.Errorf("failed to serialize statement: %w", err)
	}
	return buf.Bytes(), nil
}

// Signer signs statements on behalf of an identity. Refusal is reported as an error.
type Signer interface {
	Sign(ctx context.Context, who addr.Address, msg []byte) (*crypto.Signature, error)
}

// Manager caches at most one live session per (identity, contexts).
type Manager struct {
	clock    clockwork.Clock
	duration time.Duration

	mu       sync.Mutex
	sessions *cache.Cache
	group    singleflight.Group
}

func NewManager(clock clockwork.Clock, duration time.Duration) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Manager{
		clock:    clock,
		duration: duration,
		sessions: cache.New(cache.NoExpiration, 0),
	}
}

func sessionKey(contexts []addr.Address, identity addr.Address) string {
	parts := make([]string, len(contexts))
	for i, c := range contexts {
		parts[i] = c.String()
	}
	sort.Strings(parts)
	return identity.String() + "/" + strings.Join(parts, ",")
}

// Obtain returns the live session for identity over contexts, negotiating one with signer if none is
// cached. Concurrent callers for the same key share a single negotiation, run with the first caller's
// signer. The negotiation is not cancelled with any one caller's ctx: a caller whose ctx ends stops
// waiting and gets ctx.Err(), while the others still receive the session.
func (m *Manager) Obtain(ctx context.Context, contexts []addr.Address, identity addr.Address, signer Signer) (*Session, error) {
	if len(contexts) == 0 {
		return nil, capsuleerr.Wrapf(capsuleerr.ErrInvalidInput, "session needs at least one context")
	}
	key := sessionKey(contexts, identity)
	if s, ok := m.lookup(key); ok {
		return s, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		if s, ok := m.lookup(key); ok {
			return s, nil
		}
		s, err := m.negotiate(detached, contexts, identity, signer)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions.Set(key, s, cache.NoExpiration)
		m.mu.Unlock()
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		log.Debugw("session obtained", "identity", identity, "shared", res.Shared)
		return res.Val.(*Session), nil
	}
}

func (m *Manager) lookup(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sessions.Get(key)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	if s.Expired(m.clock.Now()) {
		m.sessions.Delete(key)
		return nil, false
	}
	return s, true
}

func (m *Manager) negotiate(ctx context.Context, contexts []addr.Address, identity addr.Address, signer Signer) (*Session, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, xerrors.Errorf("generating session key: %w", err)
	}
	s := &Session{
		Statement: Statement{
			Contexts:  append([]addr.Address(nil), contexts...),
			Identity:  identity,
			PublicKey: pub[:],
			Start:     m.clock.Now().Unix(),
			Duration:  int64(m.duration / time.Second),
		},
		privateKey: priv,
	}
	data, err := s.StatementBytes()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(ctx, identity, data)
	if err != nil {
		log.Warnw("session signature denied", "identity", identity, "error", err)
		return nil, capsuleerr.Wrap(capsuleerr.ErrSignatureDenied, err)
	}
	s.Signature = *sig
	return s, nil
}

// Invalidate drops the session for identity over contexts, if any.
func (m *Manager) Invalidate(contexts []addr.Address, identity addr.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Delete(sessionKey(contexts, identity))
}

// InvalidateIdentity drops every session of identity.
func (m *Manager) InvalidateIdentity(identity addr.Address) {
	prefix := identity.String() + "/"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.sessions.Items() {
		if strings.HasPrefix(k, prefix) {
			m.sessions.Delete(k)
		}
	}
}

// Len returns the number of cached sessions, live or not yet evicted.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.ItemCount()
}
