package engine

import (
	"context"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"sync"

	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"github.com/minio/sha256-simd"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/client/capsuleerr"
	"github.com/DianaJonathan/timecapsule/client/session"
	"github.com/DianaJonathan/timecapsule/client/wallet"
)

var log = logging.Logger("capsule/engine")

var handleBuilder = cid.V1Builder{Codec: cid.Raw, MhType: mh.SHA2_256}

type sealedWord struct {
	store addr.Address
	// nonce followed by ciphertext
	data []byte
}

// Local is an in-process engine. Words are sealed with ChaCha20-Poly1305 under a key that never
// leaves the engine, bound to the store they were produced for.
type Local struct {
	aead     cipher.AEAD
	proofKey []byte
	clock    clockwork.Clock
	verify   session.Verifier

	mu     sync.RWMutex
	sealed map[cid.Cid]sealedWord
	acl    ACL
}

var _ Engine = (*Local)(nil)

func NewLocal(clock clockwork.Clock) (*Local, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, xerrors.Errorf("generating sealing key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	proofKey := make([]byte, sha256.Size)
	if _, err := rand.Read(proofKey); err != nil {
		return nil, xerrors.Errorf("generating proof key: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Local{
		aead:     aead,
		proofKey: proofKey,
		clock:    clock,
		verify:   wallet.Verify,
		sealed:   make(map[cid.Cid]sealedWord),
	}, nil
}

// SetACL installs the capability source consulted by Reveal.
func (e *Local) SetACL(acl ACL) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acl = acl
}

func (e *Local) EncryptVector(ctx context.Context, values []uint32, store, requester addr.Address) ([]cid.Cid, []byte, error) {
	if len(values) == 0 {
		return nil, nil, capsuleerr.Wrapf(capsuleerr.ErrEmptyContent, "nothing to encrypt")
	}
	handles := make([]cid.Cid, 0, len(values))
	words := make([]sealedWord, 0, len(values))
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+4+e.aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return nil, nil, capsuleerr.Wrap(capsuleerr.ErrEngineFailure, err)
		}
		var plain [4]byte
		binary.BigEndian.PutUint32(plain[:], v)
		data := e.aead.Seal(nonce, nonce, plain[:], store.Bytes())

		h, err := handleBuilder.Sum(data)
		if err != nil {
			return nil, nil, capsuleerr.Wrap(capsuleerr.ErrEngineFailure, err)
		}
		handles = append(handles, h)
		words = append(words, sealedWord{store: store, data: data})
	}

	e.mu.Lock()
	for i, h := range handles {
		e.sealed[h] = words[i]
	}
	e.mu.Unlock()

	log.Debugw("encrypted vector", "store", store, "requester", requester, "words", len(values))
	return handles, e.proof(store, requester, handles), nil
}

func (e *Local) proof(store, requester addr.Address, handles []cid.Cid) []byte {
	mac := hmac.New(sha256.New, e.proofKey)
	mac.Write(store.Bytes())
	mac.Write(requester.Bytes())
	for _, h := range handles {
		mac.Write(h.Bytes())
	}
	return mac.Sum(nil)
}

// VerifyProof checks that handles were produced by this engine for store and requester, in order.
func (e *Local) VerifyProof(store, requester addr.Address, handles []cid.Cid, proof []byte) error {
	if !hmac.Equal(proof, e.proof(store, requester, handles)) {
		return xerrors.Errorf("proof does not match %d handles for %v", len(handles), requester)
	}
	return nil
}

func (e *Local) Reveal(ctx context.Context, handles []cid.Cid, s *session.Session) (map[cid.Cid]uint32, error) {
	if s == nil {
		return nil, capsuleerr.Wrapf(capsuleerr.ErrUnauthorized, "no session")
	}
	if s.Expired(e.clock.Now()) {
		return nil, capsuleerr.Wrapf(capsuleerr.ErrUnauthorized, "session of %v expired", s.Statement.Identity)
	}
	if err := s.Verify(e.verify); err != nil {
		return nil, capsuleerr.Wrap(capsuleerr.ErrUnauthorized, xerrors.Errorf("session signature: %w", err))
	}

	e.mu.RLock()
	acl := e.acl
	words := make([]sealedWord, len(handles))
	for i, h := range handles {
		w, ok := e.sealed[h]
		if !ok {
			e.mu.RUnlock()
			return nil, capsuleerr.Wrapf(capsuleerr.ErrEngineFailure, "unknown handle %s", h)
		}
		words[i] = w
	}
	e.mu.RUnlock()

	if acl == nil {
		return nil, capsuleerr.Wrapf(capsuleerr.ErrEngineFailure, "no capability source configured")
	}

	who := s.Statement.Identity
	out := make(map[cid.Cid]uint32, len(handles))
	for i, h := range handles {
		w := words[i]
		if !s.Covers(w.store) {
			return nil, capsuleerr.Wrapf(capsuleerr.ErrUnauthorized, "session does not cover store %v", w.store)
		}
		ok, err := acl.CanReveal(ctx, w.store, h, who)
		if err != nil {
			return nil, capsuleerr.Wrap(capsuleerr.ErrEngineFailure, xerrors.Errorf("checking capability on %s: %w", h, err))
		}
		if !ok {
			return nil, capsuleerr.Wrapf(capsuleerr.ErrUnauthorized, "%v may not reveal %s", who, h)
		}

		n := e.aead.NonceSize()
		plain, err := e.aead.Open(nil, w.data[:n], w.data[n:], w.store.Bytes())
		if err != nil {
			return nil, capsuleerr.Wrap(capsuleerr.ErrEngineFailure, xerrors.Errorf("opening %s: %w", h, err))
		}
		out[h] = binary.BigEndian.Uint32(plain)
	}
	log.Debugw("revealed handles", "identity", who, "count", len(out))
	return out, nil
}
