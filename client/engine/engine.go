// Package engine is the confidential compute boundary: it turns plaintext words into opaque
// ciphertext handles and reveals them again to sessions the capsule store authorises.
package engine

import (
	"context"

	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"

	"github.com/DianaJonathan/timecapsule/client/session"
)

type Engine interface {
	// EncryptVector seals values for use in the capsule store at store by requester. It returns one
	// handle per value, in order, and a proof binding the handles to store and requester.
	EncryptVector(ctx context.Context, values []uint32, store, requester addr.Address) ([]cid.Cid, []byte, error)
	// Reveal returns the plaintext of every handle, provided the session is valid and its identity
	// may see each handle.
	Reveal(ctx context.Context, handles []cid.Cid, s *session.Session) (map[cid.Cid]uint32, error)
}

// ACL answers whether an identity may have a handle revealed, as recorded by the capsule store.
type ACL interface {
	CanReveal(ctx context.Context, store addr.Address, handle cid.Cid, who addr.Address) (bool, error)
}
