package testing

import (
	"bytes"

	addr "github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"
)

// MockProofVerifier stands in for the confidential engine when executing messages in a VM.
// A proof is accepted if it equals ValidProof, or unconditionally when ValidProof is nil.
type MockProofVerifier struct {
	ValidProof []byte
	Calls      int
}

func (v *MockProofVerifier) VerifyProof(store, requester addr.Address, handles []cid.Cid, proof []byte) error {
	v.Calls++
	if v.ValidProof == nil || bytes.Equal(v.ValidProof, proof) {
		return nil
	}
	return xerrors.Errorf("proof for %d handles from %s to %s rejected", len(handles), requester, store)
}
