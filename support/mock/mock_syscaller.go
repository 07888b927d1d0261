package mock

import (
	"fmt"

	addr "github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
)

type expectVerifyProof struct {
	// Expected arguments.
	requester addr.Address
	handles   []cid.Cid
	proof     []byte
	// Result.
	result error
}

func (e *expectVerifyProof) String() string {
	return fmt.Sprintf("requester: %v handles: %v proof: %x result: %v", e.requester, e.handles, e.proof, e.result)
}

// syscaller queues the expected ciphertext proof verifications in order.
type syscaller struct {
	expectVerifyProofs []*expectVerifyProof
}

func (s *syscaller) pop() (*expectVerifyProof, bool) {
	if len(s.expectVerifyProofs) == 0 {
		return nil, false
	}
	e := s.expectVerifyProofs[0]
	s.expectVerifyProofs = s.expectVerifyProofs[1:]
	return e, true
}

func (s *syscaller) pending() []*expectVerifyProof {
	return s.expectVerifyProofs
}

func (s *syscaller) reset() {
	s.expectVerifyProofs = nil
}
