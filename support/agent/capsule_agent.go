package agent

import (
	"math/rand"

	addr "github.com/filecoin-project/go-address"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/client/ledger"
)

const maxWords = 8

type heldCapsule struct {
	id          capsule.CapsuleID
	releaseTime int64
}

// CapsuleAgent creates capsules for random heirs and unlocks the capsules it is heir to once they
// are released.
type CapsuleAgent struct {
	Identity addr.Address

	Created  int
	Unlocked int

	rnd     *rand.Rand
	creates *RateIterator
	held    []heldCapsule
}

func newCapsuleAgent(identity addr.Address, rate float64, seed int64) *CapsuleAgent {
	return &CapsuleAgent{
		Identity: identity,
		rnd:      rand.New(rand.NewSource(seed)),
		creates:  NewRateIterator(rate, seed),
	}
}

// Tick returns the messages the agent wants in the next block, given the latest block time now.
func (a *CapsuleAgent) Tick(s *Sim, now int64) ([]Message, error) {
	var msgs []Message
	if err := a.creates.Tick(func() error {
		msg, err := a.createCapsule(s, now)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		return nil
	}); err != nil {
		return nil, err
	}

	var waiting []heldCapsule
	for _, h := range a.held {
		if h.releaseTime > now {
			waiting = append(waiting, h)
			continue
		}
		msgs = append(msgs, Message{
			From:   a.Identity,
			Method: builtin.MethodsCapsule.UnlockCapsule,
			Params: &capsule.CapsuleIDParams{ID: h.id},
			ReturnHandler: func(_ *ledger.Receipt) error {
				a.Unlocked++
				return nil
			},
		})
	}
	a.held = waiting
	return msgs, nil
}

func (a *CapsuleAgent) createCapsule(s *Sim, now int64) (Message, error) {
	words := make([]uint32, 1+a.rnd.Intn(maxWords))
	for i := range words {
		words[i] = a.rnd.Uint32() | 1
	}
	handles, proof, err := s.engine.EncryptVector(s.ctx, words, s.store, a.Identity)
	if err != nil {
		return Message{}, err
	}
	heir := s.randomHeir()
	release := now + s.releaseDelay()

	return Message{
		From:   a.Identity,
		Method: builtin.MethodsCapsule.CreateCapsule,
		Params: &capsule.CreateCapsuleParams{
			Chunks:      handles,
			Proof:       proof,
			ReleaseTime: release,
			Heir:        &heir,
		},
		ReturnHandler: func(rec *ledger.Receipt) error {
			var ret capsule.CreateCapsuleReturn
			if err := rec.Unmarshal(&ret); err != nil {
				return err
			}
			a.Created++
			s.byAddr[heir].held = append(s.byAddr[heir].held, heldCapsule{id: ret.ID, releaseTime: release})
			return nil
		},
	}, nil
}
