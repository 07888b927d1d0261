package agent

import (
	"math"
	"math/rand"
)

// RateIterator spreads events over ticks as a Poisson process with a given mean rate per tick.
type RateIterator struct {
	rnd  *rand.Rand
	rate float64
	// Ticks until the next event, counted from the start of the current tick.
	next float64
}

func NewRateIterator(rate float64, seed int64) *RateIterator {
	ri := &RateIterator{rnd: rand.New(rand.NewSource(seed)), rate: rate, next: 1.0}
	ri.advance()
	return ri
}

// Tick calls f once per event falling in this tick: rate times on average, possibly zero or many.
func (ri *RateIterator) Tick(f func() error) error {
	if ri.rate <= 0 {
		return nil
	}
	for ri.next -= 1.0; ri.next < 1.0; ri.advance() {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func (ri *RateIterator) advance() {
	if ri.rate <= 0 {
		return
	}
	ri.next += -math.Log(1-ri.rnd.Float64()) / ri.rate
}
