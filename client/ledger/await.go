package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("capsule/ledger")

var errPending = errors.New("message pending")

// PollPolicy bounds the interval between receipt polls. There is no overall deadline; waiting ends
// with the receipt or with the context.
type PollPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultPollPolicy = PollPolicy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Await polls for the receipt of a submitted message until it is included or ctx ends. A receipt
// with a non-zero exit code is returned together with an *ExitError.
func Await(ctx context.Context, l Ledger, id cid.Cid, policy PollPolicy) (*Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0

	var rec *Receipt
	poll := func() error {
		r, found, err := l.Receipt(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !found {
			return errPending
		}
		rec = r
		return nil
	}
	err := backoff.RetryNotify(poll, &untilDone{BackOff: b, ctx: ctx}, func(err error, d time.Duration) {
		log.Debugw("awaiting receipt", "message", id, "retry", d)
	})
	if errors.Is(err, errPending) {
		// Polling only stops early once the deadline is too close for another poll.
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if rec.ExitCode != exitcode.Ok {
		return rec, &ExitError{Code: rec.ExitCode}
	}
	return rec, nil
}

// untilDone stops a backoff when its context ends. Unlike backoff.WithContext it keeps polling
// close to a deadline, halving the remaining time, instead of giving up a full interval early.
type untilDone struct {
	backoff.BackOff
	ctx context.Context
}

func (b *untilDone) Context() context.Context {
	return b.ctx
}

func (b *untilDone) NextBackOff() time.Duration {
	if b.ctx.Err() != nil {
		return backoff.Stop
	}
	next := b.BackOff.NextBackOff()
	if deadline, ok := b.ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < next {
			next = remaining / 2
		}
		if next < time.Millisecond {
			return backoff.Stop
		}
	}
	return next
}
