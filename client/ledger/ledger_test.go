package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	tutil "github.com/DianaJonathan/timecapsule/support/testing"
)

var fastPolling = ledger.PollPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

type fakeLedger struct {
	mu         sync.Mutex
	polls      int
	readyAfter int
	readyAt    time.Time
	receipt    *ledger.Receipt
	err        error
	call       *ledger.Receipt
}

func (f *fakeLedger) NetworkName(context.Context) (string, error) { return "fake", nil }

func (f *fakeLedger) Submit(context.Context, *ledger.SignedMessage) (cid.Cid, error) {
	return cid.Undef, errors.New("not supported")
}

func (f *fakeLedger) Receipt(context.Context, cid.Cid) (*ledger.Receipt, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.err != nil {
		return nil, false, f.err
	}
	if f.readyAfter < 0 || f.polls < f.readyAfter {
		return nil, false, nil
	}
	if time.Now().Before(f.readyAt) {
		return nil, false, nil
	}
	return f.receipt, true, nil
}

func (f *fakeLedger) Call(context.Context, *ledger.Message) (*ledger.Receipt, error) {
	return f.call, nil
}

func TestMessageCid(t *testing.T) {
	from := tutil.NewSECP256K1Addr(t, "from")
	to := tutil.NewIDAddr(t, 100)

	m1, err := ledger.NewMessage(from, to, builtin.MethodsCapsule.UnlockCapsule, &capsule.CapsuleIDParams{ID: 1})
	require.NoError(t, err)
	m2, err := ledger.NewMessage(from, to, builtin.MethodsCapsule.UnlockCapsule, &capsule.CapsuleIDParams{ID: 1})
	require.NoError(t, err)

	c1, err := m1.Cid()
	require.NoError(t, err)
	c2, err := m2.Cid()
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	m2.Nonce = 1
	c2, err = m2.Cid()
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)

	data, err := m1.Bytes()
	require.NoError(t, err)
	var decoded ledger.Message
	require.NoError(t, decoded.UnmarshalCBOR(bytes.NewReader(data)))
	assert.Equal(t, *m1, decoded)
}

func TestAwait(t *testing.T) {
	ctx := context.Background()

	t.Run("polls until included", func(t *testing.T) {
		l := &fakeLedger{readyAfter: 3, receipt: &ledger.Receipt{ExitCode: exitcode.Ok, Epoch: 7}}
		rec, err := ledger.Await(ctx, l, cid.Undef, fastPolling)
		require.NoError(t, err)
		assert.Equal(t, 3, l.polls)
		assert.Equal(t, int64(7), int64(rec.Epoch))
	})

	t.Run("failed receipt", func(t *testing.T) {
		l := &fakeLedger{readyAfter: 1, receipt: &ledger.Receipt{ExitCode: capsule.ErrTooEarly}}
		rec, err := ledger.Await(ctx, l, cid.Undef, fastPolling)
		require.NotNil(t, rec)
		var exitErr *ledger.ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, capsule.ErrTooEarly, exitErr.Code)
	})

	t.Run("ledger error stops polling", func(t *testing.T) {
		boom := errors.New("boom")
		l := &fakeLedger{err: boom}
		_, err := ledger.Await(ctx, l, cid.Undef, fastPolling)
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, l.polls)
	})

	t.Run("cancelled", func(t *testing.T) {
		l := &fakeLedger{readyAfter: -1}
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := ledger.Await(cctx, l, cid.Undef, fastPolling)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
		assert.GreaterOrEqual(t, int64(time.Since(start)), int64(20*time.Millisecond))
	})

	t.Run("waits out the deadline when polls are slow", func(t *testing.T) {
		l := &fakeLedger{readyAfter: -1}
		cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err := ledger.Await(cctx, l, cid.Undef, ledger.PollPolicy{InitialInterval: time.Second, MaxInterval: time.Second})
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
		assert.Error(t, cctx.Err())
	})

	t.Run("polls again before a deadline shorter than the interval", func(t *testing.T) {
		l := &fakeLedger{readyAt: time.Now().Add(50 * time.Millisecond), receipt: &ledger.Receipt{ExitCode: exitcode.Ok, Epoch: 2}}
		cctx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
		defer cancel()
		rec, err := ledger.Await(cctx, l, cid.Undef, ledger.PollPolicy{InitialInterval: time.Second, MaxInterval: time.Second})
		require.NoError(t, err)
		assert.Equal(t, int64(2), int64(rec.Epoch))
		assert.GreaterOrEqual(t, l.polls, 2)
	})
}

func TestCallInto(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	total := cbg.CborInt(4)
	require.NoError(t, total.MarshalCBOR(&buf))

	l := &fakeLedger{call: &ledger.Receipt{ExitCode: exitcode.Ok, Return: buf.Bytes()}}
	var out cbg.CborInt
	require.NoError(t, ledger.CallInto(ctx, l, &ledger.Message{Method: builtin.MethodsCapsule.TotalCapsules}, &out))
	assert.Equal(t, total, out)

	l.call = &ledger.Receipt{ExitCode: exitcode.ErrNotFound}
	err := ledger.CallInto(ctx, l, &ledger.Message{Method: builtin.MethodsCapsule.GetMetadata}, &out)
	var exitErr *ledger.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitcode.ErrNotFound, exitErr.Code)
	assert.Equal(t, builtin.MethodsCapsule.GetMetadata, exitErr.Method)
}
