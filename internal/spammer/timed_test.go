package spammer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/contender/internal/db"
	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/generator"
	"github.com/flashbots/contender/internal/registry"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/flashbots/contender/internal/signer"
	"github.com/flashbots/contender/internal/spammer"
)

func newTestGenerator(t *testing.T, seed [32]byte, poolSize int) (*generator.Generator, []*signer.Signer) {
	t.Helper()
	pool, err := signer.NewAgentPool(seed, "spammers", poolSize)
	require.NoError(t, err)
	tmpl := &scenario.TxTemplate{
		Kind:     scenario.KindSpamTx,
		To:       "0x000000000000000000000000000000000000dEaD",
		FromPool: "spammers",
		Value:    "0",
	}
	planner := scenario.NewPlanner(registry.NewEnvStore(nil, nil), nil, "")
	pools := map[string]*signer.AgentPool{"spammers": pool}
	return generator.NewTxGenerator(seed, 0, planner, pools, nil, tmpl), pool.All()
}

func TestTimedSpammerSendsRatePerTick(t *testing.T) {
	seed := [32]byte{10}
	gen, signers := newTestGenerator(t, seed, 2)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)

	s := spammer.NewTimedSpammer(d, 10*time.Millisecond)

	var mu sync.Mutex
	var delivered []db.PendingTx
	err := s.Spam(context.Background(), gen, 2, 3, false, func(p db.PendingTx) {
		mu.Lock()
		delivered = append(delivered, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Equal(t, spammer.PhaseDraining, s.Phase())
	require.Len(t, delivered, 6) // 3 ticks * rate 2
}

func TestTimedSpammerZeroRateIsImmediatelyDone(t *testing.T) {
	seed := [32]byte{11}
	gen, signers := newTestGenerator(t, seed, 1)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)
	s := spammer.NewTimedSpammer(d, time.Millisecond)

	err := s.Spam(context.Background(), gen, 0, 5, false, func(db.PendingTx) {})
	require.NoError(t, err)
	require.Equal(t, spammer.PhaseDone, s.Phase())
	require.Empty(t, fc.sent)
}

func TestTimedSpammerCancellationStopsEarly(t *testing.T) {
	seed := [32]byte{12}
	gen, signers := newTestGenerator(t, seed, 1)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)
	s := spammer.NewTimedSpammer(d, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := s.Spam(ctx, gen, 1, 1000, false, func(db.PendingTx) {})
	require.ErrorIs(t, err, cerrors.ErrCancelled)
	require.Equal(t, spammer.PhaseCancelled, s.Phase())
}

func TestTimedSpammerForeverRunsUntilCancelled(t *testing.T) {
	seed := [32]byte{13}
	gen, signers := newTestGenerator(t, seed, 1)
	fc := &fakeChain{}
	d := newTestDispatcher(t, fc, signers)
	s := spammer.NewTimedSpammer(d, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(35*time.Millisecond, cancel)

	err := s.Spam(ctx, gen, 1, 0, true, func(db.PendingTx) {})
	require.Error(t, err)
	require.Equal(t, spammer.PhaseCancelled, s.Phase())
}
