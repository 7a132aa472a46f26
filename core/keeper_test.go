package core

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeeperSweepReapsAllAssets(t *testing.T) {
	env := newTestEnv(t)
	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := env.node.Mint(env.alice, ether(100), ether(10))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	env.advance(30 * 24 * time.Hour)

	keeper := NewKeeper(env.node, WithKeeperBatchSize(2))
	total, err := keeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, total.Sign())

	treasury, err := env.node.TokenBalance(testTreasury)
	require.NoError(t, err)
	require.Equal(t, total, treasury)

	expected := big.NewInt(0)
	for _, id := range ids {
		bond, err := env.node.GetBond(id)
		require.NoError(t, err)
		expected.Add(expected, new(big.Int).Sub(ether(10), bond))
	}
	require.Equal(t, expected, total)
	requireSolvent(t, env.node)

	again, err := keeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, again.Sign())
}

func TestKeeperPauseAndCancel(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.NoError(t, err)

	keeper := NewKeeper(env.node, WithKeeperInterval(time.Millisecond))
	keeper.Pause()
	require.True(t, keeper.Paused())
	_, err = keeper.Sweep(context.Background())
	require.ErrorIs(t, err, ErrKeeperPaused)
	keeper.Resume()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = keeper.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)

	runCtx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	err = keeper.Run(runCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
