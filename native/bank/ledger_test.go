package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"pacochain/core/state"
	"pacochain/native/fees"
	"pacochain/storage"
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestLedger(t *testing.T, policy fees.Policy) (*Ledger, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	mgr := state.NewManager(db)
	return NewLedger(mgr, policy), mgr
}

func TestTransferMovesBalance(t *testing.T) {
	ledger, _ := newTestLedger(t, fees.Policy{})
	require.NoError(t, ledger.Mint(addr(1), big.NewInt(100)))

	require.NoError(t, ledger.Transfer(addr(1), addr(2), big.NewInt(40)))
	from, err := ledger.BalanceOf(addr(1))
	require.NoError(t, err)
	to, err := ledger.BalanceOf(addr(2))
	require.NoError(t, err)
	require.Equal(t, int64(60), from.Int64())
	require.Equal(t, int64(40), to.Int64())

	err = ledger.Transfer(addr(1), addr(2), big.NewInt(61))
	require.True(t, errors.Is(err, ErrInsufficientBalance))

	supply, err := ledger.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, int64(100), supply.Int64())
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t, fees.Policy{})
	owner, spender, dest := addr(1), addr(2), addr(3)
	require.NoError(t, ledger.Mint(owner, big.NewInt(100)))

	err := ledger.TransferFrom(spender, owner, dest, big.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve(owner, spender, big.NewInt(25)))
	require.NoError(t, ledger.TransferFrom(spender, owner, dest, big.NewInt(10)))
	remaining, err := ledger.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(15), remaining.Int64())

	require.ErrorIs(t, ledger.TransferFrom(spender, owner, dest, big.NewInt(16)), ErrInsufficientAllowance)
	require.NoError(t, ledger.TransferFrom(owner, owner, dest, big.NewInt(50)))

	got, err := ledger.BalanceOf(dest)
	require.NoError(t, err)
	require.Equal(t, int64(60), got.Int64())
}

func TestTransferFeeWithheldFromRecipient(t *testing.T) {
	vault, collector := addr(0xf0), addr(0xee)
	policy := fees.Policy{TransferFeeBps: 100, Collector: collector}.WithExempt(vault)
	ledger, mgr := newTestLedger(t, policy)
	require.NoError(t, ledger.Mint(addr(1), big.NewInt(10_000)))

	require.NoError(t, ledger.Transfer(addr(1), addr(2), big.NewInt(1_000)))
	recipient, _ := ledger.BalanceOf(addr(2))
	fee, _ := ledger.BalanceOf(collector)
	require.Equal(t, int64(990), recipient.Int64())
	require.Equal(t, int64(10), fee.Int64())

	require.NoError(t, ledger.Transfer(addr(1), vault, big.NewInt(1_000)))
	held, _ := ledger.BalanceOf(vault)
	require.Equal(t, int64(1_000), held.Int64(), "vault transfers are exempt")

	totals, ok, err := mgr.FeesGetTotals(collector)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(10), totals.Fee.Int64())
}

func TestInvalidAmounts(t *testing.T) {
	ledger, _ := newTestLedger(t, fees.Policy{})
	require.ErrorIs(t, ledger.Mint(addr(1), big.NewInt(-1)), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Transfer(addr(1), addr(2), nil), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Mint([20]byte{}, big.NewInt(1)), ErrZeroAddress)
	require.NoError(t, ledger.Transfer(addr(1), addr(2), big.NewInt(0)))
}
