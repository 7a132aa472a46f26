package core

import (
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pacochain/core/clock"
	"pacochain/core/events"
	"pacochain/core/genesis"
	"pacochain/crypto"
	"pacochain/native/common"
	"pacochain/native/harberger"
	"pacochain/storage"
)

const testStart = uint64(1_700_000_000)

var (
	testVault    = crypto.ModuleAddress("paco/vault").Raw()
	testTreasury = crypto.ModuleAddress("paco/treasury").Raw()
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

type recordingSubscriber struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingSubscriber) Emit(evt events.Event) {
	r.mu.Lock()
	r.types = append(r.types, evt.EventType())
	r.mu.Unlock()
}

func (r *recordingSubscriber) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	node  *Node
	clock *clock.Manual
	sub   *recordingSubscriber
	alice [20]byte
	bob   [20]byte
}

func writeTestGenesis(t *testing.T, alloc map[string]string, saleActive bool) *genesis.GenesisSpec {
	t.Helper()
	doc := map[string]interface{}{
		"genesisTime": "2024-01-01T00:00:00Z",
		"saleActive":  saleActive,
		"alloc":       alloc,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	spec, err := genesis.LoadGenesisSpec(path)
	require.NoError(t, err)
	return spec
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })

	params := harberger.DefaultParams()
	params.Vault = testVault
	params.Treasury = testTreasury

	env := &testEnv{
		clock: clock.NewManual(testStart),
		sub:   &recordingSubscriber{},
		alice: crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{0xa1}).Raw(),
		bob:   crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{0xb0}).Raw(),
	}
	opts = append([]Option{WithClock(env.clock), WithSubscriber(env.sub)}, opts...)
	node, err := NewNode(db, params, opts...)
	require.NoError(t, err)
	env.node = node

	spec := writeTestGenesis(t, map[string]string{
		crypto.AddressFromRaw(crypto.PacoPrefix, env.alice).String(): ether(1000).String(),
		crypto.AddressFromRaw(crypto.PacoPrefix, env.bob).String():   ether(1000).String(),
	}, true)
	require.NoError(t, node.ApplyGenesis(spec))
	require.NoError(t, node.TokenApprove(env.alice, testVault, ether(1000)))
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.clock.Advance(d)
}

func requireSolvent(t *testing.T, node *Node) {
	t.Helper()
	audit, err := node.AuditVault()
	require.NoError(t, err)
	require.True(t, audit.Solvent(), "vault %s liabilities %s", audit.Balance, audit.Liabilities())
}

func TestNewNodeValidatesParams(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	_, err := NewNode(db, harberger.DefaultParams())
	require.Error(t, err)
	_, err = NewNode(nil, harberger.DefaultParams())
	require.Error(t, err)
}

func TestGenesisAppliesOnce(t *testing.T) {
	env := newTestEnv(t)
	balance, err := env.node.TokenBalance(env.alice)
	require.NoError(t, err)
	require.Equal(t, ether(1000), balance)

	active, err := env.node.SaleActive()
	require.NoError(t, err)
	require.True(t, active)

	err = env.node.ApplyGenesis(writeTestGenesis(t, nil, false))
	require.ErrorIs(t, err, ErrGenesisApplied)
	active, err = env.node.SaleActive()
	require.NoError(t, err)
	require.True(t, active)
}

func TestMintRequiresActiveSale(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.node.SetSaleActive(false))
	_, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.ErrorIs(t, err, harberger.ErrSaleNotActive)
}

func TestMintBuyWithdrawLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.Equal(t, 1, env.sub.count(harberger.EventTypeMinted))

	owner, ok, err := env.node.OwnerOf(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, env.alice, owner)
	requireSolvent(t, env.node)

	env.advance(30 * 24 * time.Hour)
	bond, err := env.node.GetBond(id)
	require.NoError(t, err)
	require.Equal(t, -1, bond.Cmp(ether(10)))

	require.NoError(t, env.node.TokenApprove(env.bob, testVault, ether(1000)))
	listing, paid, err := env.node.BuyToken(env.bob, id, ether(200), ether(20), ether(100))
	require.NoError(t, err)
	require.Equal(t, ether(100), paid)
	require.Equal(t, env.bob, listing.Owner)
	require.Equal(t, 1, env.sub.count(harberger.EventTypeSold))

	refund, err := env.node.ViewBondRefund(env.alice)
	require.NoError(t, err)
	require.Equal(t, bond, refund)
	requireSolvent(t, env.node)

	before, err := env.node.TokenBalance(env.alice)
	require.NoError(t, err)
	withdrawn, err := env.node.WithdrawBondRefund(env.alice)
	require.NoError(t, err)
	require.Equal(t, refund, withdrawn)
	after, err := env.node.TokenBalance(env.alice)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(before, refund), after)

	again, err := env.node.WithdrawBondRefund(env.alice)
	require.NoError(t, err)
	require.Zero(t, again.Sign())

	reaped, err := env.node.ReapFeesForAssetIDs([]uint64{id})
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(ether(10), bond), reaped)
	treasury, err := env.node.TokenBalance(testTreasury)
	require.NoError(t, err)
	require.Equal(t, reaped, treasury)
	requireSolvent(t, env.node)

	ids, err := env.node.TokensOfOwner(env.bob)
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, ids)
}

func TestFailedPaymentRollsBackEverything(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.NoError(t, err)

	// bob never approved the vault
	_, _, err = env.node.BuyToken(env.bob, id, ether(100), ether(10), nil)
	require.ErrorIs(t, err, harberger.ErrPaymentTransferFailed)

	owner, _, err := env.node.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, env.alice, owner)
	refund, err := env.node.ViewBondRefund(env.alice)
	require.NoError(t, err)
	require.Zero(t, refund.Sign())
	require.Zero(t, env.sub.count(harberger.EventTypeSold))
	requireSolvent(t, env.node)
}

func TestReadsPersistLiquidationStamp(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.NoError(t, err)

	// 10% bond at 20%/yr lasts half a year.
	env.advance(200 * 24 * time.Hour)
	stamp, err := env.node.GetLiquidationStartedAt(id)
	require.NoError(t, err)
	require.Equal(t, env.clock.Now(), stamp)
	require.Equal(t, 1, env.sub.count(harberger.EventTypeLiquidationStarted))

	env.advance(2 * 24 * time.Hour)
	again, err := env.node.GetLiquidationStartedAt(id)
	require.NoError(t, err)
	require.Equal(t, stamp, again)
	require.Equal(t, 1, env.sub.count(harberger.EventTypeLiquidationStarted))

	price, err := env.node.GetPrice(id)
	require.NoError(t, err)
	require.Equal(t, -1, price.Cmp(ether(50)))
	stated, err := env.node.GetStatedPrice(id)
	require.NoError(t, err)
	require.Equal(t, ether(100), stated)

	quote, err := env.node.GetListing(id)
	require.NoError(t, err)
	require.Equal(t, price, quote.CurrentPrice)
	require.Zero(t, quote.Listing.Bond.Sign())
	requireSolvent(t, env.node)
}

func TestEscrowTransferThroughNode(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.NoError(t, err)

	_, err = env.node.TransferFrom(env.alice, env.alice, env.bob, id)
	require.ErrorIs(t, err, harberger.ErrIntentExpiredOrMissing)
	require.EqualError(t, err, "Intent to receive expired.")

	require.NoError(t, env.node.TokenApprove(env.bob, testVault, ether(5)))
	_, err = env.node.SetEscrowIntent(env.bob, id, big.NewInt(0), ether(5), env.clock.Now()+3600)
	require.NoError(t, err)
	intent, ok, err := env.node.GetIntent(id, env.bob)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ether(5), intent.BondDelta)

	listing, err := env.node.TransferFrom(env.alice, env.alice, env.bob, id)
	require.NoError(t, err)
	require.Equal(t, env.bob, listing.Owner)
	require.Equal(t, ether(15), listing.Bond)
	_, ok, err = env.node.GetIntent(id, env.bob)
	require.NoError(t, err)
	require.False(t, ok)
	requireSolvent(t, env.node)
}

func TestPausedModuleRejectsWrites(t *testing.T) {
	pauses := common.NewPauseSet()
	env := newTestEnv(t, WithPauses(pauses))
	id, err := env.node.Mint(env.alice, ether(100), ether(10))
	require.NoError(t, err)

	pauses.Set(harberger.ModuleName, true)
	_, err = env.node.AlterStatedPriceAndBond(env.alice, id, ether(1), big.NewInt(0))
	require.True(t, errors.Is(err, common.ErrModulePaused))
	_, err = env.node.GetPrice(id)
	require.NoError(t, err)
}
