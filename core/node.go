package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"pacochain/core/clock"
	"pacochain/core/events"
	"pacochain/core/genesis"
	ledgerstate "pacochain/core/state"
	"pacochain/core/types"
	"pacochain/native/bank"
	"pacochain/native/common"
	"pacochain/native/fees"
	"pacochain/native/harberger"
	"pacochain/observability"
	"pacochain/observability/metrics"
	"pacochain/storage"
)

var genesisAppliedKey = []byte("paco/genesis/applied")

// ErrGenesisApplied is returned when a genesis spec is applied twice.
var ErrGenesisApplied = errors.New("core: genesis already applied")

// Node is the central controller. It serialises every public operation and
// runs each one inside a single storage transaction, publishing the events it
// raised only after the transaction commits.
type Node struct {
	db          storage.Database
	params      harberger.Params
	clock       clock.Clock
	policy      fees.Policy
	pauses      common.PauseView
	logger      *slog.Logger
	subscribers events.Fanout
	metrics     *metrics.HarbergerMetrics

	stateMu sync.Mutex
}

// Option customises the node instance.
type Option func(*Node)

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(n *Node) { n.clock = c }
}

// WithFeePolicy configures the payment token transfer fee. The vault and the
// treasury are always exempt.
func WithFeePolicy(policy fees.Policy) Option {
	return func(n *Node) { n.policy = policy.Clone() }
}

// WithPauses wires the module pause switches.
func WithPauses(p common.PauseView) Option {
	return func(n *Node) { n.pauses = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) { n.logger = l }
}

// WithSubscriber registers a downstream consumer of committed events.
func WithSubscriber(e events.Emitter) Option {
	return func(n *Node) {
		if e != nil {
			n.subscribers = append(n.subscribers, e)
		}
	}
}

// NewNode wires a node over db using the supplied deployment parameters.
func NewNode(db storage.Database, params harberger.Params, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	node := &Node{
		db:      db,
		params:  params,
		clock:   clock.System{},
		logger:  slog.Default(),
		metrics: metrics.Harberger(),
	}
	for _, opt := range opts {
		opt(node)
	}
	if node.clock == nil {
		node.clock = clock.System{}
	}
	if node.logger == nil {
		node.logger = slog.Default()
	}
	node.policy = node.policy.WithExempt(params.Vault, params.Treasury)
	return node, nil
}

// Params returns the deployment parameters.
func (n *Node) Params() harberger.Params { return n.params }

// Now returns the node clock reading.
func (n *Node) Now() uint64 { return n.clock.Now() }

// session bundles the per-transaction views handed to an operation.
type session struct {
	state  *ledgerstate.Manager
	bank   *bank.Ledger
	engine *harberger.Engine
}

func (n *Node) newSession(txn storage.Txn, buffer *events.Buffer) *session {
	manager := ledgerstate.NewManager(txn)
	ledger := bank.NewLedger(manager, n.policy)
	ledger.SetEmitter(buffer)
	engine := harberger.NewEngine(n.params)
	engine.SetState(manager)
	engine.SetPayments(ledger)
	engine.SetPauses(n.pauses)
	engine.SetNowFunc(n.clock.Now)
	engine.SetEmitter(buffer)
	return &session{state: manager, bank: ledger, engine: engine}
}

// execute runs fn in a fresh transaction. Any error discards every write the
// operation made, including payment movements.
func (n *Node) execute(op string, fn func(*session) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	start := time.Now()
	txn, err := n.db.Begin()
	if err != nil {
		n.observe(op, err, start)
		return fmt.Errorf("core: begin %s: %w", op, err)
	}
	buffer := &events.Buffer{}
	if err := fn(n.newSession(txn, buffer)); err != nil {
		txn.Discard()
		n.observe(op, err, start)
		return err
	}
	if err := txn.Commit(); err != nil {
		txn.Discard()
		n.observe(op, err, start)
		return fmt.Errorf("core: commit %s: %w", op, err)
	}
	n.observe(op, nil, start)
	n.publish(buffer.Drain())
	return nil
}

// view runs fn in a transaction that is always discarded.
func (n *Node) view(fn func(*session) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	txn, err := n.db.Begin()
	if err != nil {
		return fmt.Errorf("core: begin view: %w", err)
	}
	defer txn.Discard()
	return fn(n.newSession(txn, &events.Buffer{}))
}

func (n *Node) observe(op string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = harberger.Code(err)
	}
	n.metrics.ObserveOperation(op, outcome, time.Since(start))
	if err != nil {
		n.logger.Warn("operation failed", slog.String("op", op), slog.String("code", outcome), slog.Any("error", err))
		return
	}
	n.logger.Debug("operation committed", slog.String("op", op), slog.Duration("duration", time.Since(start)))
}

func (n *Node) publish(batch []events.Event) {
	recorder := observability.Events()
	for _, evt := range batch {
		recorder.RecordPublished(evt.EventType())
		if payload, ok := events.Payload(evt); ok {
			n.recordEventMetrics(payload)
		}
		n.subscribers.Emit(evt)
	}
}

func (n *Node) recordEventMetrics(evt *types.Event) {
	amount := func(key string) *big.Int {
		v, ok := new(big.Int).SetString(evt.Attr(key), 10)
		if !ok {
			return big.NewInt(0)
		}
		return v
	}
	switch evt.Type {
	case harberger.EventTypeLiquidationStarted:
		n.metrics.IncLiquidations()
	case harberger.EventTypeFeesReaped:
		n.metrics.AddFeesReaped(amount("total"))
	case harberger.EventTypeRefundCredited:
		n.metrics.AddRefund("credited", amount("amount"))
	case harberger.EventTypeRefundWithdrawn:
		n.metrics.AddRefund("withdrawn", amount("amount"))
	case harberger.EventTypeSold:
		n.metrics.AddSaleVolume(amount("price"))
	}
}

// --- Genesis and administration ---

// ApplyGenesis seeds token allocations and the sale flag. It may run once per
// database.
func (n *Node) ApplyGenesis(spec *genesis.GenesisSpec) error {
	if spec == nil {
		return fmt.Errorf("core: genesis spec required")
	}
	return n.execute("genesis", func(s *session) error {
		applied, err := s.state.KVGet(genesisAppliedKey, nil)
		if err != nil {
			return err
		}
		if applied {
			return ErrGenesisApplied
		}
		for _, alloc := range spec.Allocations() {
			if alloc.Amount.Sign() == 0 {
				continue
			}
			if err := s.bank.Mint(alloc.Account, alloc.Amount); err != nil {
				return fmt.Errorf("core: genesis alloc: %w", err)
			}
		}
		if err := s.state.SetHarbergerSaleActive(spec.SaleActive); err != nil {
			return err
		}
		return s.state.KVPut(genesisAppliedKey, true)
	})
}

// SetSaleActive toggles the sale flag guarding Mint.
func (n *Node) SetSaleActive(active bool) error {
	return n.execute("set_sale_active", func(s *session) error {
		return s.state.SetHarbergerSaleActive(active)
	})
}

// SaleActive reports the sale flag.
func (n *Node) SaleActive() (bool, error) {
	var active bool
	err := n.view(func(s *session) error {
		var err error
		active, err = s.state.HarbergerSaleActive()
		return err
	})
	return active, err
}

// --- Trade engine ---

// Mint lists a new asset owned by caller.
func (n *Node) Mint(caller [20]byte, statedPrice, bond *big.Int) (uint64, error) {
	var id uint64
	err := n.execute("mint", func(s *session) error {
		var err error
		id, err = s.engine.Mint(caller, statedPrice, bond)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AlterStatedPriceAndBond applies owner deltas to a listing.
func (n *Node) AlterStatedPriceAndBond(caller [20]byte, id uint64, priceDelta, bondDelta *big.Int) (*harberger.Listing, error) {
	var listing *harberger.Listing
	err := n.execute("alter", func(s *session) error {
		var err error
		listing, err = s.engine.AlterStatedPriceAndBond(caller, id, priceDelta, bondDelta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// BuyToken force-purchases id at its current price. maxPrice may be nil.
func (n *Node) BuyToken(caller [20]byte, id uint64, newStatedPrice, newBond, maxPrice *big.Int) (*harberger.Listing, *big.Int, error) {
	var (
		listing *harberger.Listing
		paid    *big.Int
	)
	err := n.execute("buy", func(s *session) error {
		var err error
		listing, paid, err = s.engine.BuyToken(caller, id, newStatedPrice, newBond, maxPrice)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return listing, paid, nil
}

// --- Escrow consent gate ---

// SetEscrowIntent records recipient's consent to receive id.
func (n *Node) SetEscrowIntent(recipient [20]byte, id uint64, priceDelta, bondDelta *big.Int, expiry uint64) (*harberger.EscrowIntent, error) {
	var intent *harberger.EscrowIntent
	err := n.execute("set_intent", func(s *session) error {
		var err error
		intent, err = s.engine.SetEscrowIntent(recipient, id, priceDelta, bondDelta, expiry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// CancelEscrowIntent withdraws recipient's consent.
func (n *Node) CancelEscrowIntent(recipient [20]byte, id uint64) error {
	return n.execute("cancel_intent", func(s *session) error {
		return s.engine.CancelEscrowIntent(recipient, id)
	})
}

// GetIntent returns the live intent of account for id.
func (n *Node) GetIntent(id uint64, account [20]byte) (*harberger.EscrowIntent, bool, error) {
	var (
		intent *harberger.EscrowIntent
		ok     bool
	)
	err := n.view(func(s *session) error {
		var err error
		intent, ok, err = s.engine.GetIntent(id, account)
		return err
	})
	return intent, ok, err
}

// TransferFrom moves id from from to to under a live intent.
func (n *Node) TransferFrom(caller, from, to [20]byte, id uint64) (*harberger.Listing, error) {
	var listing *harberger.Listing
	err := n.execute("transfer", func(s *session) error {
		var err error
		listing, err = s.engine.TransferFrom(caller, from, to, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// --- Fees and refunds ---

// ReapFeesForAssetIDs moves the pending fees of ids to the treasury.
func (n *Node) ReapFeesForAssetIDs(ids []uint64) (*big.Int, error) {
	var total *big.Int
	err := n.execute("reap", func(s *session) error {
		var err error
		total, err = s.engine.ReapFeesForAssetIDs(ids)
		return err
	})
	if err != nil {
		return big.NewInt(0), err
	}
	return total, nil
}

// ViewBondRefund returns the refund owed to account.
func (n *Node) ViewBondRefund(account [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := n.view(func(s *session) error {
		var err error
		amount, err = s.engine.ViewBondRefund(account)
		return err
	})
	return amount, err
}

// WithdrawBondRefund pays caller their pending refund.
func (n *Node) WithdrawBondRefund(caller [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := n.execute("withdraw_refund", func(s *session) error {
		var err error
		amount, err = s.engine.WithdrawBondRefund(caller)
		return err
	})
	if err != nil {
		return big.NewInt(0), err
	}
	return amount, nil
}

// --- Read accessors. These persist accrual so liquidation is stamped at the
// first observation. ---

// GetListing returns the accrued listing and its current price.
func (n *Node) GetListing(id uint64) (*harberger.Quote, error) {
	var quote *harberger.Quote
	err := n.execute("get_listing", func(s *session) error {
		var err error
		quote, err = s.engine.Quote(id)
		return err
	})
	return quote, err
}

func (n *Node) GetPrice(id uint64) (*big.Int, error) {
	var v *big.Int
	err := n.execute("get_price", func(s *session) error {
		var err error
		v, err = s.engine.GetPrice(id)
		return err
	})
	return v, err
}

func (n *Node) GetStatedPrice(id uint64) (*big.Int, error) {
	var v *big.Int
	err := n.execute("get_stated_price", func(s *session) error {
		var err error
		v, err = s.engine.GetStatedPrice(id)
		return err
	})
	return v, err
}

func (n *Node) GetBond(id uint64) (*big.Int, error) {
	var v *big.Int
	err := n.execute("get_bond", func(s *session) error {
		var err error
		v, err = s.engine.GetBond(id)
		return err
	})
	return v, err
}

func (n *Node) GetLiquidationStartedAt(id uint64) (uint64, error) {
	var v uint64
	err := n.execute("get_liquidation_started_at", func(s *session) error {
		var err error
		v, err = s.engine.GetLiquidationStartedAt(id)
		return err
	})
	return v, err
}

// --- Registry ---

func (n *Node) OwnerOf(id uint64) ([20]byte, bool, error) {
	var (
		owner [20]byte
		ok    bool
	)
	err := n.view(func(s *session) error {
		var err error
		owner, ok, err = s.state.RegistryOwnerOf(id)
		return err
	})
	return owner, ok, err
}

func (n *Node) BalanceOf(owner [20]byte) (uint64, error) {
	var count uint64
	err := n.view(func(s *session) error {
		var err error
		count, err = s.state.RegistryBalanceOf(owner)
		return err
	})
	return count, err
}

func (n *Node) TokensOfOwner(owner [20]byte) ([]uint64, error) {
	var ids []uint64
	err := n.view(func(s *session) error {
		var err error
		ids, err = s.state.RegistryTokensOfOwner(owner)
		return err
	})
	return ids, err
}

func (n *Node) TotalSupply() (uint64, error) {
	var supply uint64
	err := n.view(func(s *session) error {
		var err error
		supply, err = s.state.RegistryTotalSupply()
		return err
	})
	return supply, err
}

func (n *Node) TokenByIndex(index uint64) (uint64, error) {
	var id uint64
	err := n.view(func(s *session) error {
		var err error
		id, err = s.state.RegistryTokenByIndex(index)
		return err
	})
	return id, err
}

// --- Payment token ---

// TokenApprove lets spender pull up to amount from owner. Users approve the
// vault before minting, topping up bonds or buying.
func (n *Node) TokenApprove(owner, spender [20]byte, amount *big.Int) error {
	return n.execute("token_approve", func(s *session) error {
		return s.bank.Approve(owner, spender, amount)
	})
}

// TokenFund mints payment tokens to account. Used by genesis tooling and
// tests.
func (n *Node) TokenFund(account [20]byte, amount *big.Int) error {
	return n.execute("token_fund", func(s *session) error {
		return s.bank.Mint(account, amount)
	})
}

func (n *Node) TokenBalance(account [20]byte) (*big.Int, error) {
	var v *big.Int
	err := n.view(func(s *session) error {
		var err error
		v, err = s.bank.BalanceOf(account)
		return err
	})
	return v, err
}

func (n *Node) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	var v *big.Int
	err := n.view(func(s *session) error {
		var err error
		v, err = s.bank.Allowance(owner, spender)
		return err
	})
	return v, err
}

// IntentsForAsset lists the live escrow intents of asset id.
func (n *Node) IntentsForAsset(id uint64) ([]*harberger.EscrowIntent, error) {
	var intents []*harberger.EscrowIntent
	err := n.view(func(s *session) error {
		var err error
		intents, err = s.engine.IntentsForAsset(id)
		return err
	})
	return intents, err
}

// FeeTotals returns the transfer fee totals per collecting wallet.
func (n *Node) FeeTotals() ([]fees.Totals, error) {
	var totals []fees.Totals
	err := n.view(func(s *session) error {
		var err error
		totals, err = s.state.FeesListTotals()
		return err
	})
	return totals, err
}

// VaultAudit compares the vault balance with the liabilities it backs.
type VaultAudit struct {
	Balance     *big.Int
	Bonds       *big.Int
	PendingFees *big.Int
	Refunds     *big.Int
}

// Liabilities sums bonds, pending fees and refunds.
func (a *VaultAudit) Liabilities() *big.Int {
	total := new(big.Int).Add(a.Bonds, a.PendingFees)
	return total.Add(total, a.Refunds)
}

// Solvent reports whether the vault balance equals its liabilities.
func (a *VaultAudit) Solvent() bool {
	return a.Balance.Cmp(a.Liabilities()) == 0
}

// AuditVault walks every listing and refund entry without accruing.
func (n *Node) AuditVault() (*VaultAudit, error) {
	audit := &VaultAudit{Bonds: big.NewInt(0), PendingFees: big.NewInt(0), Refunds: big.NewInt(0)}
	err := n.view(func(s *session) error {
		balance, err := s.bank.BalanceOf(n.params.Vault)
		if err != nil {
			return err
		}
		audit.Balance = balance
		supply, err := s.state.RegistryTotalSupply()
		if err != nil {
			return err
		}
		for i := uint64(0); i < supply; i++ {
			id, err := s.state.RegistryTokenByIndex(i)
			if err != nil {
				return err
			}
			listing, ok, err := s.state.HarbergerListingGet(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("core: audit: listing %d missing", id)
			}
			audit.Bonds.Add(audit.Bonds, listing.Bond)
			audit.PendingFees.Add(audit.PendingFees, listing.PendingFees)
		}
		accounts, err := s.state.HarbergerRefundAccounts()
		if err != nil {
			return err
		}
		for _, account := range accounts {
			amount, err := s.state.HarbergerRefundGet(account)
			if err != nil {
				return err
			}
			audit.Refunds.Add(audit.Refunds, amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}
