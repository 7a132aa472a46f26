package harberger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"pacochain/core/events"
	"pacochain/core/types"
	"pacochain/native/common"
)

// ModuleName is used for pause switches and metrics labels.
const ModuleName = "harberger"

type engineState interface {
	HarbergerSaleActive() (bool, error)
	HarbergerNextAssetID() (uint64, error)
	HarbergerListingGet(id uint64) (*Listing, bool, error)
	HarbergerListingPut(*Listing) error
	HarbergerIntentGet(id uint64, recipient [20]byte) (*EscrowIntent, bool, error)
	HarbergerIntentPut(*EscrowIntent) error
	HarbergerIntentDelete(id uint64, recipient [20]byte) error
	HarbergerIntentsForAsset(id uint64) ([]*EscrowIntent, error)
	HarbergerRefundGet(account [20]byte) (*big.Int, error)
	HarbergerRefundPut(account [20]byte, amount *big.Int) error
	RegistryMint(id uint64, owner [20]byte) error
	RegistryMove(id uint64, from, to [20]byte) error
}

// Payments is the fungible token used for prices, bonds and fees. Pulls from
// user accounts go through TransferFrom with the vault as spender.
type Payments interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
}

// Engine implements the bonded-ownership state machine on top of an external
// state backend and payment token.
type Engine struct {
	state    engineState
	payments Payments
	emitter  events.Emitter
	pauses   common.PauseView
	params   Params
	nowFn    func() uint64
}

// NewEngine creates an engine with the supplied parameters and a no-op emitter.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   systemNow,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPayments configures the payment token.
func (e *Engine) SetPayments(p Payments) { e.payments = p }

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source. Passing nil restores wall-clock time.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = systemNow
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Params returns the deployment parameters.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) readyForPayments() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.payments == nil {
		return errNilPayments
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(harbergerEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return systemNow()
	}
	return e.nowFn()
}

func systemNow() uint64 {
	return uint64(time.Now().Unix())
}

// load fetches a listing and settles accrual up to now. The accrued listing is
// written back so liquidation is stamped at the first observation.
func (e *Engine) load(id uint64, now uint64) (*Listing, error) {
	listing, ok, err := e.state.HarbergerListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || listing == nil {
		return nil, fmt.Errorf("%w: asset %d", ErrListingNotFound, id)
	}
	before := listing.LastAccrual
	_, started := accrue(listing, now, e.params)
	if listing.LastAccrual != before {
		if err := e.state.HarbergerListingPut(listing); err != nil {
			return nil, err
		}
	}
	if started {
		e.emit(NewLiquidationStartedEvent(listing))
	}
	return listing, nil
}

// checkCaller rejects the zero address and the module accounts. The vault and
// treasury never act on listings themselves.
func (e *Engine) checkCaller(role string, account [20]byte) error {
	switch account {
	case [20]byte{}:
		return fmt.Errorf("%w: %s required", ErrUnauthorized, role)
	case e.params.Vault, e.params.Treasury:
		return fmt.Errorf("%w: module account cannot act as %s", ErrUnauthorized, role)
	}
	return nil
}

// pull moves amount from an account into the vault.
func (e *Engine) pull(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.payments.TransferFrom(e.params.Vault, from, e.params.Vault, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
	}
	return nil
}

// payout moves amount from the vault to an account.
func (e *Engine) payout(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.payments.Transfer(e.params.Vault, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
	}
	return nil
}

// validateAmount rejects nil, negative and values wider than 256 bits.
func validateAmount(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: %s required", ErrInvalidAmount, name)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidAmount, name)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidAmount, name)
	}
	return nil
}

// validateDelta rejects nil deltas and magnitudes wider than 256 bits.
func validateDelta(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: %s required", ErrInvalidDelta, name)
	}
	if _, overflow := uint256.FromBig(new(big.Int).Abs(v)); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidAmount, name)
	}
	return nil
}
