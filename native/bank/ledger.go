package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"pacochain/core/events"
	"pacochain/core/types"
	"pacochain/crypto"
	"pacochain/native/fees"
)

const (
	EventTypeTransfer = "bank.transfer"
	EventTypeApproval = "bank.approval"
	EventTypeMint     = "bank.mint"
)

var (
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrInvalidAmount         = errors.New("bank: invalid amount")
	ErrZeroAddress           = errors.New("bank: zero address")
)

type ledgerState interface {
	BankBalance(account [20]byte) (*big.Int, error)
	BankSetBalance(account [20]byte, amount *big.Int) error
	BankAllowance(owner, spender [20]byte) (*big.Int, error)
	BankSetAllowance(owner, spender [20]byte, amount *big.Int) error
	BankSupply() (*big.Int, error)
	BankSetSupply(amount *big.Int) error
	FeesAccumulateTotals(wallet [20]byte, gross, fee, net *big.Int) error
}

type bankEvent struct {
	evt *types.Event
}

func (e bankEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bankEvent) Event() *types.Event { return e.evt }

// Ledger is the single fungible payment token. Balances and allowances live in
// the ledger state; an optional fee policy withholds part of each transfer
// from the recipient.
type Ledger struct {
	state   ledgerState
	policy  fees.Policy
	emitter events.Emitter
}

// NewLedger binds a ledger to the provided state.
func NewLedger(state ledgerState, policy fees.Policy) *Ledger {
	return &Ledger{state: state, policy: policy, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// BalanceOf returns the balance of account.
func (l *Ledger) BalanceOf(account [20]byte) (*big.Int, error) {
	return l.state.BankBalance(account)
}

// Allowance returns how much spender may still move on behalf of owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return l.state.BankAllowance(owner, spender)
}

// TotalSupply returns the issued supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.state.BankSupply()
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if owner == ([20]byte{}) || spender == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := l.state.BankSetAllowance(owner, spender, amount); err != nil {
		return err
	}
	l.emit(EventTypeApproval, map[string]string{
		"owner":   formatAccount(owner),
		"spender": formatAccount(spender),
		"amount":  amount.String(),
	})
	return nil
}

// Mint issues new tokens to account. It is used for genesis allocations and
// the development faucet.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	supply, err := l.state.BankSupply()
	if err != nil {
		return err
	}
	balance, err := l.state.BankBalance(to)
	if err != nil {
		return err
	}
	newSupply := new(big.Int).Add(supply, amount)
	if err := checkAmount(newSupply); err != nil {
		return err
	}
	if err := l.state.BankSetSupply(newSupply); err != nil {
		return err
	}
	if err := l.state.BankSetBalance(to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	l.emit(EventTypeMint, map[string]string{"to": formatAccount(to), "amount": amount.String()})
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	return l.move(from, to, amount)
}

// TransferFrom moves amount from one account to another on behalf of spender,
// consuming spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender != from {
		allowance, err := l.state.BankAllowance(from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
		}
		if err := l.state.BankSetAllowance(from, spender, new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return l.move(from, to, amount)
}

func (l *Ledger) move(from, to [20]byte, amount *big.Int) error {
	if from == ([20]byte{}) || to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.state.BankBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	split := fees.Apply(fees.ApplyInput{From: from, To: to, Gross: amount, Policy: l.policy})

	if err := l.state.BankSetBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.credit(to, split.Net); err != nil {
		return err
	}
	if split.Fee.Sign() > 0 {
		if split.Collector == ([20]byte{}) {
			return fmt.Errorf("bank: fee collector not configured")
		}
		if err := l.credit(split.Collector, split.Fee); err != nil {
			return err
		}
		if err := l.state.FeesAccumulateTotals(split.Collector, amount, split.Fee, split.Net); err != nil {
			return err
		}
	}
	l.emit(EventTypeTransfer, map[string]string{
		"from":   formatAccount(from),
		"to":     formatAccount(to),
		"amount": amount.String(),
		"fee":    split.Fee.String(),
	})
	return nil
}

func (l *Ledger) credit(account [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := l.state.BankBalance(account)
	if err != nil {
		return err
	}
	return l.state.BankSetBalance(account, new(big.Int).Add(balance, amount))
}

func (l *Ledger) emit(eventType string, attrs map[string]string) {
	if l.emitter == nil {
		return
	}
	l.emitter.Emit(bankEvent{evt: &types.Event{Type: eventType, Attributes: attrs}})
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidAmount)
	}
	return nil
}

func formatAccount(addr [20]byte) string {
	return crypto.AddressFromRaw(crypto.PacoPrefix, addr).String()
}
