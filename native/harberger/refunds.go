package harberger

import (
	"fmt"
	"math/big"
)

// ViewBondRefund returns the displaced bond waiting for account, or zero.
func (e *Engine) ViewBondRefund(account [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	amount, err := e.state.HarbergerRefundGet(account)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(amount), nil
}

// WithdrawBondRefund zeroes the caller's refund entry and pays it out from the
// vault. An empty entry is a no-op returning zero.
func (e *Engine) WithdrawBondRefund(caller [20]byte) (*big.Int, error) {
	if err := e.readyForPayments(); err != nil {
		return nil, err
	}
	if err := e.checkCaller("caller", caller); err != nil {
		return nil, err
	}
	amount, err := e.state.HarbergerRefundGet(caller)
	if err != nil {
		return nil, err
	}
	amount = cloneBigInt(amount)
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := e.state.HarbergerRefundPut(caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.payout(caller, amount); err != nil {
		return nil, err
	}
	e.emit(NewRefundWithdrawnEvent(caller, amount))
	return amount, nil
}

// creditRefund adds amount to account's refund entry and returns the new
// balance.
func (e *Engine) creditRefund(account [20]byte, amount *big.Int) (*big.Int, error) {
	current, err := e.state.HarbergerRefundGet(account)
	if err != nil {
		return nil, err
	}
	balance := new(big.Int).Add(zeroIfNil(current), zeroIfNil(amount))
	if amount == nil || amount.Sign() == 0 {
		return balance, nil
	}
	if err := e.state.HarbergerRefundPut(account, balance); err != nil {
		return nil, fmt.Errorf("credit refund: %w", err)
	}
	return balance, nil
}
