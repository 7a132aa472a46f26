package state

import (
	"fmt"
	"math/big"
)

// BankBalance returns the payment-token balance of account.
func (m *Manager) BankBalance(account [20]byte) (*big.Int, error) {
	return m.loadAmount(bankBalanceKey(account), "balance")
}

// BankSetBalance overwrites the payment-token balance of account.
func (m *Manager) BankSetBalance(account [20]byte, amount *big.Int) error {
	return m.storeAmount(bankBalanceKey(account), amount, "balance")
}

// BankAllowance returns how much spender may move on behalf of owner.
func (m *Manager) BankAllowance(owner, spender [20]byte) (*big.Int, error) {
	return m.loadAmount(bankAllowanceKey(owner, spender), "allowance")
}

// BankSetAllowance overwrites the allowance of spender over owner's balance.
func (m *Manager) BankSetAllowance(owner, spender [20]byte, amount *big.Int) error {
	return m.storeAmount(bankAllowanceKey(owner, spender), amount, "allowance")
}

// BankSupply returns the total issued payment-token supply.
func (m *Manager) BankSupply() (*big.Int, error) {
	return m.loadAmount(bankSupplyKey, "supply")
}

// BankSetSupply overwrites the total issued supply.
func (m *Manager) BankSetSupply(amount *big.Int) error {
	return m.storeAmount(bankSupplyKey, amount, "supply")
}

func (m *Manager) loadAmount(key []byte, what string) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, fmt.Errorf("bank: load %s: %w", what, err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int, what string) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative %s not allowed", what)
	}
	return m.KVPut(key, amount)
}
