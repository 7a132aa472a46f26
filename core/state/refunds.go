package state

import (
	"fmt"
	"math/big"
)

// HarbergerRefundGet returns the pending refund of account, or zero.
func (m *Manager) HarbergerRefundGet(account [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(RefundKey(account), amount)
	if err != nil {
		return nil, fmt.Errorf("refund: load: %w", err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// HarbergerRefundPut overwrites the refund entry of account. A zero amount
// deletes the entry.
func (m *Manager) HarbergerRefundPut(account [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		if err := m.KVDelete(RefundKey(account)); err != nil {
			return err
		}
		return m.KVRemove(refundIndexKey, account[:])
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("refund: negative amount")
	}
	if err := m.KVPut(RefundKey(account), amount); err != nil {
		return err
	}
	return m.KVAppend(refundIndexKey, account[:])
}

// HarbergerRefundAccounts lists accounts with a non-zero refund entry.
func (m *Manager) HarbergerRefundAccounts() ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(refundIndexKey, &raw); err != nil {
		return nil, fmt.Errorf("refund: load index: %w", err)
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("refund: malformed index entry")
		}
		var account [20]byte
		copy(account[:], entry)
		out = append(out, account)
	}
	return out, nil
}
