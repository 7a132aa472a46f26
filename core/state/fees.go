package state

import (
	"fmt"
	"math/big"

	"pacochain/native/fees"
)

type storedFeeTotals struct {
	Wallet [20]byte
	Gross  *big.Int
	Fee    *big.Int
	Net    *big.Int
}

func (stored *storedFeeTotals) toTotals() fees.Totals {
	return fees.Totals{
		Wallet: stored.Wallet,
		Gross:  nonNil(stored.Gross),
		Fee:    nonNil(stored.Fee),
		Net:    nonNil(stored.Net),
	}
}

// FeesGetTotals loads the transfer-fee totals routed to wallet.
func (m *Manager) FeesGetTotals(wallet [20]byte) (*fees.Totals, bool, error) {
	var stored storedFeeTotals
	ok, err := m.KVGet(feeTotalsKey(wallet), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("fees: load totals: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	record := stored.toTotals()
	return &record, true, nil
}

// FeesAccumulateTotals adds one transfer to the totals of wallet.
func (m *Manager) FeesAccumulateTotals(wallet [20]byte, gross, fee, net *big.Int) error {
	record, ok, err := m.FeesGetTotals(wallet)
	if err != nil {
		return err
	}
	if !ok {
		record = &fees.Totals{Wallet: wallet, Gross: big.NewInt(0), Fee: big.NewInt(0), Net: big.NewInt(0)}
		if err := m.KVAppend(feeTotalsIndexKeyRaw, wallet[:]); err != nil {
			return fmt.Errorf("fees: update totals index: %w", err)
		}
	}
	stored := &storedFeeTotals{
		Wallet: wallet,
		Gross:  new(big.Int).Add(record.Gross, nonNil(gross)),
		Fee:    new(big.Int).Add(record.Fee, nonNil(fee)),
		Net:    new(big.Int).Add(record.Net, nonNil(net)),
	}
	if err := m.KVPut(feeTotalsKey(wallet), stored); err != nil {
		return fmt.Errorf("fees: persist totals: %w", err)
	}
	return nil
}

// FeesListTotals returns the totals of every wallet that ever collected a fee.
func (m *Manager) FeesListTotals() ([]fees.Totals, error) {
	var wallets [][]byte
	if err := m.KVGetList(feeTotalsIndexKeyRaw, &wallets); err != nil {
		return nil, fmt.Errorf("fees: load totals index: %w", err)
	}
	out := make([]fees.Totals, 0, len(wallets))
	for _, raw := range wallets {
		if len(raw) != 20 {
			continue
		}
		var wallet [20]byte
		copy(wallet[:], raw)
		record, ok, err := m.FeesGetTotals(wallet)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *record)
		}
	}
	return out, nil
}
