package harberger

import (
	"fmt"
	"math/big"
)

// ReapFeesForAssetIDs settles accrual for every id and moves the pending fees
// of the whole batch from the vault to the treasury in a single transfer. An
// unknown id aborts the batch. Duplicate ids are reaped once.
func (e *Engine) ReapFeesForAssetIDs(ids []uint64) (*big.Int, error) {
	total := big.NewInt(0)
	if err := e.readyForPayments(); err != nil {
		return total, err
	}
	if len(ids) == 0 {
		return total, nil
	}
	now := e.now()
	seen := make(map[uint64]struct{}, len(ids))
	reaped := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		listing, err := e.load(id, now)
		if err != nil {
			return big.NewInt(0), err
		}
		pending := zeroIfNil(listing.PendingFees)
		if pending.Sign() == 0 {
			continue
		}
		total.Add(total, pending)
		listing.PendingFees = big.NewInt(0)
		if err := e.state.HarbergerListingPut(listing); err != nil {
			return big.NewInt(0), err
		}
		reaped = append(reaped, id)
	}
	if total.Sign() == 0 {
		return total, nil
	}
	if err := e.payments.Transfer(e.params.Vault, e.params.Treasury, total); err != nil {
		return big.NewInt(0), fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
	}
	e.emit(NewFeesReapedEvent(reaped, total, e.params.Treasury))
	return total, nil
}
