package harberger

import (
	"fmt"
	"math/big"
)

// SetEscrowIntent records the recipient's consent to receive asset id along
// with the deltas to apply on transfer. A later call from the same recipient
// replaces the earlier intent.
func (e *Engine) SetEscrowIntent(recipient [20]byte, id uint64, priceDelta, bondDelta *big.Int, expiry uint64) (*EscrowIntent, error) {
	if err := e.readyForPayments(); err != nil {
		return nil, err
	}
	if err := e.checkCaller("recipient", recipient); err != nil {
		return nil, err
	}
	if err := validateDelta("price delta", priceDelta); err != nil {
		return nil, err
	}
	if err := validateDelta("bond delta", bondDelta); err != nil {
		return nil, err
	}
	now := e.now()
	if expiry <= now {
		return nil, fmt.Errorf("%w: expiry %d not after %d", ErrIntentExpiredOrMissing, expiry, now)
	}
	if _, ok, err := e.state.HarbergerListingGet(id); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: asset %d", ErrListingNotFound, id)
	}
	intent := &EscrowIntent{
		AssetID:    id,
		Recipient:  recipient,
		PriceDelta: new(big.Int).Set(priceDelta),
		BondDelta:  new(big.Int).Set(bondDelta),
		Expiry:     expiry,
		CreatedAt:  now,
	}
	if err := e.state.HarbergerIntentPut(intent); err != nil {
		return nil, err
	}
	e.emit(NewIntentSetEvent(intent))
	return intent.Clone(), nil
}

// CancelEscrowIntent removes the recipient's intent for asset id. Cancelling an
// absent intent is a no-op.
func (e *Engine) CancelEscrowIntent(recipient [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	intent, ok, err := e.state.HarbergerIntentGet(id, recipient)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := e.state.HarbergerIntentDelete(id, recipient); err != nil {
		return err
	}
	e.emit(NewIntentCancelledEvent(intent))
	return nil
}

// GetIntent returns the live intent of account for asset id. Expired intents
// read as absent.
func (e *Engine) GetIntent(id uint64, account [20]byte) (*EscrowIntent, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	intent, ok, err := e.state.HarbergerIntentGet(id, account)
	if err != nil || !ok {
		return nil, false, err
	}
	if intent.Expiry <= e.now() {
		return nil, false, nil
	}
	return intent.Clone(), true, nil
}

// IntentsForAsset lists the live intents recorded against asset id.
func (e *Engine) IntentsForAsset(id uint64) ([]*EscrowIntent, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.HarbergerListingGet(id); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: asset %d", ErrListingNotFound, id)
	}
	all, err := e.state.HarbergerIntentsForAsset(id)
	if err != nil {
		return nil, err
	}
	now := e.now()
	live := make([]*EscrowIntent, 0, len(all))
	for _, intent := range all {
		if intent.Expiry > now {
			live = append(live, intent.Clone())
		}
	}
	return live, nil
}

// TransferFrom moves asset id from its owner to a consenting recipient and
// applies the recipient's recorded deltas. The bond stays with the asset; a
// positive bond delta is pulled from the recipient and a negative one is paid
// to the recipient.
func (e *Engine) TransferFrom(caller, from, to [20]byte, id uint64) (*Listing, error) {
	if err := e.readyForPayments(); err != nil {
		return nil, err
	}
	if err := e.checkCaller("caller", caller); err != nil {
		return nil, err
	}
	if caller != from {
		return nil, fmt.Errorf("%w: caller is not the sender", ErrUnauthorized)
	}
	if err := e.checkCaller("recipient", to); err != nil {
		return nil, err
	}
	if to == from {
		return nil, fmt.Errorf("%w: invalid recipient", ErrUnauthorized)
	}
	now := e.now()
	listing, err := e.load(id, now)
	if err != nil {
		return nil, err
	}
	if listing.Owner != from {
		return nil, fmt.Errorf("%w: sender does not own asset %d", ErrUnauthorized, id)
	}
	intent, ok, err := e.state.HarbergerIntentGet(id, to)
	if err != nil {
		return nil, err
	}
	if !ok || intent.Expiry <= now {
		return nil, ErrIntentExpiredOrMissing
	}
	priceDelta := zeroIfNil(intent.PriceDelta)
	bondDelta := zeroIfNil(intent.BondDelta)

	wasLiquidating := false
	if priceDelta.Sign() != 0 || bondDelta.Sign() != 0 {
		wasLiquidating, err = e.applyDeltas(listing, priceDelta, bondDelta)
		if err != nil {
			return nil, err
		}
	}
	if err := e.state.HarbergerIntentDelete(id, to); err != nil {
		return nil, err
	}
	listing.Owner = to
	if err := e.state.HarbergerListingPut(listing); err != nil {
		return nil, err
	}
	if err := e.state.RegistryMove(id, from, to); err != nil {
		return nil, err
	}
	switch bondDelta.Sign() {
	case 1:
		err = e.pull(to, bondDelta)
	case -1:
		err = e.payout(to, new(big.Int).Neg(bondDelta))
	}
	if err != nil {
		return nil, err
	}
	e.emit(NewTransferredEvent(listing, from))
	if wasLiquidating {
		e.emit(NewLiquidationClearedEvent(listing))
	}
	return listing.Clone(), nil
}
