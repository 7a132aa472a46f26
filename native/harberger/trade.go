package harberger

import (
	"fmt"
	"math/big"
)

// Mint creates a listing owned by caller and pulls the bond into the vault.
func (e *Engine) Mint(caller [20]byte, statedPrice, bond *big.Int) (uint64, error) {
	if err := e.readyForPayments(); err != nil {
		return 0, err
	}
	active, err := e.state.HarbergerSaleActive()
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, ErrSaleNotActive
	}
	if err := e.checkCaller("caller", caller); err != nil {
		return 0, err
	}
	if err := validateAmount("stated price", statedPrice); err != nil {
		return 0, err
	}
	if statedPrice.Sign() == 0 {
		return 0, fmt.Errorf("%w: stated price must be positive", ErrInvalidAmount)
	}
	if err := validateAmount("bond", bond); err != nil {
		return 0, err
	}
	if err := e.checkBondFraction(statedPrice, bond); err != nil {
		return 0, err
	}

	id, err := e.state.HarbergerNextAssetID()
	if err != nil {
		return 0, err
	}
	listing := &Listing{
		ID:           id,
		Owner:        caller,
		StatedPrice:  new(big.Int).Set(statedPrice),
		Bond:         new(big.Int).Set(bond),
		LastAccrual:  e.now(),
		FeeRemainder: big.NewInt(0),
		PendingFees:  big.NewInt(0),
	}
	if err := e.state.HarbergerListingPut(listing); err != nil {
		return 0, err
	}
	if err := e.state.RegistryMint(id, caller); err != nil {
		return 0, err
	}
	if err := e.pull(caller, bond); err != nil {
		return 0, err
	}
	e.emit(NewMintedEvent(listing))
	return id, nil
}

// AlterStatedPriceAndBond applies owner-requested deltas to a listing.
func (e *Engine) AlterStatedPriceAndBond(caller [20]byte, id uint64, priceDelta, bondDelta *big.Int) (*Listing, error) {
	if err := e.readyForPayments(); err != nil {
		return nil, err
	}
	if err := e.checkCaller("caller", caller); err != nil {
		return nil, err
	}
	if err := validateDelta("price delta", priceDelta); err != nil {
		return nil, err
	}
	if err := validateDelta("bond delta", bondDelta); err != nil {
		return nil, err
	}
	if priceDelta.Sign() == 0 && bondDelta.Sign() == 0 {
		return nil, fmt.Errorf("%w: both deltas are zero", ErrInvalidDelta)
	}
	now := e.now()
	listing, err := e.load(id, now)
	if err != nil {
		return nil, err
	}
	if listing.Owner != caller {
		return nil, fmt.Errorf("%w: only the owner may alter asset %d", ErrUnauthorized, id)
	}
	wasLiquidating, err := e.applyDeltas(listing, priceDelta, bondDelta)
	if err != nil {
		return nil, err
	}
	if err := e.state.HarbergerListingPut(listing); err != nil {
		return nil, err
	}
	switch bondDelta.Sign() {
	case 1:
		err = e.pull(caller, bondDelta)
	case -1:
		err = e.payout(caller, new(big.Int).Neg(bondDelta))
	}
	if err != nil {
		return nil, err
	}
	e.emit(NewAlteredEvent(listing, priceDelta, bondDelta))
	if wasLiquidating {
		e.emit(NewLiquidationClearedEvent(listing))
	}
	return listing.Clone(), nil
}

// applyDeltas mutates an accrued listing in place. The listing is left
// untouched when validation fails. A successful application clears any
// liquidation and reports whether one was cleared.
func (e *Engine) applyDeltas(listing *Listing, priceDelta, bondDelta *big.Int) (bool, error) {
	newPrice := new(big.Int).Add(zeroIfNil(listing.StatedPrice), priceDelta)
	if newPrice.Sign() <= 0 {
		return false, fmt.Errorf("%w: resulting price %s must be positive", ErrInvalidDelta, newPrice)
	}
	newBond := new(big.Int).Add(zeroIfNil(listing.Bond), bondDelta)
	if newBond.Sign() < 0 {
		return false, fmt.Errorf("%w: bond withdrawal exceeds bond %s", ErrInvalidDelta, listing.Bond)
	}
	if err := validateAmount("stated price", newPrice); err != nil {
		return false, err
	}
	if err := validateAmount("bond", newBond); err != nil {
		return false, err
	}
	if err := e.checkBondFraction(newPrice, newBond); err != nil {
		return false, err
	}
	wasLiquidating := listing.Liquidating()
	listing.StatedPrice = newPrice
	listing.Bond = newBond
	if wasLiquidating {
		listing.LiquidationStartedAt = 0
		listing.FeeRemainder = big.NewInt(0)
	}
	return wasLiquidating, nil
}

// BuyToken force-purchases an asset at its current price. A non-nil maxPrice
// aborts the purchase when the current price exceeds it. The previous owner's
// bond is credited to their refund entry.
func (e *Engine) BuyToken(caller [20]byte, id uint64, newStatedPrice, newBond, maxPrice *big.Int) (*Listing, *big.Int, error) {
	if err := e.readyForPayments(); err != nil {
		return nil, nil, err
	}
	if err := e.checkCaller("caller", caller); err != nil {
		return nil, nil, err
	}
	if err := validateAmount("stated price", newStatedPrice); err != nil {
		return nil, nil, err
	}
	if newStatedPrice.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: stated price must be positive", ErrInvalidAmount)
	}
	if err := validateAmount("bond", newBond); err != nil {
		return nil, nil, err
	}
	if maxPrice != nil {
		if err := validateAmount("max price", maxPrice); err != nil {
			return nil, nil, err
		}
	}
	now := e.now()
	listing, err := e.load(id, now)
	if err != nil {
		return nil, nil, err
	}
	if listing.Owner == caller {
		return nil, nil, fmt.Errorf("%w: caller already owns asset %d", ErrUnauthorized, id)
	}
	price := currentPrice(listing, now, e.params)
	if maxPrice != nil && price.Cmp(maxPrice) > 0 {
		return nil, nil, fmt.Errorf("%w: price %s above limit %s", ErrPriceLimitExceeded, price, maxPrice)
	}
	if err := e.checkBondFraction(newStatedPrice, newBond); err != nil {
		return nil, nil, err
	}

	seller := listing.Owner
	displaced := zeroIfNil(listing.Bond)
	refundBalance, err := e.creditRefund(seller, displaced)
	if err != nil {
		return nil, nil, err
	}

	listing.Owner = caller
	listing.StatedPrice = new(big.Int).Set(newStatedPrice)
	listing.Bond = new(big.Int).Set(newBond)
	listing.LastAccrual = now
	listing.LiquidationStartedAt = 0
	listing.FeeRemainder = big.NewInt(0)
	if err := e.state.HarbergerListingPut(listing); err != nil {
		return nil, nil, err
	}
	if err := e.state.RegistryMove(id, seller, caller); err != nil {
		return nil, nil, err
	}

	if price.Sign() > 0 {
		if err := e.payments.TransferFrom(e.params.Vault, caller, seller, price); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPaymentTransferFailed, err)
		}
	}
	if err := e.pull(caller, newBond); err != nil {
		return nil, nil, err
	}

	if displaced.Sign() > 0 {
		e.emit(NewRefundCreditedEvent(id, seller, displaced, refundBalance))
	}
	e.emit(NewSoldEvent(listing, seller, price))
	return listing.Clone(), price, nil
}
