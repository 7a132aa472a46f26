package harberger

import (
	"fmt"
	"math"
	"math/big"
)

var fixedPointOne = big.NewInt(1_000_000_000_000_000_000)

// currentPrice returns the transactable price of an already accrued listing.
func currentPrice(l *Listing, now uint64, p Params) *big.Int {
	stated := zeroIfNil(l.StatedPrice)
	if !l.Liquidating() || now <= l.LiquidationStartedAt {
		return new(big.Int).Set(stated)
	}
	return decayedPrice(stated, now-l.LiquidationStartedAt, p.HalfLife)
}

// decayedPrice evaluates stated * 2^(-elapsed/halfLife) and returns the
// largest integer strictly below it, floored at zero. Whole halvings are exact
// shifts; the fractional part is applied in 1e18 fixed point.
func decayedPrice(stated *big.Int, elapsed, halfLife uint64) *big.Int {
	if stated == nil || stated.Sign() <= 0 {
		return big.NewInt(0)
	}
	if elapsed == 0 || halfLife == 0 {
		return new(big.Int).Set(stated)
	}
	halvings := elapsed / halfLife
	if halvings > uint64(stated.BitLen()) {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(stated, decayFactor(elapsed%halfLife, halfLife))
	denominator := new(big.Int).Lsh(fixedPointOne, uint(halvings))

	price, rem := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if rem.Sign() == 0 {
		price.Sub(price, big.NewInt(1))
	}
	if price.Sign() < 0 {
		return big.NewInt(0)
	}
	return price
}

// decayFactor returns 2^(-frac/halfLife) scaled by 1e18, clamped to (0, 1e18].
func decayFactor(frac, halfLife uint64) *big.Int {
	if frac == 0 {
		return new(big.Int).Set(fixedPointOne)
	}
	f := math.Exp2(-float64(frac) / float64(halfLife))
	scaled, _ := new(big.Float).Mul(big.NewFloat(f), new(big.Float).SetInt(fixedPointOne)).Int(nil)
	if scaled.Cmp(fixedPointOne) > 0 {
		return new(big.Int).Set(fixedPointOne)
	}
	if scaled.Sign() <= 0 {
		return big.NewInt(1)
	}
	return scaled
}

// Quote settles accrual and returns the listing snapshot with its current
// price.
func (e *Engine) Quote(id uint64) (*Quote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	listing, err := e.load(id, now)
	if err != nil {
		return nil, err
	}
	return &Quote{Listing: listing.Clone(), CurrentPrice: currentPrice(listing, now, e.params)}, nil
}

// GetPrice returns the current transactable price.
func (e *Engine) GetPrice(id uint64) (*big.Int, error) {
	q, err := e.Quote(id)
	if err != nil {
		return nil, err
	}
	return q.CurrentPrice, nil
}

// GetStatedPrice returns the owner-declared price.
func (e *Engine) GetStatedPrice(id uint64) (*big.Int, error) {
	q, err := e.Quote(id)
	if err != nil {
		return nil, err
	}
	return q.Listing.StatedPrice, nil
}

// GetBond returns the bond left after accrual.
func (e *Engine) GetBond(id uint64) (*big.Int, error) {
	q, err := e.Quote(id)
	if err != nil {
		return nil, err
	}
	return q.Listing.Bond, nil
}

// GetLiquidationStartedAt returns the liquidation start timestamp or 0.
func (e *Engine) GetLiquidationStartedAt(id uint64) (uint64, error) {
	q, err := e.Quote(id)
	if err != nil {
		return 0, err
	}
	return q.Listing.LiquidationStartedAt, nil
}

// checkBondFraction enforces bond*10000 >= MinBondBps*price.
func (e *Engine) checkBondFraction(price, bond *big.Int) error {
	lhs := new(big.Int).Mul(bond, big.NewInt(BasisPoints))
	rhs := new(big.Int).Mul(price, new(big.Int).SetUint64(e.params.MinBondBps))
	if lhs.Cmp(rhs) < 0 {
		return fmt.Errorf("%w: bond %s for price %s", ErrInsufficientBond, bond, price)
	}
	return nil
}
