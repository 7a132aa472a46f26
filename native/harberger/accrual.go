package harberger

import "math/big"

// feeDenominator returns 10000 * SecondsPerYear.
func feeDenominator(p Params) *big.Int {
	denom := new(big.Int).SetUint64(p.SecondsPerYear)
	return denom.Mul(denom, big.NewInt(BasisPoints))
}

// accrue settles the holding fee for the interval [LastAccrual, now]. The fee
// is linear in the stated price and elapsed time. The collected amount is
// moved from the bond into PendingFees and is capped by the bond. started
// reports that this call exhausted the bond and stamped the liquidation start.
// A zero or negative interval leaves the listing untouched.
func accrue(l *Listing, now uint64, p Params) (collected *big.Int, started bool) {
	collected = big.NewInt(0)
	if l == nil || now <= l.LastAccrual {
		return collected, false
	}
	elapsed := now - l.LastAccrual
	l.LastAccrual = now

	bond := zeroIfNil(l.Bond)
	remainder := zeroIfNil(l.FeeRemainder)
	pending := zeroIfNil(l.PendingFees)

	numerator := new(big.Int).Set(zeroIfNil(l.StatedPrice))
	numerator.Mul(numerator, new(big.Int).SetUint64(p.FeeRateBps))
	numerator.Mul(numerator, new(big.Int).SetUint64(elapsed))
	numerator.Add(numerator, remainder)

	fee, rem := new(big.Int).QuoRem(numerator, feeDenominator(p), new(big.Int))

	if fee.Cmp(bond) >= 0 {
		collected.Set(bond)
	} else {
		collected.Set(fee)
	}
	l.Bond = new(big.Int).Sub(bond, collected)
	l.PendingFees = new(big.Int).Add(pending, collected)
	l.FeeRemainder = rem

	if l.Bond.Sign() == 0 {
		// Nothing is left to charge against.
		l.FeeRemainder = big.NewInt(0)
		if l.LiquidationStartedAt == 0 && fee.Sign() > 0 {
			l.LiquidationStartedAt = now
			started = true
		}
	}
	return collected, started
}
