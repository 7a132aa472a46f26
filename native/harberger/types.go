package harberger

import (
	"math/big"
)

const (
	// BasisPoints is the denominator for every *Bps parameter.
	BasisPoints = 10_000
	// DefaultFeeRateBps charges 20% of the stated price per year.
	DefaultFeeRateBps = 2_000
	// DefaultMinBondBps requires the bond to cover 10% of the stated price.
	DefaultMinBondBps = 1_000
	// DefaultHalfLifeSeconds halves the liquidation price every two days.
	DefaultHalfLifeSeconds = 2 * 24 * 60 * 60
	// DefaultSecondsPerYear uses a 365 day year.
	DefaultSecondsPerYear = 365 * 24 * 60 * 60
)

// Listing is the bonded-ownership record of a single asset.
type Listing struct {
	ID                   uint64
	Owner                [20]byte
	StatedPrice          *big.Int
	Bond                 *big.Int
	LastAccrual          uint64
	LiquidationStartedAt uint64
	// FeeRemainder is the undivided fee numerator left over by the last
	// accrual. It is always below 10000*SecondsPerYear.
	FeeRemainder *big.Int
	// PendingFees were collected from the bond and wait for the reaper.
	PendingFees *big.Int
}

// Liquidating reports whether the bond has been exhausted.
func (l *Listing) Liquidating() bool {
	return l != nil && l.LiquidationStartedAt != 0
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.StatedPrice = cloneBigInt(l.StatedPrice)
	clone.Bond = cloneBigInt(l.Bond)
	clone.FeeRemainder = cloneBigInt(l.FeeRemainder)
	clone.PendingFees = cloneBigInt(l.PendingFees)
	return &clone
}

// EscrowIntent records a recipient's consent to receive an asset together with
// the price and bond adjustments it accepts.
type EscrowIntent struct {
	AssetID    uint64
	Recipient  [20]byte
	PriceDelta *big.Int
	BondDelta  *big.Int
	Expiry     uint64
	CreatedAt  uint64
}

// Clone returns a deep copy of the intent.
func (i *EscrowIntent) Clone() *EscrowIntent {
	if i == nil {
		return nil
	}
	clone := *i
	clone.PriceDelta = cloneBigInt(i.PriceDelta)
	clone.BondDelta = cloneBigInt(i.BondDelta)
	return &clone
}

// Quote is the read-side view of a listing after accrual.
type Quote struct {
	Listing      *Listing
	CurrentPrice *big.Int
}

// Params configures a deployment. FeeRateBps is fixed for the lifetime of a
// ledger.
type Params struct {
	FeeRateBps     uint64
	MinBondBps     uint64
	HalfLife       uint64
	SecondsPerYear uint64
	Treasury       [20]byte
	Vault          [20]byte
}

// DefaultParams returns the production parameters without module accounts.
func DefaultParams() Params {
	return Params{
		FeeRateBps:     DefaultFeeRateBps,
		MinBondBps:     DefaultMinBondBps,
		HalfLife:       DefaultHalfLifeSeconds,
		SecondsPerYear: DefaultSecondsPerYear,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.FeeRateBps == 0 {
		return errInvalidParams("fee rate must be positive")
	}
	if p.MinBondBps == 0 || p.MinBondBps > BasisPoints {
		return errInvalidParams("min bond bps must be within (0, 10000]")
	}
	if p.HalfLife == 0 {
		return errInvalidParams("half life must be positive")
	}
	if p.SecondsPerYear == 0 {
		return errInvalidParams("seconds per year must be positive")
	}
	if p.Vault == ([20]byte{}) {
		return errInvalidParams("vault address required")
	}
	if p.Treasury == ([20]byte{}) {
		return errInvalidParams("treasury address required")
	}
	if p.Vault == p.Treasury {
		return errInvalidParams("vault and treasury must differ")
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
