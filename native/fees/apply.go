package fees

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MaxTransferFeeBps caps the transfer fee at 10%.
const MaxTransferFeeBps = 1_000

// Policy describes the fee the payment token levies on transfers. The fee is
// withheld from the amount the recipient receives and routed to Collector.
type Policy struct {
	TransferFeeBps uint32
	Collector      [20]byte
	Exempt         map[[20]byte]struct{}
}

// Clone returns a deep copy of the policy to avoid aliasing the exempt set.
func (p Policy) Clone() Policy {
	clone := Policy{TransferFeeBps: p.TransferFeeBps, Collector: p.Collector}
	clone.Exempt = make(map[[20]byte]struct{}, len(p.Exempt))
	for addr := range p.Exempt {
		clone.Exempt[addr] = struct{}{}
	}
	return clone
}

// WithExempt returns a copy of the policy with the supplied accounts exempt.
func (p Policy) WithExempt(accounts ...[20]byte) Policy {
	clone := p.Clone()
	for _, addr := range accounts {
		clone.Exempt[addr] = struct{}{}
	}
	return clone
}

// IsExempt reports whether a transfer touching addr is fee free.
func (p Policy) IsExempt(addr [20]byte) bool {
	if addr == p.Collector {
		return true
	}
	_, ok := p.Exempt[addr]
	return ok
}

// ApplyInput captures a single transfer.
type ApplyInput struct {
	From   [20]byte
	To     [20]byte
	Gross  *big.Int
	Policy Policy
}

// ApplyResult splits the gross amount into the fee and the net amount
// credited to the recipient.
type ApplyResult struct {
	Fee       *big.Int
	Net       *big.Int
	Collector [20]byte
	Exempt    bool
}

// Apply evaluates the policy for one transfer. Transfers with a zero amount, a
// disabled fee or an exempt endpoint pass through untouched.
func Apply(input ApplyInput) ApplyResult {
	result := ApplyResult{Fee: big.NewInt(0), Collector: input.Policy.Collector}
	if input.Gross != nil {
		result.Net = new(big.Int).Set(input.Gross)
	} else {
		result.Net = big.NewInt(0)
	}
	if result.Net.Sign() <= 0 || input.Policy.TransferFeeBps == 0 {
		return result
	}
	if input.Policy.IsExempt(input.From) || input.Policy.IsExempt(input.To) {
		result.Exempt = true
		return result
	}
	gross, overflow := uint256.FromBig(result.Net)
	if overflow {
		return result
	}
	fee := new(uint256.Int).Mul(gross, uint256.NewInt(uint64(input.Policy.TransferFeeBps)))
	fee.Div(fee, uint256.NewInt(10_000))
	if fee.IsZero() {
		return result
	}
	if fee.Cmp(gross) >= 0 {
		result.Fee = gross.ToBig()
		result.Net = big.NewInt(0)
		return result
	}
	result.Fee = fee.ToBig()
	result.Net = new(uint256.Int).Sub(gross, fee).ToBig()
	return result
}

// Totals aggregates fee accounting per collecting wallet.
type Totals struct {
	Wallet [20]byte
	Gross  *big.Int
	Fee    *big.Int
	Net    *big.Int
}

// Clone returns a copy of the totals structure with duplicated big.Int values.
func (t Totals) Clone() Totals {
	clone := Totals{Wallet: t.Wallet}
	if t.Gross != nil {
		clone.Gross = new(big.Int).Set(t.Gross)
	}
	if t.Fee != nil {
		clone.Fee = new(big.Int).Set(t.Fee)
	}
	if t.Net != nil {
		clone.Net = new(big.Int).Set(t.Net)
	}
	return clone
}
