package fees

import (
	"math/big"
	"testing"
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestApplyWithholdsFeeFromRecipient(t *testing.T) {
	policy := Policy{TransferFeeBps: 250, Collector: addr(0xee)}
	result := Apply(ApplyInput{From: addr(1), To: addr(2), Gross: big.NewInt(10_000), Policy: policy})
	if result.Fee.Int64() != 250 || result.Net.Int64() != 9_750 {
		t.Fatalf("unexpected split fee=%s net=%s", result.Fee, result.Net)
	}
	if result.Collector != addr(0xee) {
		t.Fatalf("collector not propagated")
	}
}

func TestApplyExemptions(t *testing.T) {
	vault := addr(0xf0)
	policy := Policy{TransferFeeBps: 500, Collector: addr(0xee)}.WithExempt(vault)

	cases := []struct {
		name     string
		from, to [20]byte
	}{
		{"into vault", addr(1), vault},
		{"out of vault", vault, addr(1)},
		{"to collector", addr(1), addr(0xee)},
	}
	for _, tc := range cases {
		result := Apply(ApplyInput{From: tc.from, To: tc.to, Gross: big.NewInt(1_000), Policy: policy})
		if result.Fee.Sign() != 0 || result.Net.Int64() != 1_000 || !result.Exempt {
			t.Fatalf("%s: expected exemption, got fee=%s net=%s", tc.name, result.Fee, result.Net)
		}
	}
}

func TestApplyNoFeeCases(t *testing.T) {
	policy := Policy{TransferFeeBps: 100}
	if r := Apply(ApplyInput{From: addr(1), To: addr(2), Gross: big.NewInt(99), Policy: policy}); r.Fee.Sign() != 0 {
		t.Fatalf("fee should round down to zero, got %s", r.Fee)
	}
	if r := Apply(ApplyInput{From: addr(1), To: addr(2), Gross: nil, Policy: policy}); r.Net.Sign() != 0 {
		t.Fatalf("nil gross should produce zero net")
	}
	if r := Apply(ApplyInput{From: addr(1), To: addr(2), Gross: big.NewInt(500), Policy: Policy{}}); r.Net.Int64() != 500 {
		t.Fatalf("disabled policy must pass through")
	}
}

func TestPolicyCloneDoesNotAlias(t *testing.T) {
	base := Policy{TransferFeeBps: 10}.WithExempt(addr(1))
	clone := base.WithExempt(addr(2))
	if base.IsExempt(addr(2)) {
		t.Fatalf("clone mutated original exempt set")
	}
	if !clone.IsExempt(addr(1)) {
		t.Fatalf("clone lost exempt entry")
	}
}
