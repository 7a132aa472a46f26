package harberger

import (
	"math/big"
	"testing"
)

func TestDecayedPriceCurve(t *testing.T) {
	stated := big.NewInt(1_000_000_000)
	const h = DefaultHalfLifeSeconds

	if got := decayedPrice(stated, 0, h); got.Cmp(stated) != 0 {
		t.Fatalf("decay(0) should be identity, got %s", got)
	}
	if got := decayedPrice(stated, h, h); got.Cmp(big.NewInt(499_999_999)) != 0 {
		t.Fatalf("decay(half life) should sit just below half, got %s", got)
	}
	if got := decayedPrice(stated, 2*h, h); got.Cmp(big.NewInt(249_999_999)) != 0 {
		t.Fatalf("decay(two half lives) should sit just below a quarter, got %s", got)
	}
	if got := decayedPrice(stated, 1_000*h, h); got.Sign() != 0 {
		t.Fatalf("expected full decay to zero, got %s", got)
	}

	prev := new(big.Int).Set(stated)
	for elapsed := uint64(1); elapsed < 6*h; elapsed += 3_601 {
		got := decayedPrice(stated, elapsed, h)
		if got.Cmp(prev) > 0 {
			t.Fatalf("price increased at t=%d: %s > %s", elapsed, got, prev)
		}
		if got.Cmp(stated) >= 0 {
			t.Fatalf("price at t=%d not below stated", elapsed)
		}
		prev = got
	}
}

func TestDecayedPriceSmallValues(t *testing.T) {
	if got := decayedPrice(big.NewInt(1), 1, DefaultHalfLifeSeconds); got.Sign() != 0 {
		t.Fatalf("one unit should decay to zero immediately, got %s", got)
	}
	if got := decayedPrice(big.NewInt(0), 10, DefaultHalfLifeSeconds); got.Sign() != 0 {
		t.Fatalf("zero price must stay zero")
	}
}

func TestAccrueZeroElapsedIsNoop(t *testing.T) {
	params := DefaultParams()
	l := &Listing{StatedPrice: big.NewInt(100), Bond: big.NewInt(10), LastAccrual: 50}
	collected, started := accrue(l, 50, params)
	if collected.Sign() != 0 || started {
		t.Fatalf("expected no-op accrual")
	}
	collected, started = accrue(l, 40, params)
	if collected.Sign() != 0 || started || l.LastAccrual != 50 {
		t.Fatalf("backwards time must not move accrual")
	}
}

func TestAccrueClampsAtZero(t *testing.T) {
	params := DefaultParams()
	l := &Listing{StatedPrice: big.NewInt(1_000), Bond: big.NewInt(1), LastAccrual: 0}
	collected, started := accrue(l, DefaultSecondsPerYear, params)
	if collected.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("collected %s, expected the whole bond", collected)
	}
	if !started || l.LiquidationStartedAt != DefaultSecondsPerYear {
		t.Fatalf("liquidation not stamped")
	}
	if l.Bond.Sign() != 0 || l.FeeRemainder.Sign() != 0 {
		t.Fatalf("bond %s remainder %s", l.Bond, l.FeeRemainder)
	}
	_, started = accrue(l, 2*DefaultSecondsPerYear, params)
	if started || l.LiquidationStartedAt != DefaultSecondsPerYear {
		t.Fatalf("liquidation must only start once")
	}
}
