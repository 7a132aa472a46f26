package state

import (
	"fmt"
	"math/big"

	"pacochain/native/harberger"
)

// storedIntent keeps signed deltas as magnitude plus sign since RLP only
// encodes non-negative integers.
type storedIntent struct {
	AssetID       uint64
	Recipient     [20]byte
	PriceMag      *big.Int
	PriceNegative bool
	BondMag       *big.Int
	BondNegative  bool
	Expiry        uint64
	CreatedAt     uint64
}

func splitSigned(v *big.Int) (*big.Int, bool) {
	if v == nil {
		return big.NewInt(0), false
	}
	return new(big.Int).Abs(v), v.Sign() < 0
}

func joinSigned(mag *big.Int, negative bool) *big.Int {
	out := nonNil(mag)
	if negative {
		out.Neg(out)
	}
	return out
}

func newStoredIntent(i *harberger.EscrowIntent) *storedIntent {
	priceMag, priceNeg := splitSigned(i.PriceDelta)
	bondMag, bondNeg := splitSigned(i.BondDelta)
	return &storedIntent{
		AssetID:       i.AssetID,
		Recipient:     i.Recipient,
		PriceMag:      priceMag,
		PriceNegative: priceNeg,
		BondMag:       bondMag,
		BondNegative:  bondNeg,
		Expiry:        i.Expiry,
		CreatedAt:     i.CreatedAt,
	}
}

func (s *storedIntent) toIntent() *harberger.EscrowIntent {
	return &harberger.EscrowIntent{
		AssetID:    s.AssetID,
		Recipient:  s.Recipient,
		PriceDelta: joinSigned(s.PriceMag, s.PriceNegative),
		BondDelta:  joinSigned(s.BondMag, s.BondNegative),
		Expiry:     s.Expiry,
		CreatedAt:  s.CreatedAt,
	}
}

// HarbergerIntentGet loads the intent of recipient for asset id. Expiry is not
// evaluated here.
func (m *Manager) HarbergerIntentGet(id uint64, recipient [20]byte) (*harberger.EscrowIntent, bool, error) {
	var stored storedIntent
	ok, err := m.KVGet(IntentKey(id, recipient), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("intent: load: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toIntent(), true, nil
}

// HarbergerIntentPut stores an intent, replacing any previous one of the same
// recipient.
func (m *Manager) HarbergerIntentPut(i *harberger.EscrowIntent) error {
	if i == nil {
		return fmt.Errorf("intent: nil intent")
	}
	if err := m.KVPut(IntentKey(i.AssetID, i.Recipient), newStoredIntent(i)); err != nil {
		return fmt.Errorf("intent: store: %w", err)
	}
	return m.KVAppend(intentIndexKey(i.AssetID), i.Recipient[:])
}

// HarbergerIntentDelete removes an intent. Missing intents are ignored.
func (m *Manager) HarbergerIntentDelete(id uint64, recipient [20]byte) error {
	if err := m.KVDelete(IntentKey(id, recipient)); err != nil {
		return fmt.Errorf("intent: delete: %w", err)
	}
	return m.KVRemove(intentIndexKey(id), recipient[:])
}

// HarbergerIntentsForAsset lists every stored intent for asset id, expired or
// not, in insertion order.
func (m *Manager) HarbergerIntentsForAsset(id uint64) ([]*harberger.EscrowIntent, error) {
	var recipients [][]byte
	if err := m.KVGetList(intentIndexKey(id), &recipients); err != nil {
		return nil, fmt.Errorf("intent: load index: %w", err)
	}
	out := make([]*harberger.EscrowIntent, 0, len(recipients))
	for _, raw := range recipients {
		if len(raw) != 20 {
			continue
		}
		var recipient [20]byte
		copy(recipient[:], raw)
		intent, ok, err := m.HarbergerIntentGet(id, recipient)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, intent)
		}
	}
	return out, nil
}
