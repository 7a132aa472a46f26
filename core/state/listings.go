package state

import (
	"fmt"
	"math/big"

	"pacochain/native/harberger"
)

type storedListing struct {
	ID                   uint64
	Owner                [20]byte
	StatedPrice          *big.Int
	Bond                 *big.Int
	LastAccrual          uint64
	LiquidationStartedAt uint64
	FeeRemainder         *big.Int
	PendingFees          *big.Int
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newStoredListing(l *harberger.Listing) (*storedListing, error) {
	for name, v := range map[string]*big.Int{
		"stated price":  l.StatedPrice,
		"bond":          l.Bond,
		"fee remainder": l.FeeRemainder,
		"pending fees":  l.PendingFees,
	} {
		if v != nil && v.Sign() < 0 {
			return nil, fmt.Errorf("listing: negative %s", name)
		}
	}
	return &storedListing{
		ID:                   l.ID,
		Owner:                l.Owner,
		StatedPrice:          nonNil(l.StatedPrice),
		Bond:                 nonNil(l.Bond),
		LastAccrual:          l.LastAccrual,
		LiquidationStartedAt: l.LiquidationStartedAt,
		FeeRemainder:         nonNil(l.FeeRemainder),
		PendingFees:          nonNil(l.PendingFees),
	}, nil
}

func (s *storedListing) toListing() *harberger.Listing {
	return &harberger.Listing{
		ID:                   s.ID,
		Owner:                s.Owner,
		StatedPrice:          nonNil(s.StatedPrice),
		Bond:                 nonNil(s.Bond),
		LastAccrual:          s.LastAccrual,
		LiquidationStartedAt: s.LiquidationStartedAt,
		FeeRemainder:         nonNil(s.FeeRemainder),
		PendingFees:          nonNil(s.PendingFees),
	}
}

// HarbergerListingGet loads the listing of an asset.
func (m *Manager) HarbergerListingGet(id uint64) (*harberger.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet(ListingKey(id), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("listing: load %d: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toListing(), true, nil
}

// HarbergerListingPut persists a listing.
func (m *Manager) HarbergerListingPut(l *harberger.Listing) error {
	if l == nil {
		return fmt.Errorf("listing: nil listing")
	}
	if l.ID == 0 {
		return fmt.Errorf("listing: id required")
	}
	stored, err := newStoredListing(l)
	if err != nil {
		return err
	}
	return m.KVPut(ListingKey(l.ID), stored)
}

// HarbergerNextAssetID reserves the next sequential asset id, starting at 1.
func (m *Manager) HarbergerNextAssetID() (uint64, error) {
	var last uint64
	if _, err := m.KVGet(listingSeqKey, &last); err != nil {
		return 0, fmt.Errorf("listing: load sequence: %w", err)
	}
	next := last + 1
	if err := m.KVPut(listingSeqKey, next); err != nil {
		return 0, fmt.Errorf("listing: store sequence: %w", err)
	}
	return next, nil
}

// HarbergerSaleActive reports whether minting is open.
func (m *Manager) HarbergerSaleActive() (bool, error) {
	var active bool
	if _, err := m.KVGet(saleActiveKey, &active); err != nil {
		return false, fmt.Errorf("params: load sale flag: %w", err)
	}
	return active, nil
}

// SetHarbergerSaleActive toggles minting.
func (m *Manager) SetHarbergerSaleActive(active bool) error {
	return m.KVPut(saleActiveKey, active)
}
