package state

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrRegistryOwnerMismatch is returned when a custody move names the wrong
// current owner.
var ErrRegistryOwnerMismatch = errors.New("registry: owner mismatch")

// RegistryMint records custody of a new asset and appends it to the global
// enumeration.
func (m *Manager) RegistryMint(id uint64, owner [20]byte) error {
	if ok, err := m.KVGet(registryOwnerKey(id), nil); err != nil {
		return fmt.Errorf("registry: load owner: %w", err)
	} else if ok {
		return fmt.Errorf("registry: asset %d already minted", id)
	}
	supply, err := m.RegistryTotalSupply()
	if err != nil {
		return err
	}
	if err := m.KVPut(registryIndexKey(supply), id); err != nil {
		return fmt.Errorf("registry: store index: %w", err)
	}
	if err := m.KVPut(registrySupplyKey, supply+1); err != nil {
		return fmt.Errorf("registry: store supply: %w", err)
	}
	if err := m.KVPut(registryOwnerKey(id), owner); err != nil {
		return fmt.Errorf("registry: store owner: %w", err)
	}
	return m.KVAppend(registryHoldingsKey(owner), uint64Bytes(id))
}

// RegistryMove transfers custody of asset id from one account to another.
func (m *Manager) RegistryMove(id uint64, from, to [20]byte) error {
	current, ok, err := m.RegistryOwnerOf(id)
	if err != nil {
		return err
	}
	if !ok || current != from {
		return fmt.Errorf("%w: asset %d", ErrRegistryOwnerMismatch, id)
	}
	if from == to {
		return nil
	}
	if err := m.KVPut(registryOwnerKey(id), to); err != nil {
		return fmt.Errorf("registry: store owner: %w", err)
	}
	if err := m.KVRemove(registryHoldingsKey(from), uint64Bytes(id)); err != nil {
		return err
	}
	return m.KVAppend(registryHoldingsKey(to), uint64Bytes(id))
}

// RegistryOwnerOf returns the custodian of asset id.
func (m *Manager) RegistryOwnerOf(id uint64) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := m.KVGet(registryOwnerKey(id), &owner)
	if err != nil {
		return [20]byte{}, false, fmt.Errorf("registry: load owner: %w", err)
	}
	return owner, ok, nil
}

// RegistryBalanceOf returns the number of assets held by owner.
func (m *Manager) RegistryBalanceOf(owner [20]byte) (uint64, error) {
	ids, err := m.RegistryTokensOfOwner(owner)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// RegistryTokensOfOwner lists the asset ids held by owner in acquisition order.
func (m *Manager) RegistryTokensOfOwner(owner [20]byte) ([]uint64, error) {
	var raw [][]byte
	if err := m.KVGetList(registryHoldingsKey(owner), &raw); err != nil {
		return nil, fmt.Errorf("registry: load holdings: %w", err)
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// RegistryTotalSupply returns the number of minted assets.
func (m *Manager) RegistryTotalSupply() (uint64, error) {
	var supply uint64
	if _, err := m.KVGet(registrySupplyKey, &supply); err != nil {
		return 0, fmt.Errorf("registry: load supply: %w", err)
	}
	return supply, nil
}

// RegistryTokenByIndex returns the asset id at position index of the global
// enumeration.
func (m *Manager) RegistryTokenByIndex(index uint64) (uint64, error) {
	supply, err := m.RegistryTotalSupply()
	if err != nil {
		return 0, err
	}
	if index >= supply {
		return 0, fmt.Errorf("registry: index %d out of range (supply %d)", index, supply)
	}
	var id uint64
	if _, err := m.KVGet(registryIndexKey(index), &id); err != nil {
		return 0, fmt.Errorf("registry: load index: %w", err)
	}
	return id, nil
}
