package state

import (
	"encoding/binary"
)

var (
	listingPrefix        = []byte("paco/listing/")
	listingSeqKey        = []byte("paco/listing/seq")
	intentPrefix         = []byte("paco/intent/")
	intentIndexPrefix    = []byte("paco/intent-index/")
	refundPrefix         = []byte("paco/refund/")
	refundIndexKey       = []byte("paco/refund/index")
	registryOwnerPrefix  = []byte("paco/registry/owner/")
	registryHoldingsPfx  = []byte("paco/registry/holdings/")
	registryIndexPrefix  = []byte("paco/registry/index/")
	registrySupplyKey    = []byte("paco/registry/supply")
	saleActiveKey        = []byte("paco/params/sale-active")
	bankBalancePrefix    = []byte("bank/balance/")
	bankAllowancePrefix  = []byte("bank/allowance/")
	bankSupplyKey        = []byte("bank/supply")
	feeTotalsPrefix      = []byte("fees/totals/")
	feeTotalsIndexKeyRaw = []byte("fees/totals/index")
)

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	key := make([]byte, 0, size)
	key = append(key, prefix...)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// ListingKey returns the raw key of an asset listing.
func ListingKey(id uint64) []byte {
	return prefixed(listingPrefix, uint64Bytes(id))
}

// IntentKey returns the raw key of a recipient's intent for an asset.
func IntentKey(id uint64, recipient [20]byte) []byte {
	return prefixed(intentPrefix, uint64Bytes(id), recipient[:])
}

// RefundKey returns the raw key of an account's refund entry.
func RefundKey(account [20]byte) []byte {
	return prefixed(refundPrefix, account[:])
}

func intentIndexKey(id uint64) []byte {
	return prefixed(intentIndexPrefix, uint64Bytes(id))
}

func registryOwnerKey(id uint64) []byte {
	return prefixed(registryOwnerPrefix, uint64Bytes(id))
}

func registryHoldingsKey(owner [20]byte) []byte {
	return prefixed(registryHoldingsPfx, owner[:])
}

func registryIndexKey(index uint64) []byte {
	return prefixed(registryIndexPrefix, uint64Bytes(index))
}

func bankBalanceKey(account [20]byte) []byte {
	return prefixed(bankBalancePrefix, account[:])
}

func bankAllowanceKey(owner, spender [20]byte) []byte {
	return prefixed(bankAllowancePrefix, owner[:], spender[:])
}

func feeTotalsKey(wallet [20]byte) []byte {
	return prefixed(feeTotalsPrefix, wallet[:])
}
