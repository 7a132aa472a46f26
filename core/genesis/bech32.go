package genesis

import (
	"fmt"

	"pacochain/crypto"
)

// ParseBech32Account decodes an account address. Only the account and module
// prefixes are accepted.
func ParseBech32Account(addr string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(addr)
	if err != nil {
		return [20]byte{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	switch decoded.Prefix() {
	case crypto.PacoPrefix, crypto.ModulePrefix:
	default:
		return [20]byte{}, fmt.Errorf("decode bech32 account: unsupported hrp %q", decoded.Prefix())
	}
	return decoded.Raw(), nil
}
