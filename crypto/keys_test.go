package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTripBech32(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, "paco1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Raw(), decoded.Raw())
	require.Equal(t, PacoPrefix, decoded.Prefix())
}

func TestParseAddressAcceptsHex(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	raw := addr.Raw()
	require.Equal(t, byte(0xaa), raw[19])

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("  ")
	require.Error(t, err)
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("paco/vault")
	b := ModuleAddress("paco/vault")
	c := ModuleAddress("paco/treasury")
	require.Equal(t, a.Raw(), b.Raw())
	require.NotEqual(t, a.Raw(), c.Raw())
	require.Equal(t, ModulePrefix, a.Prefix())
	require.False(t, a.IsZero())
}
