package genesis

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pacochain/crypto"
)

func TestParseGenesisSpec(t *testing.T) {
	alice := crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{1}).String()
	bob := crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{2}).String()
	raw := []byte(fmt.Sprintf(`{"genesisTime":"2025-01-01T00:00:00Z","saleActive":true,"alloc":{%q:"1000",%q:"5"}}`, bob, alice))

	spec, err := ParseGenesisSpec(raw)
	require.NoError(t, err)
	require.True(t, spec.SaleActive)
	require.Equal(t, 2025, spec.GenesisTimestamp().Year())

	allocs := spec.Allocations()
	require.Len(t, allocs, 2)
	require.Equal(t, [20]byte{1}, allocs[0].Account)
	require.Equal(t, int64(5), allocs[0].Amount.Int64())
}

func TestParseGenesisSpecRejectsBadInput(t *testing.T) {
	alice := crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{1}).String()
	cases := map[string]string{
		"unknown field":  `{"bogus":1}`,
		"bad address":    `{"alloc":{"nope":"1"}}`,
		"negative":       fmt.Sprintf(`{"alloc":{%q:"-1"}}`, alice),
		"not a number":   fmt.Sprintf(`{"alloc":{%q:"ten"}}`, alice),
		"bad timestamp":  `{"genesisTime":"yesterday"}`,
		"foreign prefix": `{"alloc":{"cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu":"1"}}`,
	}
	for name, doc := range cases {
		_, err := ParseGenesisSpec([]byte(doc))
		require.Error(t, err, name)
	}
}

func TestLoadGenesisSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"saleActive":false}`), 0o600))
	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.False(t, spec.SaleActive)
	require.Empty(t, spec.Allocations())

	_, err = LoadGenesisSpec("")
	require.Error(t, err)
}
