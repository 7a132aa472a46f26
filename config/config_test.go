package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pacochain/crypto"
	"pacochain/native/harberger"
)

var testCollector = crypto.AddressFromRaw(crypto.PacoPrefix, [20]byte{0x42, 19: 0x24}).String()

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.True(t, cfg.Keeper.Enabled)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Harberger, reloaded.Harberger)
	require.Equal(t, cfg.Keeper.Interval, reloaded.Keeper.Interval)
}

func TestLoadParsesTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `ListenAddress = "0.0.0.0:9000"
DataDir = "./data"
GenesisFile = "genesis.json"

[harberger]
FeeRateBps = 500
MinBondBps = 2000
HalfLifeSeconds = 3600
SecondsPerYear = 31536000

[fees]
TransferFeeBps = 25
Collector = "`+testCollector+`"

[keeper]
Enabled = true
Interval = "15m"
BatchSize = 16

[gateway.auth]
Enabled = true
HMACSecret = "topsecret"
Issuer = "paco-test"

[gateway.rate_limits."paco.write"]
RatePerSecond = 2.5
Burst = 4

[pauses]
Harberger = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	require.Equal(t, uint64(500), cfg.Harberger.FeeRateBps)
	require.Equal(t, 15*time.Minute, cfg.Keeper.Interval)
	require.Equal(t, 16, cfg.Keeper.BatchSize)
	require.Equal(t, "scope", cfg.Gateway.Auth.ScopeClaim)
	require.Equal(t, RateLimit{RatePerSecond: 2.5, Burst: 4}, cfg.Gateway.RateLimits["paco.write"])
	require.Equal(t, []string{harberger.ModuleName}, cfg.PausedModules())
	require.True(t, cfg.PauseSet().IsPaused(harberger.ModuleName))

	params, err := cfg.HarbergerParams()
	require.NoError(t, err)
	require.Equal(t, crypto.ModuleAddress(VaultModule).Raw(), params.Vault)
	require.Equal(t, crypto.ModuleAddress(TreasuryModule).Raw(), params.Treasury)
	require.Equal(t, uint64(3600), params.HalfLife)

	policy, err := cfg.FeePolicy()
	require.NoError(t, err)
	require.Equal(t, uint32(25), policy.TransferFeeBps)
	require.True(t, policy.IsExempt([20]byte{0x42, 19: 0x24}))
}

func TestLoadParsesYAML(t *testing.T) {
	vault := crypto.ModuleAddress("custom/vault").String()
	path := writeConfig(t, "config.yaml", `listenAddress: ":7000"
dataDir: ./yaml-data
harberger:
  vault: `+vault+`
keeper:
  enabled: false
gateway:
  cors:
    allowedOrigins: ["https://paco.example"]
logging:
  level: debug
  file: ./logs/pacod.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.ListenAddress)
	require.False(t, cfg.Keeper.Enabled)
	require.Equal(t, []string{"https://paco.example"}, cfg.Gateway.CORS.AllowedOrigins)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, uint64(harberger.DefaultFeeRateBps), cfg.Harberger.FeeRateBps)

	params, err := cfg.HarbergerParams()
	require.NoError(t, err)
	require.Equal(t, crypto.ModuleAddress("custom/vault").Raw(), params.Vault)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "config.toml", "ListenAddress = \":1\"\nDataDir = \"d\"\nValidatorKey = \"x\"\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ValidatorKey")

	path = writeConfig(t, "config.yml", "listenAddress: \":1\"\nbogus: true\n")
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero fee rate", func(c *Config) { c.Harberger.FeeRateBps = 0 }, "FeeRateBps"},
		{"bond over 100%", func(c *Config) { c.Harberger.MinBondBps = 10_001 }, "MinBondBps"},
		{"short half life", func(c *Config) { c.Harberger.HalfLifeSeconds = 1 }, "HalfLifeSeconds"},
		{"fee over cap", func(c *Config) { c.Fees.TransferFeeBps = 5_000 }, "TransferFeeBps"},
		{"fee without collector", func(c *Config) { c.Fees.TransferFeeBps = 10 }, "Collector"},
		{"auth without secret", func(c *Config) { c.Gateway.Auth.Enabled = true }, "HMACSecret"},
		{"bad optional path", func(c *Config) { c.Gateway.Auth.OptionalPaths = []string{"healthz"} }, "OptionalPaths"},
		{"bad vault", func(c *Config) { c.Harberger.Vault = "not-an-address" }, "harberger.Vault"},
		{"vault equals treasury", func(c *Config) {
			c.Harberger.Vault = crypto.ModuleAddress(TreasuryModule).String()
		}, "harberger"},
		{"keeper interval", func(c *Config) { c.Keeper.Interval = 0 }, "Interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.want), err.Error())
		})
	}
	require.NoError(t, ValidateConfig(Default()))
}

func TestAuthSecretPrefersEnvironment(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Auth.HMACSecret = "from-file"
	cfg.Gateway.Auth.HMACSecretEnv = "PACO_TEST_HMAC"
	require.Equal(t, "from-file", cfg.AuthSecret())
	t.Setenv("PACO_TEST_HMAC", "from-env")
	require.Equal(t, "from-env", cfg.AuthSecret())
}
