package config

import (
	"fmt"
	"os"
	"strings"

	"pacochain/crypto"
	"pacochain/native/common"
	"pacochain/native/fees"
	"pacochain/native/harberger"
)

// Module account derivation names.
const (
	VaultModule    = "paco/vault"
	TreasuryModule = "paco/treasury"
)

// HarbergerParams resolves the configured module accounts and returns the
// runtime ledger parameters.
func (c *Config) HarbergerParams() (harberger.Params, error) {
	h := c.Harberger
	params := harberger.Params{
		FeeRateBps:     h.FeeRateBps,
		MinBondBps:     h.MinBondBps,
		HalfLife:       h.HalfLifeSeconds,
		SecondsPerYear: h.SecondsPerYear,
	}
	vault, err := moduleAccount("harberger.Vault", h.Vault, VaultModule)
	if err != nil {
		return params, err
	}
	treasury, err := moduleAccount("harberger.Treasury", h.Treasury, TreasuryModule)
	if err != nil {
		return params, err
	}
	params.Vault = vault
	params.Treasury = treasury
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// FeePolicy parses the configured transfer fee into a runtime policy.
func (c *Config) FeePolicy() (fees.Policy, error) {
	policy := fees.Policy{TransferFeeBps: c.Fees.TransferFeeBps}
	if raw := strings.TrimSpace(c.Fees.Collector); raw != "" {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return policy, fmt.Errorf("invalid fees.Collector: %w", err)
		}
		policy.Collector = addr.Raw()
	}
	exempt := make([][20]byte, 0, len(c.Fees.Exempt))
	for i, raw := range c.Fees.Exempt {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return policy, fmt.Errorf("invalid fees.Exempt[%d]: %w", i, err)
		}
		exempt = append(exempt, addr.Raw())
	}
	return policy.WithExempt(exempt...), nil
}

// PausedModules returns the modules listed as paused.
func (c *Config) PausedModules() []string {
	var modules []string
	if c.Pauses.Harberger {
		modules = append(modules, harberger.ModuleName)
	}
	return modules
}

// PauseSet builds the operator switchboard seeded from the config.
func (c *Config) PauseSet() *common.PauseSet {
	return common.NewPauseSet(c.PausedModules()...)
}

// AuthSecret returns the HMAC secret, preferring the environment variable.
func (c *Config) AuthSecret() string {
	auth := c.Gateway.Auth
	if env := strings.TrimSpace(auth.HMACSecretEnv); env != "" {
		if value, ok := os.LookupEnv(env); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return auth.HMACSecret
}

func moduleAccount(field, raw, module string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return crypto.ModuleAddress(module).Raw(), nil
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr.Raw(), nil
}
