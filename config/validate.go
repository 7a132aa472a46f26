package config

import (
	"fmt"
	"strings"

	"pacochain/native/fees"
	"pacochain/native/harberger"
)

var (
	// MinHalfLifeSeconds rejects decay curves that collapse a price within
	// minutes of liquidation.
	MinHalfLifeSeconds = uint64(60)
)

// ValidateConfig checks the configuration for values the node cannot run with.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("ListenAddress is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DataDir is required")
	}
	h := c.Harberger
	if h.FeeRateBps == 0 {
		return fmt.Errorf("harberger: FeeRateBps must be positive")
	}
	if h.MinBondBps == 0 || h.MinBondBps > harberger.BasisPoints {
		return fmt.Errorf("harberger: MinBondBps must be within (0, %d]", harberger.BasisPoints)
	}
	if h.HalfLifeSeconds < MinHalfLifeSeconds {
		return fmt.Errorf("harberger: HalfLifeSeconds below %d", MinHalfLifeSeconds)
	}
	if h.SecondsPerYear == 0 {
		return fmt.Errorf("harberger: SecondsPerYear must be positive")
	}
	if c.Fees.TransferFeeBps > fees.MaxTransferFeeBps {
		return fmt.Errorf("fees: TransferFeeBps exceeds %d", fees.MaxTransferFeeBps)
	}
	if c.Fees.TransferFeeBps > 0 && strings.TrimSpace(c.Fees.Collector) == "" {
		return fmt.Errorf("fees: Collector required when TransferFeeBps is set")
	}
	if c.Keeper.Enabled && c.Keeper.Interval <= 0 {
		return fmt.Errorf("keeper: Interval must be positive")
	}
	auth := c.Gateway.Auth
	if auth.Enabled && strings.TrimSpace(auth.HMACSecret) == "" && strings.TrimSpace(auth.HMACSecretEnv) == "" {
		return fmt.Errorf("gateway.auth: HMACSecret or HMACSecretEnv required when enabled")
	}
	for i, path := range auth.OptionalPaths {
		if !strings.HasPrefix(strings.TrimSpace(path), "/") {
			return fmt.Errorf("gateway.auth: OptionalPaths[%d] must start with '/'", i)
		}
	}
	for route, limit := range c.Gateway.RateLimits {
		if limit.RatePerSecond < 0 || limit.Burst < 0 {
			return fmt.Errorf("gateway.rate_limits.%s: negative limit", route)
		}
	}
	if _, err := c.HarbergerParams(); err != nil {
		return err
	}
	if _, err := c.FeePolicy(); err != nil {
		return err
	}
	return nil
}
