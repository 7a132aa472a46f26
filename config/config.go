package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"pacochain/native/harberger"
)

// Config is the pacod runtime configuration.
type Config struct {
	ListenAddress string    `toml:"ListenAddress" yaml:"listenAddress"`
	DataDir       string    `toml:"DataDir" yaml:"dataDir"`
	GenesisFile   string    `toml:"GenesisFile" yaml:"genesisFile"`
	Environment   string    `toml:"Environment" yaml:"environment"`
	Harberger     Harberger `toml:"harberger" yaml:"harberger"`
	Fees          Fees      `toml:"fees" yaml:"fees"`
	Keeper        Keeper    `toml:"keeper" yaml:"keeper"`
	Gateway       Gateway   `toml:"gateway" yaml:"gateway"`
	Indexer       Indexer   `toml:"indexer" yaml:"indexer"`
	Logging       Logging   `toml:"logging" yaml:"logging"`
	Telemetry     Telemetry `toml:"telemetry" yaml:"telemetry"`
	Pauses        Pauses    `toml:"pauses" yaml:"pauses"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./paco-data",
		Environment:   "local",
		Harberger: Harberger{
			FeeRateBps:      harberger.DefaultFeeRateBps,
			MinBondBps:      harberger.DefaultMinBondBps,
			HalfLifeSeconds: harberger.DefaultHalfLifeSeconds,
			SecondsPerYear:  harberger.DefaultSecondsPerYear,
		},
		Keeper: Keeper{
			Enabled:   true,
			Interval:  time.Hour,
			BatchSize: 64,
		},
		Gateway: Gateway{
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   120 * time.Second,
			LogRequests:   true,
			MetricsPrefix: "paco_gateway",
			Auth: Auth{
				ScopeClaim: "scope",
				ClockSkew:  2 * time.Minute,
			},
			RateLimits: map[string]RateLimit{
				"paco.read":  {RatePerSecond: 50, Burst: 100},
				"paco.write": {RatePerSecond: 5, Burst: 10},
			},
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the configuration at path. A missing file is created with the
// defaults in TOML. Files ending in .yaml or .yml are decoded as YAML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		if err := decodeYAML(path, cfg); err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
		}
	}
	cfg.normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decodeYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.GenesisFile = strings.TrimSpace(c.GenesisFile)
	if c.Gateway.Auth.ScopeClaim == "" {
		c.Gateway.Auth.ScopeClaim = "scope"
	}
	if c.Gateway.Auth.ClockSkew <= 0 {
		c.Gateway.Auth.ClockSkew = 2 * time.Minute
	}
	if c.Gateway.RateLimits == nil {
		c.Gateway.RateLimits = map[string]RateLimit{}
	}
	if c.Keeper.BatchSize <= 0 {
		c.Keeper.BatchSize = 64
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
