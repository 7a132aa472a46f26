package config

import "time"

// Harberger carries the deployment parameters of the bonded-ownership ledger.
// FeeRateBps is fixed once the ledger holds listings.
type Harberger struct {
	FeeRateBps      uint64 `toml:"FeeRateBps" yaml:"feeRateBps"`
	MinBondBps      uint64 `toml:"MinBondBps" yaml:"minBondBps"`
	HalfLifeSeconds uint64 `toml:"HalfLifeSeconds" yaml:"halfLifeSeconds"`
	SecondsPerYear  uint64 `toml:"SecondsPerYear" yaml:"secondsPerYear"`
	// Vault and Treasury are bech32 module accounts. Empty values fall back to
	// the derived paco/vault and paco/treasury addresses.
	Vault    string `toml:"Vault" yaml:"vault"`
	Treasury string `toml:"Treasury" yaml:"treasury"`
}

// Fees describes the payment token transfer fee.
type Fees struct {
	TransferFeeBps uint32   `toml:"TransferFeeBps" yaml:"transferFeeBps"`
	Collector      string   `toml:"Collector" yaml:"collector"`
	Exempt         []string `toml:"Exempt" yaml:"exempt"`
}

// Keeper schedules the background fee reaper.
type Keeper struct {
	Enabled   bool          `toml:"Enabled" yaml:"enabled"`
	Interval  time.Duration `toml:"Interval" yaml:"interval"`
	BatchSize int           `toml:"BatchSize" yaml:"batchSize"`
}

// Auth controls bearer token verification on the HTTP API.
type Auth struct {
	Enabled        bool          `toml:"Enabled" yaml:"enabled"`
	HMACSecret     string        `toml:"HMACSecret" yaml:"hmacSecret"`
	HMACSecretEnv  string        `toml:"HMACSecretEnv" yaml:"hmacSecretEnv"`
	Issuer         string        `toml:"Issuer" yaml:"issuer"`
	Audience       string        `toml:"Audience" yaml:"audience"`
	ScopeClaim     string        `toml:"ScopeClaim" yaml:"scopeClaim"`
	OptionalPaths  []string      `toml:"OptionalPaths" yaml:"optionalPaths"`
	AllowAnonymous bool          `toml:"AllowAnonymous" yaml:"allowAnonymous"`
	ClockSkew      time.Duration `toml:"ClockSkew" yaml:"clockSkew"`
}

// CORS lists the browser origins allowed to call the API.
type CORS struct {
	AllowedOrigins   []string `toml:"AllowedOrigins" yaml:"allowedOrigins"`
	AllowCredentials bool     `toml:"AllowCredentials" yaml:"allowCredentials"`
}

// RateLimit throttles one route class per client.
type RateLimit struct {
	RatePerSecond float64 `toml:"RatePerSecond" yaml:"ratePerSecond"`
	Burst         int     `toml:"Burst" yaml:"burst"`
}

// Gateway configures the HTTP surface.
type Gateway struct {
	ReadTimeout   time.Duration        `toml:"ReadTimeout" yaml:"readTimeout"`
	WriteTimeout  time.Duration        `toml:"WriteTimeout" yaml:"writeTimeout"`
	IdleTimeout   time.Duration        `toml:"IdleTimeout" yaml:"idleTimeout"`
	LogRequests   bool                 `toml:"LogRequests" yaml:"logRequests"`
	MetricsPrefix string               `toml:"MetricsPrefix" yaml:"metricsPrefix"`
	Auth          Auth                 `toml:"auth" yaml:"auth"`
	CORS          CORS                 `toml:"cors" yaml:"cors"`
	RateLimits    map[string]RateLimit `toml:"rate_limits" yaml:"rateLimits"`
}

// Indexer configures the SQL event archive. An empty DSN disables it.
type Indexer struct {
	DSN string `toml:"DSN" yaml:"dsn"`
}

// Logging mirrors logging.Options.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

// Pauses lists modules whose writes are rejected at startup.
type Pauses struct {
	Harberger bool `toml:"Harberger" yaml:"harberger"`
}
