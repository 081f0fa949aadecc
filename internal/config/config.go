// Package config resolves a simulation run's parameters from CLI flags and
// an optional .env file layered over a shared configuration struct.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is a fully-resolved, validated simulation run.
type Config struct {
	TraceDir      string
	TracePrefix   string
	NumCores      int
	SetIndexBits  int
	Associativity int
	BlockBits     int
	OutputFile    string

	EnableMonitor  bool
	MonitorAddr    string
	RecordingDBDSN string
}

// Defaults returns the original tool's documented defaults: a 4-core run,
// 16 sets, 2-way associative, 32-byte blocks.
func Defaults() Config {
	return Config{
		NumCores:      4,
		SetIndexBits:  4,
		Associativity: 2,
		BlockBits:     5,
		OutputFile:    "output.log",
		MonitorAddr:   ":8080",
	}
}

// LoadEnv seeds process environment variables from a .env file in the
// current directory, if one exists. A missing file is not an error;
// godotenv.Load's own error for that case is swallowed the same way an
// optional config layer should be.
func LoadEnv() {
	_ = godotenv.Load()
}

// envOverrides applies COHSIM_*-prefixed environment variables on top of a
// base Config, letting a .env file or the shell set defaults that flags
// then override.
func envOverrides(c Config) Config {
	if v := os.Getenv("COHSIM_TRACE_DIR"); v != "" {
		c.TraceDir = v
	}

	if v := os.Getenv("COHSIM_TRACE_PREFIX"); v != "" {
		c.TracePrefix = v
	}

	if v := os.Getenv("COHSIM_NUM_CORES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumCores = n
		}
	}

	if v := os.Getenv("COHSIM_MONITOR_ADDR"); v != "" {
		c.MonitorAddr = v
	}

	if v := os.Getenv("COHSIM_RECORDING_DSN"); v != "" {
		c.RecordingDBDSN = v
	}

	return c
}

// WithEnvOverrides applies environment overrides on top of c, after
// LoadEnv has populated the process environment from .env.
func WithEnvOverrides(c Config) Config {
	return envOverrides(c)
}

// Validate rejects a Config that cannot describe a legal cache geometry
// or run, failing fast with a specific reason rather than letting
// nonsense propagate into the simulation.
func (c Config) Validate() error {
	if c.TracePrefix == "" {
		return fmt.Errorf("config: trace prefix is required (-t)")
	}

	if c.NumCores < 1 {
		return fmt.Errorf("config: number of cores must be >= 1, got %d", c.NumCores)
	}

	if c.SetIndexBits < 0 {
		return fmt.Errorf("config: set index bits (-s) must be >= 0, got %d", c.SetIndexBits)
	}

	if c.Associativity < 1 {
		return fmt.Errorf("config: associativity (-E) must be >= 1, got %d", c.Associativity)
	}

	if c.BlockBits < 2 {
		return fmt.Errorf("config: block bits (-b) must be >= 2 (word-aligned blocks), got %d", c.BlockBits)
	}

	if c.SetIndexBits+c.BlockBits > 32 {
		return fmt.Errorf("config: s+b=%d exceeds 32-bit address space", c.SetIndexBits+c.BlockBits)
	}

	return nil
}

// NumSets returns 2^s.
func (c Config) NumSets() int { return 1 << uint(c.SetIndexBits) }

// BlockBytes returns 2^b.
func (c Config) BlockBytes() int { return 1 << uint(c.BlockBits) }

// CacheSizeKB returns the per-core cache footprint in kilobytes.
func (c Config) CacheSizeKB() int {
	return (c.NumSets() * c.Associativity * c.BlockBytes()) / 1024
}
