// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads client configuration from a YAML file with KAFWIRE_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of one client session.
type Config struct {
	BrokerAddr string `yaml:"broker_addr"`
	ClientID   string `yaml:"client_id"`

	Acks             int16 `yaml:"acks"`
	ProduceTimeoutMs int32 `yaml:"produce_timeout_ms"`

	FetchMaxWaitMs   int32 `yaml:"fetch_max_wait_ms"`
	FetchMinBytes    int32 `yaml:"fetch_min_bytes"`
	FetchMaxBytes    int32 `yaml:"fetch_max_bytes"`
	FetchMaxBytesCap int32 `yaml:"fetch_max_bytes_cap"`

	RequestTimeoutMs int `yaml:"request_timeout_ms"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() Config {
	return Config{
		BrokerAddr:       "localhost:9092",
		Acks:             1,
		ProduceTimeoutMs: 10000,
		FetchMaxWaitMs:   100,
		FetchMinBytes:    1,
		FetchMaxBytes:    1 << 20,
		FetchMaxBytesCap: 16 << 20,
		RequestTimeoutMs: 30000,
		LogLevel:         "info",
	}
}

// Load reads path (when non-empty), applies environment overrides, fills in
// defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BrokerAddr = envOrDefault("KAFWIRE_BROKER_ADDR", c.BrokerAddr)
	c.ClientID = envOrDefault("KAFWIRE_CLIENT_ID", c.ClientID)
	c.MetricsAddr = envOrDefault("KAFWIRE_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = envOrDefault("KAFWIRE_LOG_LEVEL", c.LogLevel)
	c.Acks = int16(envOrDefaultInt("KAFWIRE_ACKS", int(c.Acks)))
	c.ProduceTimeoutMs = int32(envOrDefaultInt("KAFWIRE_PRODUCE_TIMEOUT_MS", int(c.ProduceTimeoutMs)))
	c.FetchMaxWaitMs = int32(envOrDefaultInt("KAFWIRE_FETCH_MAX_WAIT_MS", int(c.FetchMaxWaitMs)))
	c.FetchMinBytes = int32(envOrDefaultInt("KAFWIRE_FETCH_MIN_BYTES", int(c.FetchMinBytes)))
	c.FetchMaxBytes = int32(envOrDefaultInt("KAFWIRE_FETCH_MAX_BYTES", int(c.FetchMaxBytes)))
	c.FetchMaxBytesCap = int32(envOrDefaultInt("KAFWIRE_FETCH_MAX_BYTES_CAP", int(c.FetchMaxBytesCap)))
	c.RequestTimeoutMs = envOrDefaultInt("KAFWIRE_REQUEST_TIMEOUT_MS", c.RequestTimeoutMs)
}

// Validate checks the configuration for values the session layer cannot work
// with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BrokerAddr) == "" {
		return fmt.Errorf("broker_addr must not be empty")
	}
	if c.Acks < -1 {
		return fmt.Errorf("acks must be >= -1, got %d", c.Acks)
	}
	if c.FetchMaxBytes <= 0 {
		return fmt.Errorf("fetch_max_bytes must be positive, got %d", c.FetchMaxBytes)
	}
	if c.FetchMaxBytesCap < c.FetchMaxBytes {
		return fmt.Errorf("fetch_max_bytes_cap %d is below fetch_max_bytes %d",
			c.FetchMaxBytesCap, c.FetchMaxBytes)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		return val
	}
	return fallback
}

func envOrDefaultInt(name string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
