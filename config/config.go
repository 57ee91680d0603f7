// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package config loads the runtime configuration of the lease service
// from a config file and defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/corekv/corekv/logger"
)

var log = logger.GetLogger("config")

// Config is the runtime configuration of the lease service.
type Config struct {
	// ScanInterval is the cadence of the expiration scan; it is the
	// resolution at which leases actually expire.
	ScanInterval time.Duration
	// PromoteExtend is the grace period added to every lease expiry on
	// promotion, covering client intent unknown across the election.
	// Typically set to the election timeout.
	PromoteExtend time.Duration
	// DeleteBufferSize bounds the delete channel to the kv store.
	DeleteBufferSize int
	// CommandBufferSize bounds the command channel from other stores.
	CommandBufferSize int
	// LogFile, when set, receives a copy of all log output.
	LogFile string
	// LogLevel is a logrus level name.
	LogLevel string

	// Simulation workload knobs, used by leasesim only.
	SimLeases       int
	SimTTLSeconds   int64
	SimKeysPerLease int
}

// Defaults returns a Config with every knob at its default.
func Defaults() *Config {
	return &Config{
		ScanInterval:      500 * time.Millisecond,
		PromoteExtend:     time.Second,
		DeleteBufferSize:  128,
		CommandBufferSize: 128,
		LogLevel:          "info",
		SimLeases:         8,
		SimTTLSeconds:     5,
		SimKeysPerLease:   4,
	}
}

// Load reads the configuration file at path, falling back to defaults
// for anything unset. An empty path yields the defaults unchanged.
func Load(path string) (*Config, error) {
	conf := Defaults()
	if path == "" {
		return conf, nil
	}
	log.Infof("Loading configuration from %s", path)

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var err error
	if v.IsSet("scan_interval") {
		if conf.ScanInterval, err = cast.ToDurationE(v.Get("scan_interval")); err != nil {
			return nil, fmt.Errorf("invalid scan_interval: %w", err)
		}
	}
	if v.IsSet("promote_extend") {
		if conf.PromoteExtend, err = cast.ToDurationE(v.Get("promote_extend")); err != nil {
			return nil, fmt.Errorf("invalid promote_extend: %w", err)
		}
	}
	if v.IsSet("delete_buffer_size") {
		if conf.DeleteBufferSize, err = cast.ToIntE(v.Get("delete_buffer_size")); err != nil {
			return nil, fmt.Errorf("invalid delete_buffer_size: %w", err)
		}
	}
	if v.IsSet("command_buffer_size") {
		if conf.CommandBufferSize, err = cast.ToIntE(v.Get("command_buffer_size")); err != nil {
			return nil, fmt.Errorf("invalid command_buffer_size: %w", err)
		}
	}
	if v.IsSet("log_file") {
		conf.LogFile = v.GetString("log_file")
	}
	if v.IsSet("log_level") {
		conf.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("sim.leases") {
		if conf.SimLeases, err = cast.ToIntE(v.Get("sim.leases")); err != nil {
			return nil, fmt.Errorf("invalid sim.leases: %w", err)
		}
	}
	if v.IsSet("sim.ttl_seconds") {
		if conf.SimTTLSeconds, err = cast.ToInt64E(v.Get("sim.ttl_seconds")); err != nil {
			return nil, fmt.Errorf("invalid sim.ttl_seconds: %w", err)
		}
	}
	if v.IsSet("sim.keys_per_lease") {
		if conf.SimKeysPerLease, err = cast.ToIntE(v.Get("sim.keys_per_lease")); err != nil {
			return nil, fmt.Errorf("invalid sim.keys_per_lease: %w", err)
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %s", c.ScanInterval)
	}
	if c.PromoteExtend < 0 {
		return fmt.Errorf("promote_extend must not be negative, got %s", c.PromoteExtend)
	}
	if c.DeleteBufferSize <= 0 || c.CommandBufferSize <= 0 {
		return fmt.Errorf("channel buffer sizes must be positive")
	}
	return nil
}
