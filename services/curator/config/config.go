// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads Curator configuration from YAML with CURATOR_*
// environment overrides, validates it, and watches the file for changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/Curator/pkg/logging"
	"github.com/AleutianAI/Curator/services/curator/store/gormstore"
	"github.com/AleutianAI/Curator/services/curator/telemetry"
)

// ErrInvalidConfig wraps validation and environment parse failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Database  gormstore.Config `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Graph     GraphConfig      `yaml:"graph"`
	Cache     CacheConfig      `yaml:"cache"`
	Snapshot  SnapshotConfig   `yaml:"snapshot"`
	Log       logging.Config   `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Port is the listen port.
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// RebuildPerMinute limits graph database rebuilds. Zero disables the
	// limit.
	RebuildPerMinute int `yaml:"rebuild_per_minute" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GraphConfig bounds traversals and propagation.
type GraphConfig struct {
	MaxDepth         int `yaml:"max_depth" validate:"gte=0,lte=256"`
	PushLimit        int `yaml:"push_limit" validate:"gte=1"`
	PropagationDepth int `yaml:"propagation_depth" validate:"gte=1,lte=256"`
}

// CacheConfig configures the lazy caches.
type CacheConfig struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1,max=10"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	WarmOnStart bool          `yaml:"warm_on_start"`
}

// SnapshotConfig configures graph database snapshots.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
	Keep    int    `yaml:"keep" validate:"gte=0"`

	// RestoreOnStart loads the latest snapshot when the server starts.
	RestoreOnStart bool `yaml:"restore_on_start"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		Database: gormstore.DefaultConfig(),
		Server: ServerConfig{
			Port:             8090,
			RebuildPerMinute: 2,
			ShutdownTimeout:  10 * time.Second,
		},
		Graph: GraphConfig{
			MaxDepth:         32,
			PushLimit:        500,
			PropagationDepth: 32,
		},
		Cache: CacheConfig{
			MaxAttempts: 3,
			RetryDelay:  100 * time.Millisecond,
			WarmOnStart: true,
		},
		Snapshot: SnapshotConfig{
			Dir:            "~/.curator/graphdb",
			Keep:           3,
			RestoreOnStart: true,
		},
		Log: logging.Config{
			Level:   logging.LevelInfo,
			Service: "curator",
		},
		Telemetry: tel,
	}
}

// Load reads path over the defaults, applies environment overrides, and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays CURATOR_* variables on cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("CURATOR_DB_DRIVER", &cfg.Database.Driver)
	str("CURATOR_DB_DSN", &cfg.Database.DSN)
	num("CURATOR_HTTP_PORT", &cfg.Server.Port)
	num("CURATOR_REBUILD_PER_MINUTE", &cfg.Server.RebuildPerMinute)
	num("CURATOR_MAX_DEPTH", &cfg.Graph.MaxDepth)
	num("CURATOR_PUSH_LIMIT", &cfg.Graph.PushLimit)
	num("CURATOR_PROPAGATION_DEPTH", &cfg.Graph.PropagationDepth)
	num("CURATOR_CACHE_ATTEMPTS", &cfg.Cache.MaxAttempts)
	flag("CURATOR_SNAPSHOT_ENABLED", &cfg.Snapshot.Enabled)
	str("CURATOR_SNAPSHOT_DIR", &cfg.Snapshot.Dir)
	flag("CURATOR_LOG_JSON", &cfg.Log.JSON)
	str("CURATOR_LOG_DIR", &cfg.Log.LogDir)
	if v, ok := lookup("CURATOR_LOG_LEVEL"); ok {
		lvl, err := logging.ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CURATOR_LOG_LEVEL: %w", err))
		} else {
			cfg.Log.Level = lvl
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
