// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"log/slog"
	"strings"
)

// Traversal limits.
const (
	// DefaultMaxDepth is the default maximum traversal depth.
	DefaultMaxDepth = 32

	// MaxTraversalDepth is the maximum allowed traversal depth.
	MaxTraversalDepth = 256

	// DefaultPushLimit is the default cap on objects pushed per traversal.
	DefaultPushLimit = 500

	// contextCheckInterval is how often to check context during traversal.
	contextCheckInterval = 16
)

// Mode selects the traversal direction relative to the root.
type Mode int

const (
	// ModeAncestors walks from the root towards its parents.
	ModeAncestors Mode = iota + 1

	// ModeDescendants walks from the root towards its children.
	ModeDescendants

	// ModeBoth runs ModeAncestors, then ModeDescendants with a fresh
	// visited set.
	ModeBoth
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeAncestors:
		return "ancestors"
	case ModeDescendants:
		return "descendants"
	case ModeBoth:
		return "both"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= ModeAncestors && m <= ModeBoth
}

// ParseMode parses a mode name. The empty string parses as ModeDescendants.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ancestors", "ancestor", "up":
		return ModeAncestors, nil
	case "descendants", "descendant", "down", "":
		return ModeDescendants, nil
	case "both", "all":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// FetchOptions configures a traversal.
type FetchOptions struct {
	// MaxDepth bounds how many edges away from the root the walk goes.
	MaxDepth int

	// PushLimit bounds how many objects are processed in one traversal.
	PushLimit int

	// Database, when set, memoizes expanded objects across traversals and
	// receives every edge the traversal records.
	Database *Database

	// Logger receives lookup failures and hierarchy diagnostics.
	Logger *slog.Logger
}

// DefaultFetchOptions returns sensible defaults for traversals.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		MaxDepth:  DefaultMaxDepth,
		PushLimit: DefaultPushLimit,
	}
}

// FetchOption is a functional option for configuring traversals.
type FetchOption func(*FetchOptions)

// WithMaxDepth sets the maximum traversal depth.
//
// If d < 0, uses default (32).
// If d > 256, clamps to 256.
func WithMaxDepth(d int) FetchOption {
	return func(o *FetchOptions) {
		switch {
		case d < 0:
			o.MaxDepth = DefaultMaxDepth
		case d > MaxTraversalDepth:
			o.MaxDepth = MaxTraversalDepth
		default:
			o.MaxDepth = d
		}
	}
}

// WithPushLimit sets the push cap. If n <= 0, uses default (500).
func WithPushLimit(n int) FetchOption {
	return func(o *FetchOptions) {
		if n <= 0 {
			o.PushLimit = DefaultPushLimit
			return
		}
		o.PushLimit = n
	}
}

// WithDatabase shares a Database across traversals.
func WithDatabase(db *Database) FetchOption {
	return func(o *FetchOptions) {
		o.Database = db
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FetchOption {
	return func(o *FetchOptions) {
		o.Logger = l
	}
}

func applyFetchOptions(opts []FetchOption) FetchOptions {
	options := DefaultFetchOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return options
}

// MarshalText encodes the mode as its name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
