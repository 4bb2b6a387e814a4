// Package config holds the server's shared, copy-on-update configuration.
// A new Config value is produced by merging editor-provided JSON into
// defaults; updates replace a shared handle atomically (spec §3).
package config

import (
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
)

// ConfigSection is the section name passed to workspace/configuration,
// matching nil's CONFIG_KEY constant.
const ConfigSection = "nil"

// Config is the free-form editor-provided configuration tree, decoded into
// a typed struct. It is immutable after publication (spec §3); Store
// swaps a new *Config in rather than mutating one in place.
type Config struct {
	RootPath string `mapstructure:"-"`

	NixBinary             string   `mapstructure:"nixBinary"`
	DiagnosticsExcluded   []string `mapstructure:"diagnosticsExcludedFiles"`
}

// Default returns the configuration used before the first
// workspace/configuration round trip completes.
func Default(rootPath string) *Config {
	return &Config{
		RootPath:  rootPath,
		NixBinary: "nix",
	}
}

// update decodes raw into a copy of c, validates it, and returns the new
// value together with validation errors and whether the change affects
// already-computed diagnostics.
func (c *Config) update(raw map[string]interface{}) (*Config, []string, bool) {
	next := &Config{RootPath: c.RootPath, NixBinary: c.NixBinary, DiagnosticsExcluded: c.DiagnosticsExcluded}

	var errs []string
	if raw != nil {
		decoded := &Config{}
		if err := mapstructure.Decode(raw, decoded); err != nil {
			errs = append(errs, fmt.Sprintf("failed to decode configuration: %s", err))
		} else {
			if _, given := raw["nixBinary"]; given {
				next.NixBinary = decoded.NixBinary
			}
			next.DiagnosticsExcluded = decoded.DiagnosticsExcluded
		}
	}

	for _, raw := range next.DiagnosticsExcluded {
		if _, err := url.Parse(raw); err != nil {
			errs = append(errs, fmt.Sprintf("diagnosticsExcludedFiles entry %q is not a valid URI: %s", raw, err))
		}
	}
	if next.NixBinary == "" {
		errs = append(errs, "nixBinary must not be empty")
		next.NixBinary = c.NixBinary
	}

	diagnosticsAffecting := !stringSliceEqual(c.DiagnosticsExcluded, next.DiagnosticsExcluded)

	return next, errs, diagnosticsAffecting
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExcludesDiagnostics reports whether uri is in the configured exclusion
// set (spec §4.6: "if the URI is in the configured exclusion set, yields an
// empty list").
func (c *Config) ExcludesDiagnostics(uri string) bool {
	for _, excluded := range c.DiagnosticsExcluded {
		if excluded == uri {
			return true
		}
	}
	return false
}

// Store holds the single shared *Config handle, swapped atomically on
// Update. Readers call Current; it never blocks on a writer and never
// observes a torn value.
type Store struct {
	current atomic.Pointer[Config]
}

func NewStore(initial *Config) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

func (s *Store) Current() *Config {
	return s.current.Load()
}

// Update merges raw into the current configuration and publishes the
// result. It returns validation errors (if any) and whether the change
// affects diagnostics already computed.
func (s *Store) Update(raw map[string]interface{}) ([]string, bool) {
	cur := s.current.Load()
	next, errs, diagnosticsAffecting := cur.update(raw)
	s.current.Store(next)
	return errs, diagnosticsAffecting
}
