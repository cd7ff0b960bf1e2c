// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the configuration of the reasoner and how it's
// loaded from JSON or YAML files and written back as JSON.
package config

import "fmt"

// Reasoner is the top-level configuration structure.
type Reasoner struct {
	// The maximum number of resolution rounds for queries that reach recursive
	// rules. If 0, DefaultMaxRounds is used.
	MaxRounds int `json:"maxRounds,omitempty" yaml:"maxRounds,omitempty"`

	// If true, relation facts derived by rules are not written back to the
	// graph store. Such facts can't be referred to by later queries.
	DisableMaterialisation bool `json:"disableMaterialisation,omitempty" yaml:"disableMaterialisation,omitempty"`

	// Controls the answer caches. If nil, both caches are enabled.
	Cache *Cache `json:"cache,omitempty" yaml:"cache,omitempty"`

	// The minimum log level, as accepted by logrus.ParseLevel. If empty,
	// "info" is used.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

// Cache configures the semantic answer cache and the structural plan cache.
type Cache struct {
	// If true, answers are never copied between cache entries of queries that
	// subsume one another. Entries for identical queries are still shared.
	DisableSubsumption bool `json:"disableSubsumption,omitempty" yaml:"disableSubsumption,omitempty"`

	// If true, every store lookup is planned from scratch.
	DisableStructural bool `json:"disableStructural,omitempty" yaml:"disableStructural,omitempty"`
}

// DefaultMaxRounds is the number of resolution rounds allowed when the
// configuration doesn't specify one.
const DefaultMaxRounds = 32

// Rounds returns the effective MaxRounds.
func (cfg *Reasoner) Rounds() int {
	if cfg == nil || cfg.MaxRounds == 0 {
		return DefaultMaxRounds
	}
	return cfg.MaxRounds
}

// Validate returns an error if the configuration has invalid values.
func (cfg *Reasoner) Validate() error {
	if cfg.MaxRounds < 0 {
		return fmt.Errorf("maxRounds must not be negative, got %d", cfg.MaxRounds)
	}
	return nil
}
