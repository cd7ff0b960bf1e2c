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

// Package resolve answers conjunctive queries over a graph store and a set of
// inference rules by backward chaining.
//
// Resolution builds a tree of states lazily: the root is the query, atomic
// queries read cached or stored answers and apply the rules whose heads match
// them, and each rule application resolves the rule's body as a nested
// conjunctive query. Answers flow from the leaves back up to the root, where
// they're returned one at a time as the caller pulls. Rules that depend on
// themselves are handled by cutting the recursion off and repeating the whole
// resolution in rounds until no new answers appear.
package resolve

import (
	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/cache"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/rules"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Options define optional arguments to New. The zero value of Options is
// usable.
type Options struct {
	// If positive, Resolve returns at most this many answers, and does only
	// the work needed to find them.
	Limit int
	// The maximum number of rounds for queries that reach recursive rules. If
	// 0, config.DefaultMaxRounds is used.
	MaxRounds int
	// If set, relations derived by rules are not written to the graph store.
	// They're identified by placeholder concepts instead.
	DisableMaterialisation bool
	// Options for each transaction's semantic cache.
	Cache cache.Options
	// If set, every store lookup is planned from scratch.
	DisableStructuralCache bool
}

// OptionsFromConfig returns the engine options described by cfg. A nil cfg
// gives the default options.
func OptionsFromConfig(cfg *config.Reasoner) Options {
	opts := Options{MaxRounds: cfg.Rounds()}
	if cfg == nil {
		return opts
	}
	opts.DisableMaterialisation = cfg.DisableMaterialisation
	if cfg.Cache != nil {
		opts.Cache.DisableSubsumption = cfg.Cache.DisableSubsumption
		opts.DisableStructuralCache = cfg.Cache.DisableStructural
	}
	return opts
}

// Backend is the graph store that queries are resolved against.
type Backend struct {
	Executor graph.Executor
	Planner  graph.Planner
	// Only needed if materialisation is enabled and some rule concludes a
	// relation.
	Materializer graph.Materializer
}

// Engine resolves queries. It holds no per-query state and is safe for
// concurrent use, but the transactions it creates are not.
type Engine struct {
	rules   *rules.Store
	backend Backend
	options Options
}

// New returns an Engine that applies the given rules.
func New(ruleStore *rules.Store, backend Backend, options Options) *Engine {
	if options.MaxRounds <= 0 {
		options.MaxRounds = config.DefaultMaxRounds
	}
	return &Engine{
		rules:   ruleStore,
		backend: backend,
		options: options,
	}
}

// Rules returns the engine's rule store.
func (engine *Engine) Rules() *rules.Store {
	return engine.rules
}

// Options returns the engine's options, with defaults filled in.
func (engine *Engine) Options() Options {
	return engine.options
}

// NewTx starts a transaction. Queries resolved within the same transaction
// share their caches.
func (engine *Engine) NewTx() *Tx {
	id := uuid.New()
	plans := cache.NewStructural(engine.backend.Planner, engine.options.DisableStructuralCache)
	return &Tx{
		engine:       engine,
		id:           id,
		plans:        plans,
		cache:        cache.NewSemantic(engine.backend.Executor, plans, engine.options.Cache),
		materialised: make(map[string][]answer.Substitution),
		log:          log.WithField("tx", id.String()),
	}
}
