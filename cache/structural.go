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

package cache

import (
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/unifier"
	log "github.com/sirupsen/logrus"
)

// Structural caches store-access plans by the structure of their queries.
// Queries that differ only in the identifiers of their identity constraints
// share a plan. It's not safe for concurrent use.
type Structural struct {
	planner  graph.Planner
	disabled bool
	// Keyed by query.StructuralKey.
	entries map[string]structuralEntry
}

type structuralEntry struct {
	query *query.Atomic
	plan  graph.Plan
}

// NewStructural returns an empty plan cache that creates plans with the given
// planner. If disabled is set, every lookup goes to the planner.
func NewStructural(planner graph.Planner, disabled bool) *Structural {
	return &Structural{
		planner:  planner,
		disabled: disabled,
		entries:  make(map[string]structuralEntry),
	}
}

// Plan returns a plan for q, reusing and transforming the plan of a
// structurally equal query if there is one.
func (c *Structural) Plan(q *query.Atomic) (graph.Plan, error) {
	if c.disabled {
		return c.planner.Plan(q.Query())
	}
	key := q.StructuralKey()
	if e, ok := c.entries[key]; ok {
		u, err := query.Unify(e.query, q, unifier.Structural).First()
		if err != nil {
			log.WithFields(log.Fields{
				"cached": e.query,
				"query":  q,
				"error":  err,
			}).Warn("Structurally equal queries failed to unify")
			return nil, &unifier.UnificationError{
				Reason: "structurally equal queries failed to unify",
				Child:  e.query.String(),
				Parent: q.String(),
			}
		}
		metrics.planLookups.WithLabelValues("hit").Inc()
		return e.plan.Transform(u, q.IDs()), nil
	}
	metrics.planLookups.WithLabelValues("miss").Inc()
	p, err := c.planner.Plan(q.Query())
	if err != nil {
		return nil, err
	}
	c.entries[key] = structuralEntry{query: q, plan: p}
	log.WithFields(log.Fields{
		"query": q,
		"plan":  p,
	}).Debug("Cached new plan")
	return p, nil
}

// Len returns the number of cached plans.
func (c *Structural) Len() int {
	return len(c.entries)
}
