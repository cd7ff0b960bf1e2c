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

// Package graph defines the interfaces the reasoner uses to read from and
// write to the underlying graph store.
package graph

import (
	"context"
	"fmt"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/unifier"
	"github.com/ebay/reasoner/util/stream"
)

// A Plan is an executable form of a conjunctive query, as produced by a
// Planner.
type Plan interface {
	// Transform returns an equivalent plan for a structurally equal query.
	// The unifier maps the variables of the plan's query to the variables of
	// the new query, and ids gives the identifiers the new query's identity
	// constraints bind its variables to.
	Transform(u unifier.Unifier, ids map[atom.Var]string) Plan
	String() string
}

// A Planner turns queries into plans.
type Planner interface {
	// Plan returns a plan that finds the answers to q in the store.
	Plan(q *query.Conjunctive) (Plan, error)
	// Order returns the given atomic queries in the order they should be
	// resolved and joined. The result contains exactly the given queries.
	Order(atomics []*query.Atomic) []*query.Atomic
}

// An Executor finds answers in the graph store.
type Executor interface {
	// Traverse lazily enumerates the answers to the plan. Each answer binds
	// every variable of the planned query and carries a Lookup explanation.
	Traverse(ctx context.Context, plan Plan) (stream.Iterator[answer.Substitution], error)
}

// A Materializer makes inferred facts durable in the graph store.
type Materializer interface {
	// Materialise ensures the head of q holds for the given substitution,
	// inserting concepts or role players as needed. The resulting iterator
	// yields the substitution extended with bindings for any inserted
	// concepts; it's empty if the fact can't be inserted.
	Materialise(ctx context.Context, q *query.Atomic, sub answer.Substitution) (stream.Iterator[answer.Substitution], error)
}

// UnresolvedReferenceError is returned when a query refers to an identifier
// that the store doesn't know about.
type UnresolvedReferenceError struct {
	ID string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference to concept %q", e.ID)
}
