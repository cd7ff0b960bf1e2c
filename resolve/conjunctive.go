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

package resolve

import (
	"context"
	"fmt"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query"
)

// ConjunctiveState resolves a conjunctive query, either the query given to
// Resolve or the body of a rule. It splits the query into atomic queries,
// orders them with the planner, and resolves them in that order.
type ConjunctiveState struct {
	tx      *Tx
	query   *query.Conjunctive
	parent  State
	visited *visited
	started bool
}

func newConjunctiveState(tx *Tx, q *query.Conjunctive, parent State, visited *visited) *ConjunctiveState {
	metrics.statesCreated.WithLabelValues("conjunctive").Inc()
	return &ConjunctiveState{
		tx:      tx,
		query:   q.InferTypes(),
		parent:  parent,
		visited: visited,
	}
}

// NextSubGoal returns the single child state: an AnswerState with no bindings
// if the query has no atoms, an AtomicState if the query decomposes into one
// atomic query, otherwise a CumulativeState over the ordered atomic queries.
func (s *ConjunctiveState) NextSubGoal(ctx context.Context) (State, error) {
	if s.started {
		return nil, nil
	}
	s.started = true
	if len(s.query.Atoms()) == 0 {
		// The empty conjunction holds exactly once, with no bindings.
		return newAnswerState(answer.Substitution{}, nil, s), nil
	}
	d, err := s.query.Decompose(s.tx.engine.rules.Appends)
	if err != nil {
		return nil, fmt.Errorf("can't decompose %v: %v", s.query, err)
	}
	if len(d.Atomics) == 1 && len(d.Filters) == 0 {
		return newAtomicState(s.tx, d.Atomics[0], s, s.visited), nil
	}
	ordered := s.tx.engine.backend.Planner.Order(d.Atomics)
	return newCumulativeState(s.tx, ordered, d.Filters, answer.Substitution{}, s, s.visited), nil
}

// PropagateAnswer projects a joined answer onto the query's variables.
func (s *ConjunctiveState) PropagateAnswer(ctx context.Context, a *AnswerState) (State, error) {
	return newAnswerState(a.sub.Project(s.query.Vars()), nil, s.parent), nil
}

// Parent implements State.
func (s *ConjunctiveState) Parent() State {
	return s.parent
}

// CumulativeState joins the answers of a queue of atomic queries from left to
// right. The first query in the queue is resolved with the bindings found so
// far; each of its answers is merged into those bindings and continues with
// the rest of the queue.
type CumulativeState struct {
	tx       *Tx
	subgoals []*query.Atomic
	// Constraints spanning several subgoals. Each is checked as soon as the
	// partial answer binds all its variables.
	filters []atom.Atom
	partial answer.Substitution
	parent  State
	visited *visited
	started bool
}

func newCumulativeState(tx *Tx, subgoals []*query.Atomic, filters []atom.Atom,
	partial answer.Substitution, parent State, visited *visited) *CumulativeState {
	metrics.statesCreated.WithLabelValues("cumulative").Inc()
	return &CumulativeState{
		tx:       tx,
		subgoals: subgoals,
		filters:  filters,
		partial:  partial,
		parent:   parent,
		visited:  visited,
	}
}

// NextSubGoal returns the single child state, which resolves the first
// subgoal under the partial answer's bindings.
func (s *CumulativeState) NextSubGoal(ctx context.Context) (State, error) {
	if s.started || len(s.subgoals) == 0 {
		return nil, nil
	}
	s.started = true
	return newAtomicState(s.tx, s.subgoals[0].WithSubstitution(s.partial), s, s.visited), nil
}

// PropagateAnswer merges an answer to the first subgoal into the partial
// answer. It returns a final AnswerState once no subgoals remain, and
// otherwise a CumulativeState for the rest of the queue.
func (s *CumulativeState) PropagateAnswer(ctx context.Context, a *AnswerState) (State, error) {
	merged, ok := s.partial.Merge(a.sub)
	if !ok {
		return nil, nil
	}
	get := merged.Lookup()
	// Bindings only grow, so a filter that passed once all its variables were
	// bound stays passed.
	var pending []atom.Atom
	for _, f := range s.filters {
		if !atom.Check(f, get) {
			return nil, nil
		}
		if !atom.Decided(f, get) {
			pending = append(pending, f)
		}
	}
	if len(s.subgoals) == 1 {
		return newAnswerState(merged, nil, s.parent), nil
	}
	return newCumulativeState(s.tx, s.subgoals[1:], pending, merged, s.parent, s.visited), nil
}

// Parent implements State.
func (s *CumulativeState) Parent() State {
	return s.parent
}
