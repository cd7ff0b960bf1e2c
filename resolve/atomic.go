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
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/util/stream"
	log "github.com/sirupsen/logrus"
)

// AtomicState resolves one atomic query. It first returns the answers from
// the semantic cache, which reads the graph store when needed, and then
// applies each rule whose head matches the query. Rule-derived answers are
// materialised if needed and recorded in the cache before they're passed up.
//
// An atomic query that was already visited in this round doesn't apply its
// rules again: it returns only what's in the cache.
type AtomicState struct {
	tx      *Tx
	query   *query.Atomic
	parent  State
	visited *visited
	// True if the query was visited before this state was created.
	revisit      bool
	applications []rules.Application
	next         int
	answers      stream.Iterator[answer.Substitution]
	drained      bool
	// Keys of the answers already passed up.
	emitted map[string]bool
	// Rule-derived answers waiting to be passed up.
	pending []answer.Substitution
	// The value of visited.cuts when the state was created.
	cuts int
}

func newAtomicState(tx *Tx, q *query.Atomic, parent State, visited *visited) *AtomicState {
	metrics.statesCreated.WithLabelValues("atomic").Inc()
	s := &AtomicState{
		tx:      tx,
		query:   q,
		parent:  parent,
		visited: visited,
		emitted: make(map[string]bool),
	}
	complete := tx.cache.IsComplete(q)
	switch {
	case !visited.visit(q):
		s.revisit = true
		if !complete && tx.engine.rules.IsRuleResolvable(q) {
			visited.cut()
			tx.log.WithField("query", q).Debug("Cut resolution of visited subgoal")
		}
	case !complete:
		s.applications = tx.engine.rules.ApplicableRules(q)
	}
	s.cuts = visited.cuts
	return s
}

// NextSubGoal returns the next cached or stored answer as an AnswerState, and
// after those, a RuleState for each applicable rule.
func (s *AtomicState) NextSubGoal(ctx context.Context) (State, error) {
	if len(s.pending) > 0 {
		sub := s.pending[0]
		s.pending = s.pending[1:]
		return newAnswerState(sub, nil, s.parent), nil
	}
	if !s.drained {
		if s.answers == nil {
			s.answers = s.tx.cache.AnswerStream(ctx, s.query)
		}
		for {
			sub, ok, err := s.answers.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				s.drained = true
				break
			}
			if s.emit(sub) {
				return newAnswerState(sub, nil, s.parent), nil
			}
		}
	}
	if s.next < len(s.applications) {
		app := s.applications[s.next]
		s.next++
		return newRuleState(s.tx, app, s.query, s, s.visited), nil
	}
	s.finish()
	return nil, nil
}

// emit returns true the first time it's called with a given answer.
func (s *AtomicState) emit(sub answer.Substitution) bool {
	k := cmp.GetKey(sub)
	if s.emitted[k] {
		return false
	}
	s.emitted[k] = true
	return true
}

// finish acknowledges the query complete if its whole subtree was explored
// without cutting off any recursion.
func (s *AtomicState) finish() {
	if s.revisit || s.visited.cuts != s.cuts {
		return
	}
	s.tx.cache.AckComplete(s.query)
}

// PropagateAnswer turns an answer to a rule's head into answers to the query.
func (s *AtomicState) PropagateAnswer(ctx context.Context, a *AnswerState) (State, error) {
	if a.app == nil {
		log.Panicf("AtomicState got an answer that doesn't come from a rule: %v", a.sub)
	}
	derived, err := s.conclude(ctx, a)
	if err != nil {
		return nil, err
	}
	base := s.query.BaseSubstitution()
	vars := s.query.Vars()
	for _, d := range derived {
		sub, ok := a.app.Unifier.Apply(d)
		if !ok {
			continue
		}
		if sub, ok = sub.Extend(base); !ok {
			continue
		}
		sub = s.retype(sub, a.app.Rule)
		if !s.query.Admits(sub) {
			continue
		}
		sub = sub.Project(vars)
		if _, err := s.tx.cache.Record(s.query, sub); err != nil {
			return nil, err
		}
		if s.emit(sub) {
			s.pending = append(s.pending, sub)
		}
	}
	if len(s.pending) == 0 {
		return nil, nil
	}
	sub := s.pending[0]
	s.pending = s.pending[1:]
	return newAnswerState(sub, nil, s.parent), nil
}

// conclude returns the facts that a rule's head derives from one answer. A
// relation head that isn't already bound needs a stored relation.
func (s *AtomicState) conclude(ctx context.Context, a *AnswerState) ([]answer.Substitution, error) {
	r := a.app.Rule
	if !r.RequiresMaterialisation() {
		return []answer.Substitution{a.sub}, nil
	}
	if s.tx.engine.options.DisableMaterialisation {
		return []answer.Substitution{placeholderRelation(r, a.sub)}, nil
	}
	return s.tx.materialise(ctx, r.HeadQuery(), a.sub)
}

// retype sets the type of the concept an isa rule derived to the rule's head
// type, unless its stored type is already within the query's type.
func (s *AtomicState) retype(sub answer.Substitution, r *rules.Rule) answer.Substitution {
	isa, ok := s.query.Atom().(*atom.Isa)
	if !ok {
		return sub
	}
	c, ok := sub.Get(isa.Var)
	if !ok || c.Type == "" || s.query.Schema().IsSubtype(c.Type, isa.Type) {
		return sub
	}
	c.Type = r.HeadType()
	return sub.With(isa.Var, c)
}

// placeholderRelation binds the relation variable of a rule's head to a
// concept that's never stored. Its ID is derived from the role players, so
// the same conclusion always gets the same placeholder.
func placeholderRelation(r *rules.Rule, sub answer.Substitution) answer.Substitution {
	rel := r.Head.(*atom.Relation)
	if _, bound := sub.Get(rel.Var); bound {
		return sub
	}
	players := make([]string, len(rel.RolePlayers))
	for i, rp := range rel.RolePlayers {
		c, _ := sub.Get(rp.Player)
		players[i] = rp.Role + "=" + c.ID
	}
	id := fmt.Sprintf("_:%s(%s)", rel.Type, strings.Join(players, ","))
	return sub.With(rel.Var, atom.Concept{ID: id, Type: rel.Type})
}

// Parent implements State.
func (s *AtomicState) Parent() State {
	return s.parent
}

// RuleState applies one rule to an atomic query. Its single child resolves
// the rule's body, restricted by the identifiers the query fixes.
type RuleState struct {
	tx      *Tx
	app     rules.Application
	query   *query.Atomic
	parent  State
	visited *visited
	started bool
}

func newRuleState(tx *Tx, app rules.Application, q *query.Atomic, parent State, visited *visited) *RuleState {
	metrics.statesCreated.WithLabelValues("rule").Inc()
	return &RuleState{
		tx:      tx,
		app:     app,
		query:   q,
		parent:  parent,
		visited: visited,
	}
}

// NextSubGoal returns a ConjunctiveState for the rule's body.
func (s *RuleState) NextSubGoal(ctx context.Context) (State, error) {
	if s.started {
		return nil, nil
	}
	s.started = true
	bound, ok := s.app.Unifier.Inverse().Apply(s.query.BaseSubstitution())
	if !ok {
		return nil, nil
	}
	return newConjunctiveState(s.tx, s.app.Rule.Body.WithSubstitution(bound), s, s.visited), nil
}

// PropagateAnswer takes an answer to the rule's body, keeps the head's
// variables, and explains it by the rule.
func (s *RuleState) PropagateAnswer(ctx context.Context, a *AnswerState) (State, error) {
	head := s.app.Rule.HeadQuery()
	sub := a.sub.Project(head.Vars()).WithExplanation(answer.RuleApplication{
		Rule:    s.app.Rule.ID,
		Premise: a.sub.Explanation(),
	})
	return newAnswerState(sub, &s.app, s.parent), nil
}

// Parent implements State.
func (s *RuleState) Parent() State {
	return s.parent
}
