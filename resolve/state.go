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

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/rules"
	log "github.com/sirupsen/logrus"
)

// State is a node in a resolution tree. Each state is owned by its parent,
// and its answers are passed to its parent's PropagateAnswer.
type State interface {
	// NextSubGoal returns the next child state to explore, or nil once this
	// state is exhausted.
	NextSubGoal(ctx context.Context) (State, error)
	// PropagateAnswer is called with an answer found under this state. It
	// returns the state that carries the answer further, or nil if the answer
	// is rejected.
	PropagateAnswer(ctx context.Context, a *AnswerState) (State, error)
	// Parent returns the state that consumes this state's answers, or nil at
	// the root of the tree.
	Parent() State
}

// AnswerState carries one answer up the tree. When its parent is nil, the
// answer is a final answer to the query being resolved.
type AnswerState struct {
	sub answer.Substitution
	// Set if the answer comes from a rule application. In that case sub is
	// in terms of the rule's variables.
	app    *rules.Application
	parent State
	done   bool
}

func newAnswerState(sub answer.Substitution, app *rules.Application, parent State) *AnswerState {
	return &AnswerState{sub: sub, app: app, parent: parent}
}

// Substitution returns the answer.
func (a *AnswerState) Substitution() answer.Substitution {
	return a.sub
}

// NextSubGoal hands the answer to the parent, once.
func (a *AnswerState) NextSubGoal(ctx context.Context) (State, error) {
	if a.done || a.parent == nil {
		return nil, nil
	}
	a.done = true
	return a.parent.PropagateAnswer(ctx, a)
}

// PropagateAnswer panics: answer states are always leaves.
func (a *AnswerState) PropagateAnswer(ctx context.Context, child *AnswerState) (State, error) {
	log.Panicf("AnswerState.PropagateAnswer called with %v", child.sub)
	return nil, nil
}

// Parent implements State.
func (a *AnswerState) Parent() State {
	return a.parent
}

// stateIterator explores a resolution tree depth-first with an explicit stack,
// stopping at each final answer.
type stateIterator struct {
	ctx   context.Context
	stack []State
}

func newStateIterator(ctx context.Context, root State) *stateIterator {
	return &stateIterator{ctx: ctx, stack: []State{root}}
}

func (it *stateIterator) Next() (answer.Substitution, bool, error) {
	for len(it.stack) > 0 {
		if err := it.ctx.Err(); err != nil {
			it.stack = nil
			return answer.Substitution{}, false, err
		}
		top := it.stack[len(it.stack)-1]
		child, err := top.NextSubGoal(it.ctx)
		if err != nil {
			it.stack = nil
			return answer.Substitution{}, false, err
		}
		if child == nil {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		if a, ok := child.(*AnswerState); ok && a.parent == nil {
			return a.sub, true, nil
		}
		it.stack = append(it.stack, child)
	}
	return answer.Substitution{}, false, nil
}

// visited tracks the atomic queries whose rules have been applied during one
// round of resolution.
type visited struct {
	keys map[string]bool
	// The queries in the order they were first visited.
	queries []*query.Atomic
	// The number of times a visited query was reached again while its answers
	// were still incomplete.
	cuts int
}

func newVisited() *visited {
	return &visited{keys: make(map[string]bool)}
}

// visit adds q to the set. It returns false if q was already there.
func (v *visited) visit(q *query.Atomic) bool {
	k := q.CanonicalKey()
	if v.keys[k] {
		return false
	}
	v.keys[k] = true
	v.queries = append(v.queries, q)
	return true
}

func (v *visited) cut() {
	v.cuts++
	metrics.subgoalsCut.Inc()
}
