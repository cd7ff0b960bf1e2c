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

package memstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/util/stream"
	log "github.com/sirupsen/logrus"
)

// Traverse implements graph.Executor. The answers are found by backtracking
// over the plan's steps: the candidates for a step are computed only once the
// previous steps have produced a binding.
func (store *Store) Traverse(ctx context.Context, gp graph.Plan) (stream.Iterator[answer.Substitution], error) {
	p, ok := gp.(*plan)
	if !ok {
		return nil, fmt.Errorf("memstore: can't execute plan of type %T", gp)
	}
	atomic.AddInt64(&store.traversals, 1)
	seed := make(map[atom.Var]atom.Concept, len(p.ids))
	store.lock.RLock()
	for v, id := range p.ids {
		c, ok := store.locked.concepts[id]
		if !ok {
			store.lock.RUnlock()
			return nil, &graph.UnresolvedReferenceError{ID: id}
		}
		seed[v] = c
	}
	store.lock.RUnlock()
	start := answer.New(seed, answer.Lookup{})
	t := &traversal{store: store, plan: p}
	if t.admits(start) {
		t.frames = []frame{{candidates: []answer.Substitution{start}}}
	}
	return stream.Func[answer.Substitution](func() (answer.Substitution, bool, error) {
		return t.next(ctx)
	}), nil
}

type traversal struct {
	store *Store
	plan  *plan
	// frames[i] holds the bindings after evaluating the first i steps.
	frames []frame
}

type frame struct {
	candidates []answer.Substitution
	next       int
}

func (t *traversal) next(ctx context.Context) (answer.Substitution, bool, error) {
	for len(t.frames) > 0 {
		if err := ctx.Err(); err != nil {
			return answer.Substitution{}, false, err
		}
		top := &t.frames[len(t.frames)-1]
		if top.next == len(top.candidates) {
			t.frames = t.frames[:len(t.frames)-1]
			continue
		}
		b := top.candidates[top.next]
		top.next++
		done := len(t.frames) - 1
		if done == len(t.plan.steps) {
			return b.Project(t.plan.vars), true, nil
		}
		t.frames = append(t.frames, frame{candidates: t.candidates(t.plan.steps[done], b)})
	}
	return answer.Substitution{}, false, nil
}

// admits returns false if b violates a filter whose variables are all bound.
func (t *traversal) admits(b answer.Substitution) bool {
	get := b.Lookup()
	for _, f := range t.plan.filters {
		if !atom.Check(f, get) {
			return false
		}
	}
	return true
}

// candidates returns the extensions of b that satisfy the step, with
// duplicates removed.
func (t *traversal) candidates(step atom.Atom, b answer.Substitution) []answer.Substitution {
	var res []answer.Substitution
	seen := make(map[string]bool)
	emit := func(ext answer.Substitution) {
		if !t.admits(ext) {
			return
		}
		k := cmp.GetKey(ext)
		if !seen[k] {
			seen[k] = true
			res = append(res, ext)
		}
	}
	store := t.store
	store.lock.RLock()
	defer store.lock.RUnlock()
	switch step := step.(type) {
	case *atom.Isa:
		if c, ok := b.Get(step.Var); ok {
			if store.schema.IsSubtype(c.Type, step.Type) {
				emit(b)
			}
			return res
		}
		store.ofTypeLocked(step.Type, func(c atom.Concept) {
			emit(b.With(step.Var, c))
		})
	case *atom.Relation:
		match := func(c atom.Concept) {
			if !store.schema.IsSubtype(c.Type, step.Type) {
				return
			}
			players, isRelation := store.locked.relations[c.ID]
			if !isRelation {
				return
			}
			for _, ext := range store.matchPlayersLocked(step.RolePlayers, players, b.With(step.Var, c)) {
				emit(ext)
			}
		}
		if c, ok := b.Get(step.Var); ok {
			match(c)
			return res
		}
		if anchor, ok := boundPlayer(step, b); ok {
			for _, id := range store.relationsOfLocked(anchor) {
				match(store.locked.concepts[id])
			}
			return res
		}
		store.ofTypeLocked(step.Type, match)
	default:
		log.Panicf("memstore: unexpected plan step %T", step)
	}
	return res
}

// boundPlayer returns the ID of a concept already bound to one of the
// relation's players.
func boundPlayer(rel *atom.Relation, b answer.Substitution) (string, bool) {
	for _, rp := range rel.RolePlayers {
		if c, ok := b.Get(rp.Player); ok {
			return c.ID, true
		}
	}
	return "", false
}

// matchPlayersLocked returns every extension of b that assigns each wanted
// role player a distinct stored player with a compatible role. The caller must
// hold lock.
func (store *Store) matchPlayersLocked(want []atom.RolePlayer, have []Player, b answer.Substitution) []answer.Substitution {
	var res []answer.Substitution
	used := make([]bool, len(have))
	var assign func(i int, b answer.Substitution)
	assign = func(i int, b answer.Substitution) {
		if i == len(want) {
			res = append(res, b)
			return
		}
		for j, p := range have {
			if used[j] || (want[i].Role != "" && want[i].Role != p.Role) {
				continue
			}
			next := b
			if c, ok := b.Get(want[i].Player); ok {
				if c.ID != p.ID {
					continue
				}
			} else {
				next = b.With(want[i].Player, store.locked.concepts[p.ID])
			}
			used[j] = true
			assign(i+1, next)
			used[j] = false
		}
	}
	assign(0, b)
	return res
}
