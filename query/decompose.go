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

package query

import (
	"github.com/ebay/reasoner/atom"
)

// Decomposition is a conjunctive query split into atomic queries.
type Decomposition struct {
	// One atomic query per selectable atom, each carrying the predicates that
	// refer only to its own variables.
	Atomics []*Atomic
	// Predicates spanning the variables of more than one atomic query. They
	// can only be checked once the atomic queries' answers are joined.
	Filters []atom.Atom
}

// Decompose splits q into atomic queries, in no particular order.
//
// Variables that appear only in predicates get an untyped isa atom so that
// they can be enumerated. If appends is not nil, it's called with the type of
// each relation atom with more than one role player; when it returns true
// (because some rule adds role players to existing relations of that type),
// the atom is rewritten into one single-role-player relation atom per role
// player, all sharing the relation variable.
func (q *Conjunctive) Decompose(appends func(relationType string) bool) (Decomposition, error) {
	var selectable []atom.Atom
	covered := make(map[atom.Var]bool)
	for _, a := range q.Selectable() {
		for _, v := range a.Vars() {
			covered[v] = true
		}
		rel, ok := a.(*atom.Relation)
		if ok && appends != nil && len(rel.RolePlayers) > 1 && appends(rel.Type) {
			for _, rp := range rel.RolePlayers {
				selectable = append(selectable, &atom.Relation{
					Var:         rel.Var,
					Type:        rel.Type,
					RolePlayers: []atom.RolePlayer{rp},
				})
			}
			continue
		}
		selectable = append(selectable, a)
	}
	predicates := q.Predicates()
	for _, p := range predicates {
		for _, v := range p.Vars() {
			if !covered[v] {
				covered[v] = true
				selectable = append(selectable, &atom.Isa{Var: v})
			}
		}
	}
	support := make([][]atom.Atom, len(selectable))
	var res Decomposition
	for _, p := range predicates {
		attached := false
		for i, sel := range selectable {
			if containsAll(sel.Vars(), p.Vars()) {
				support[i] = append(support[i], p)
				attached = true
			}
		}
		if !attached {
			res.Filters = append(res.Filters, p)
		}
	}
	seen := make(map[string]bool)
	for i, sel := range selectable {
		k := atom.KeyOf(sel)
		if seen[k] {
			continue
		}
		seen[k] = true
		a, err := NewAtomic(q.schema, append([]atom.Atom{sel}, support[i]...)...)
		if err != nil {
			return Decomposition{}, err
		}
		res.Atomics = append(res.Atomics, a)
	}
	return res, nil
}

func containsAll(set []atom.Var, vars []atom.Var) bool {
	for _, v := range vars {
		found := false
		for _, s := range set {
			if s == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
