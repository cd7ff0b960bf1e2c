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
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/unifier"
)

// plan is the store's implementation of graph.Plan. The variables bound by
// ids are looked up first; then steps are evaluated left to right, and
// filters are checked as soon as their variables are bound.
type plan struct {
	ids     map[atom.Var]string
	steps   []atom.Atom
	filters []atom.Atom
	vars    []atom.Var
}

// Plan implements graph.Planner. Selectable atoms are evaluated greedily,
// preferring the atom with the most variables already bound.
func (store *Store) Plan(q *query.Conjunctive) (graph.Plan, error) {
	p := &plan{
		ids:  q.IDs(),
		vars: q.Vars(),
	}
	for _, a := range q.Predicates() {
		if _, isID := a.(*atom.ID); !isID {
			p.filters = append(p.filters, a)
		}
	}
	bound := make(map[atom.Var]bool, len(p.vars))
	for v := range p.ids {
		bound[v] = true
	}
	remaining := q.Selectable()
	covered := make(map[atom.Var]bool)
	for _, a := range remaining {
		for _, v := range a.Vars() {
			covered[v] = true
		}
	}
	// Variables that only appear in filters still need enumerating.
	for _, v := range p.vars {
		if !covered[v] && !bound[v] {
			remaining = append(remaining, &atom.Isa{Var: v})
		}
	}
	for len(remaining) > 0 {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if boundCount(remaining[i], bound) > boundCount(remaining[best], bound) {
				best = i
			}
		}
		next := remaining[best]
		p.steps = append(p.steps, next)
		for _, v := range next.Vars() {
			bound[v] = true
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return p, nil
}

func boundCount(a atom.Atom, bound map[atom.Var]bool) int {
	n := 0
	for _, v := range a.Vars() {
		if bound[v] {
			n++
		}
	}
	return n
}

// Order implements graph.Planner. Like Plan, it picks the atomic query with
// the most variables bound, counting variables bound by identity constraints
// and by the queries ordered before it.
func (store *Store) Order(atomics []*query.Atomic) []*query.Atomic {
	remaining := append([]*query.Atomic(nil), atomics...)
	res := make([]*query.Atomic, 0, len(atomics))
	bound := make(map[atom.Var]bool)
	score := func(q *query.Atomic) int {
		n := 0
		ids := q.IDs()
		for _, v := range q.Vars() {
			if _, ok := ids[v]; ok || bound[v] {
				n++
			}
		}
		return n
	}
	for len(remaining) > 0 {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if score(remaining[i]) > score(remaining[best]) {
				best = i
			}
		}
		next := remaining[best]
		res = append(res, next)
		for _, v := range next.Vars() {
			bound[v] = true
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return res
}

// Transform implements graph.Plan.
func (p *plan) Transform(u unifier.Unifier, ids map[atom.Var]string) graph.Plan {
	rename := u.Rename()
	res := &plan{
		ids:     make(map[atom.Var]string, len(ids)),
		steps:   make([]atom.Atom, len(p.steps)),
		filters: make([]atom.Atom, len(p.filters)),
		vars:    make([]atom.Var, len(p.vars)),
	}
	for v, id := range ids {
		res.ids[v] = id
	}
	for i, a := range p.steps {
		res.steps[i] = a.Rename(rename)
	}
	for i, a := range p.filters {
		res.filters[i] = a.Rename(rename)
	}
	for i, v := range p.vars {
		res.vars[i] = rename(v)
	}
	sort.Slice(res.vars, func(i, j int) bool { return res.vars[i] < res.vars[j] })
	return res
}

// String returns a description of the plan like
// "lookup {$x=V1} then [$r (friend: $x, friend: $y) isa friendship] filter [$x != $y]".
func (p *plan) String() string {
	var b strings.Builder
	b.WriteString("lookup {")
	vars := make([]atom.Var, 0, len(p.ids))
	for v := range p.ids {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	for i, v := range vars {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v=%s", v, p.ids[v])
	}
	b.WriteString("} then [")
	b.WriteString(joinAtoms(p.steps))
	b.WriteByte(']')
	if len(p.filters) > 0 {
		b.WriteString(" filter [")
		b.WriteString(joinAtoms(p.filters))
		b.WriteByte(']')
	}
	return b.String()
}

func joinAtoms(atoms []atom.Atom) string {
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, "; ")
}
