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

// Package unifier defines variable mappings between queries.
//
// A Unifier maps each variable of a child query to one or more variables of a
// parent query. A MultiUnifier holds every Unifier found between two queries;
// it distinguishes "no valid mapping" (empty) from "no mapping was ever
// possible" (non-existent).
package unifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
)

// Mode selects the notion of equivalence used when unifying two queries.
type Mode uint8

// The possible Modes.
const (
	// Exact requires identical constraints up to variable renaming.
	Exact Mode = iota + 1
	// Rule unifies a rule head (the child) with a query atom (the parent). The
	// head may bind loosely: untyped roles and types in the query match any.
	Rule
	// Subsumptive allows the parent to be more general than the child.
	Subsumptive
	// Structural is like Exact but ignores the values of identity constraints.
	Structural
)

func (m Mode) String() string {
	switch m {
	case Exact:
		return "exact"
	case Rule:
		return "rule"
	case Subsumptive:
		return "subsumptive"
	case Structural:
		return "structural"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Unifier maps child variables to parent variables. It is immutable.
type Unifier struct {
	m map[atom.Var][]atom.Var
}

// Builder accumulates the mappings of a Unifier.
type Builder struct {
	m map[atom.Var][]atom.Var
}

// Add maps child to parent. Adding the same pair twice has no effect.
func (b *Builder) Add(child, parent atom.Var) *Builder {
	if b.m == nil {
		b.m = make(map[atom.Var][]atom.Var)
	}
	for _, p := range b.m[child] {
		if p == parent {
			return b
		}
	}
	b.m[child] = append(b.m[child], parent)
	return b
}

// Build returns the Unifier. The builder may continue to be used afterwards
// without affecting the returned Unifier.
func (b *Builder) Build() Unifier {
	u := Unifier{m: make(map[atom.Var][]atom.Var, len(b.m))}
	for c, ps := range b.m {
		ps = append([]atom.Var(nil), ps...)
		sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
		u.m[c] = ps
	}
	return u
}

// FromMap returns a one-to-one Unifier mapping each key of m to its value.
func FromMap(m map[atom.Var]atom.Var) Unifier {
	var b Builder
	for c, p := range m {
		b.Add(c, p)
	}
	return b.Build()
}

// Identity returns the Unifier that maps each variable to itself.
func Identity(vars []atom.Var) Unifier {
	var b Builder
	for _, v := range vars {
		b.Add(v, v)
	}
	return b.Build()
}

// Get returns the parent variables that child maps to.
func (u Unifier) Get(child atom.Var) []atom.Var {
	return u.m[child]
}

// Domain returns the mapped child variables in sorted order.
func (u Unifier) Domain() []atom.Var {
	res := make([]atom.Var, 0, len(u.m))
	for c := range u.m {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Range returns the distinct parent variables in sorted order.
func (u Unifier) Range() []atom.Var {
	seen := make(map[atom.Var]bool)
	var res []atom.Var
	for _, ps := range u.m {
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				res = append(res, p)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Len returns the number of mapped child variables.
func (u Unifier) Len() int {
	return len(u.m)
}

// IsFunctional returns true if each child variable maps to exactly one parent
// variable.
func (u Unifier) IsFunctional() bool {
	for _, ps := range u.m {
		if len(ps) != 1 {
			return false
		}
	}
	return true
}

// Inverse returns the Unifier mapping parent variables back to child
// variables.
func (u Unifier) Inverse() Unifier {
	var b Builder
	for c, ps := range u.m {
		for _, p := range ps {
			b.Add(p, c)
		}
	}
	return b.Build()
}

// Merge returns a Unifier with the mappings of both u and other.
func (u Unifier) Merge(other Unifier) Unifier {
	var b Builder
	for _, src := range []Unifier{u, other} {
		for c, ps := range src.m {
			for _, p := range ps {
				b.Add(c, p)
			}
		}
	}
	return b.Build()
}

// Compose returns the Unifier that applies u and then next.
func (u Unifier) Compose(next Unifier) Unifier {
	var b Builder
	for c, ps := range u.m {
		for _, p := range ps {
			for _, n := range next.m[p] {
				b.Add(c, n)
			}
		}
	}
	return b.Build()
}

// Apply renames the variables of a child substitution into the parent's
// namespace. Variables that aren't mapped are dropped. It returns false if
// two child variables mapped to the same parent variable are bound to
// different concepts. The explanation is kept.
func (u Unifier) Apply(s answer.Substitution) (answer.Substitution, bool) {
	bindings := make(map[atom.Var]atom.Concept, s.Len())
	for _, c := range s.Vars() {
		concept, _ := s.Get(c)
		for _, p := range u.m[c] {
			if existing, ok := bindings[p]; ok && existing.ID != concept.ID {
				return answer.Substitution{}, false
			}
			bindings[p] = concept
		}
	}
	return answer.New(bindings, s.Explanation()), true
}

// Rename returns fn for use with atom.Atom.Rename: it maps each child
// variable to its first parent variable and leaves unmapped variables alone.
func (u Unifier) Rename() func(atom.Var) atom.Var {
	return func(v atom.Var) atom.Var {
		if ps := u.m[v]; len(ps) > 0 {
			return ps[0]
		}
		return v
	}
}

// Equal returns true if u and other have exactly the same mappings.
func (u Unifier) Equal(other Unifier) bool {
	return u.String() == other.String()
}

// Key implements cmp.Key.
func (u Unifier) Key(b *strings.Builder) {
	b.WriteString(u.String())
}

// String returns the mappings in a form like "{$x->$a, $y->[$b $c]}".
func (u Unifier) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range u.Domain() {
		if i > 0 {
			b.WriteString(", ")
		}
		ps := u.m[c]
		if len(ps) == 1 {
			fmt.Fprintf(&b, "%v->%v", c, ps[0])
		} else {
			fmt.Fprintf(&b, "%v->%v", c, ps)
		}
	}
	b.WriteByte('}')
	return b.String()
}
