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

// Package query defines conjunctive and atomic queries, the unification
// algebra between them, and how conjunctive queries decompose into atomic
// ones.
package query

import (
	"sort"
	"strings"
	"sync"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/unifier"
)

// Conjunctive is an immutable set of atoms sharing a variable namespace. Two
// conjunctive queries are equal if one is a variable renaming of the other;
// see Key.
//
// Derived data is computed lazily and is safe for concurrent use.
type Conjunctive struct {
	atoms  []atom.Atom
	schema *schema.Schema

	canonOnce sync.Once
	canon     labelling

	structOnce sync.Once
	structural labelling

	derivedOnce sync.Once
	vars        []atom.Var
	base        answer.Substitution
	varTypes    map[atom.Var][]string
}

// NewConjunctive returns a query over the given atoms. Duplicate atoms are
// dropped. The schema may be nil.
func NewConjunctive(s *schema.Schema, atoms ...atom.Atom) *Conjunctive {
	q := &Conjunctive{schema: s}
	seen := make(map[string]bool, len(atoms))
	keys := make(map[atom.Atom]string, len(atoms))
	for _, a := range atoms {
		k := atom.KeyOf(a)
		if !seen[k] {
			seen[k] = true
			keys[a] = k
			q.atoms = append(q.atoms, a)
		}
	}
	sort.Slice(q.atoms, func(i, j int) bool {
		return keys[q.atoms[i]] < keys[q.atoms[j]]
	})
	return q
}

// Schema returns the schema the query is interpreted against.
func (q *Conjunctive) Schema() *schema.Schema {
	return q.schema
}

// Atoms returns the query's atoms.
func (q *Conjunctive) Atoms() []atom.Atom {
	return append([]atom.Atom(nil), q.atoms...)
}

// Selectable returns the query's selectable atoms.
func (q *Conjunctive) Selectable() []atom.Atom {
	var res []atom.Atom
	for _, a := range q.atoms {
		if a.Selectable() {
			res = append(res, a)
		}
	}
	return res
}

// Predicates returns the query's non-selectable atoms.
func (q *Conjunctive) Predicates() []atom.Atom {
	var res []atom.Atom
	for _, a := range q.atoms {
		if !a.Selectable() {
			res = append(res, a)
		}
	}
	return res
}

func (q *Conjunctive) derive() {
	q.derivedOnce.Do(func() {
		seen := make(map[atom.Var]bool)
		bindings := make(map[atom.Var]atom.Concept)
		for _, a := range q.atoms {
			for _, v := range a.Vars() {
				if !seen[v] {
					seen[v] = true
					q.vars = append(q.vars, v)
				}
			}
			if id, ok := a.(*atom.ID); ok {
				if _, bound := bindings[id.Var]; !bound {
					bindings[id.Var] = atom.Concept{ID: id.ID}
				}
			}
		}
		sort.Slice(q.vars, func(i, j int) bool { return q.vars[i] < q.vars[j] })
		q.base = answer.New(bindings, answer.Lookup{})
		q.varTypes = inferVarTypes(q.schema, q.atoms)
	})
}

// Vars returns the query's variables in sorted order.
func (q *Conjunctive) Vars() []atom.Var {
	q.derive()
	return append([]atom.Var(nil), q.vars...)
}

// HasVar returns true if v appears in the query.
func (q *Conjunctive) HasVar(v atom.Var) bool {
	q.derive()
	i := sort.Search(len(q.vars), func(i int) bool { return q.vars[i] >= v })
	return i < len(q.vars) && q.vars[i] == v
}

// BaseSubstitution returns the bindings implied by the query's identity
// constraints alone.
func (q *Conjunctive) BaseSubstitution() answer.Substitution {
	q.derive()
	return q.base
}

// IDs returns the identifier each identity-constrained variable is bound to.
func (q *Conjunctive) IDs() map[atom.Var]string {
	base := q.BaseSubstitution()
	res := make(map[atom.Var]string, base.Len())
	for _, v := range base.Vars() {
		c, _ := base.Get(v)
		res[v] = c.ID
	}
	return res
}

// VarTypes returns the types each variable may have, as implied by the
// query's type and relation constraints and the schema's role definitions.
// Variables with no known type are absent.
func (q *Conjunctive) VarTypes() map[atom.Var][]string {
	q.derive()
	res := make(map[atom.Var][]string, len(q.varTypes))
	for v, types := range q.varTypes {
		res[v] = append([]string(nil), types...)
	}
	return res
}

// IsGround returns true if every variable is bound by an identity constraint.
func (q *Conjunctive) IsGround() bool {
	q.derive()
	return q.base.Len() == len(q.vars)
}

func (q *Conjunctive) canonical() labelling {
	q.canonOnce.Do(func() {
		q.canon = canonicalize(q.atoms, false)
	})
	return q.canon
}

func (q *Conjunctive) structuralLabelling() labelling {
	q.structOnce.Do(func() {
		q.structural = canonicalize(q.atoms, true)
	})
	return q.structural
}

// Key implements cmp.Key. Alpha-equivalent queries have equal keys.
func (q *Conjunctive) Key(b *strings.Builder) {
	b.WriteString(q.canonical().key)
}

// CanonicalKey returns the same string Key writes.
func (q *Conjunctive) CanonicalKey() string {
	return q.canonical().key
}

// StructuralKey is like CanonicalKey but ignores the concrete identifiers in
// identity constraints.
func (q *Conjunctive) StructuralKey() string {
	return q.structuralLabelling().key
}

// Canonical returns a one-to-one unifier from the query's variables to the
// canonical variables used in its key. Alpha-equivalent queries map to the
// same canonical variables.
func (q *Conjunctive) Canonical() unifier.Unifier {
	return unifier.FromMap(q.canonical().names)
}

// StructuralCanonical is like Canonical but for StructuralKey.
func (q *Conjunctive) StructuralCanonical() unifier.Unifier {
	return unifier.FromMap(q.structuralLabelling().names)
}

// Equal returns true if q and other are alpha-equivalent.
func (q *Conjunctive) Equal(other *Conjunctive) bool {
	return q.CanonicalKey() == other.CanonicalKey()
}

// WithAtoms returns a new query with the atoms of q plus the given ones.
func (q *Conjunctive) WithAtoms(atoms ...atom.Atom) *Conjunctive {
	return NewConjunctive(q.schema, append(q.Atoms(), atoms...)...)
}

// WithSubstitution returns a new query in which every variable of q bound in s
// is fixed by an identity constraint. Bindings of variables not in q are
// ignored. If nothing changes, q itself is returned.
func (q *Conjunctive) WithSubstitution(s answer.Substitution) *Conjunctive {
	base := q.BaseSubstitution()
	var extra []atom.Atom
	for _, v := range s.Vars() {
		if !q.HasVar(v) {
			continue
		}
		c, _ := s.Get(v)
		if existing, ok := base.Get(v); ok && existing.ID == c.ID {
			continue
		}
		extra = append(extra, &atom.ID{Var: v, ID: c.ID})
	}
	if len(extra) == 0 {
		return q
	}
	return q.WithAtoms(extra...)
}

// Rename returns a new query with every variable v replaced by fn(v).
func (q *Conjunctive) Rename(fn func(atom.Var) atom.Var) *Conjunctive {
	atoms := make([]atom.Atom, len(q.atoms))
	for i, a := range q.atoms {
		atoms[i] = a.Rename(fn)
	}
	return NewConjunctive(q.schema, atoms...)
}

// String returns the atoms of the query, like "{$x isa person; $x id V1}".
func (q *Conjunctive) String() string {
	parts := make([]string, len(q.atoms))
	for i, a := range q.atoms {
		parts[i] = a.String()
	}
	return "{" + strings.Join(parts, "; ") + "}"
}
