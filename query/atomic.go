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
	"fmt"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	log "github.com/sirupsen/logrus"
)

// Atomic is a conjunctive query with exactly one selectable atom, plus
// non-selectable atoms that constrain only that atom's variables.
type Atomic struct {
	*Conjunctive
	selectable atom.Atom
}

// NewAtomic returns an atomic query over the given atoms. It returns an error
// unless exactly one atom is selectable and every other atom refers only to
// the selectable atom's variables.
func NewAtomic(s *schema.Schema, atoms ...atom.Atom) (*Atomic, error) {
	return AtomicOf(NewConjunctive(s, atoms...))
}

// AtomicOf returns q as an atomic query. It returns the same errors as
// NewAtomic.
func AtomicOf(q *Conjunctive) (*Atomic, error) {
	selectable := q.Selectable()
	if len(selectable) != 1 {
		return nil, fmt.Errorf("atomic query must have exactly 1 selectable atom, got %d: %v",
			len(selectable), q)
	}
	sel := selectable[0]
	allowed := make(map[atom.Var]bool)
	for _, v := range sel.Vars() {
		allowed[v] = true
	}
	for _, p := range q.Predicates() {
		for _, v := range p.Vars() {
			if !allowed[v] {
				return nil, fmt.Errorf("atomic query constraint %v refers to %v, which is not in %v",
					p, v, sel)
			}
		}
	}
	return &Atomic{Conjunctive: q, selectable: sel}, nil
}

// MustAtomic is like NewAtomic but panics on error. It's meant for tests and
// for atoms known to be valid.
func MustAtomic(s *schema.Schema, atoms ...atom.Atom) *Atomic {
	a, err := NewAtomic(s, atoms...)
	if err != nil {
		log.Panicf("MustAtomic: %v", err)
	}
	return a
}

// Atom returns the selectable atom.
func (q *Atomic) Atom() atom.Atom {
	return q.selectable
}

// Query returns q as a plain conjunctive query.
func (q *Atomic) Query() *Conjunctive {
	return q.Conjunctive
}

// FamilyKey groups atomic queries that may subsume one another: those with
// the same kind of selectable atom and the same target type.
func (q *Atomic) FamilyKey() string {
	return familyKey(q.selectable, atom.TypeOf(q.selectable))
}

// FamilyKeyFor returns the family key of atomic queries whose selectable atom
// is the same variant as q's, but whose target type is t.
func (q *Atomic) FamilyKeyFor(t string) string {
	return familyKey(q.selectable, t)
}

func familyKey(a atom.Atom, t string) string {
	switch a.(type) {
	case *atom.Isa:
		return "isa:" + t
	case *atom.Relation:
		return "rel:" + t
	}
	log.Panicf("familyKey: unexpected selectable atom type %T", a)
	return ""
}

// WithSubstitution is like Conjunctive.WithSubstitution, keeping q atomic.
func (q *Atomic) WithSubstitution(s answer.Substitution) *Atomic {
	bound := q.Conjunctive.WithSubstitution(s)
	if bound == q.Conjunctive {
		return q
	}
	return &Atomic{Conjunctive: bound, selectable: q.selectable}
}

// Rename is like Conjunctive.Rename, keeping q atomic.
func (q *Atomic) Rename(fn func(atom.Var) atom.Var) *Atomic {
	return &Atomic{
		Conjunctive: q.Conjunctive.Rename(fn),
		selectable:  q.selectable.Rename(fn),
	}
}

// InferTypes is like Conjunctive.InferTypes, keeping q atomic.
func (q *Atomic) InferTypes() *Atomic {
	inferred := q.Conjunctive.InferTypes()
	if inferred == q.Conjunctive {
		return q
	}
	res, err := AtomicOf(inferred)
	if err != nil {
		log.Panicf("InferTypes made %v non-atomic: %v", q, err)
	}
	return res
}

// Admits returns true if s satisfies all of the query's non-selectable atoms
// and the types of the concepts bound to the selectable atom's variables are
// consistent with it. Concepts of unknown type are given the benefit of the
// doubt.
func (q *Atomic) Admits(s answer.Substitution) bool {
	get := s.Lookup()
	for _, p := range q.Predicates() {
		if !atom.Check(p, get) {
			return false
		}
	}
	var v atom.Var
	var t string
	switch sel := q.selectable.(type) {
	case *atom.Isa:
		v, t = sel.Var, sel.Type
	case *atom.Relation:
		v, t = sel.Var, sel.Type
	}
	if c, ok := get(v); ok && c.Type != "" && !q.schema.IsSubtype(c.Type, t) {
		return false
	}
	return true
}
