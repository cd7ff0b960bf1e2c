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
	"strings"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/unifier"
	log "github.com/sirupsen/logrus"
)

// Unify returns every unifier from child's variables to parent's variables
// under the given mode.
//
// The result is non-existent if the two selectable atoms are of different
// variants, and empty if they are of the same variant but can't be unified:
// mismatched types or roles, or incompatible identity and value constraints.
func Unify(child, parent *Atomic, mode unifier.Mode) unifier.MultiUnifier {
	s := parent.schema
	if s == nil {
		s = child.schema
	}
	var candidates []unifier.Unifier
	switch c := child.selectable.(type) {
	case *atom.Isa:
		p, ok := parent.selectable.(*atom.Isa)
		if !ok {
			return unifier.NonExistent()
		}
		if !typesUnify(s, c.Type, p.Type, mode) {
			return unifier.Empty()
		}
		var b unifier.Builder
		candidates = append(candidates, b.Add(c.Var, p.Var).Build())
	case *atom.Relation:
		p, ok := parent.selectable.(*atom.Relation)
		if !ok {
			return unifier.NonExistent()
		}
		if !typesUnify(s, c.Type, p.Type, mode) {
			return unifier.Empty()
		}
		candidates = relationUnifiers(c, p, mode)
	default:
		log.Panicf("Unify: unexpected selectable atom type %T", c)
	}
	var valid []unifier.Unifier
	for _, u := range candidates {
		if shapeAllowed(u, mode) && predicatesUnify(child, parent, u, mode) {
			valid = append(valid, u)
		}
	}
	return unifier.Of(valid...)
}

func typesUnify(s *schema.Schema, child, parent string, mode unifier.Mode) bool {
	switch mode {
	case unifier.Exact, unifier.Structural:
		return child == parent
	case unifier.Subsumptive, unifier.Rule:
		return s.IsSubtype(child, parent)
	}
	log.Panicf("unexpected unifier mode %v", mode)
	return false
}

func rolesUnify(child, parent string, mode unifier.Mode) bool {
	if mode == unifier.Rule {
		return parent == "" || parent == child
	}
	return parent == child
}

// relationUnifiers enumerates the ways of assigning each parent role player a
// distinct child role player. Outside of Rule mode, both atoms must have the
// same number of role players.
func relationUnifiers(c, p *atom.Relation, mode unifier.Mode) []unifier.Unifier {
	if mode != unifier.Rule && len(c.RolePlayers) != len(p.RolePlayers) {
		return nil
	}
	if len(c.RolePlayers) < len(p.RolePlayers) {
		return nil
	}
	var res []unifier.Unifier
	used := make([]bool, len(c.RolePlayers))
	assignment := make([]int, len(p.RolePlayers))
	var assign func(i int)
	assign = func(i int) {
		if i == len(p.RolePlayers) {
			var b unifier.Builder
			b.Add(c.Var, p.Var)
			for pi, ci := range assignment {
				b.Add(c.RolePlayers[ci].Player, p.RolePlayers[pi].Player)
			}
			res = append(res, b.Build())
			return
		}
		for ci, crp := range c.RolePlayers {
			if used[ci] || !rolesUnify(crp.Role, p.RolePlayers[i].Role, mode) {
				continue
			}
			used[ci] = true
			assignment[i] = ci
			assign(i + 1)
			used[ci] = false
		}
	}
	assign(0)
	return res
}

// shapeAllowed checks how variables may merge under the mode. Exact and
// Structural unifiers must be one-to-one. A Subsumptive unifier may map one
// child variable to several parent variables (the child repeats a variable
// where the parent has distinct ones), but not the reverse.
func shapeAllowed(u unifier.Unifier, mode unifier.Mode) bool {
	switch mode {
	case unifier.Exact, unifier.Structural:
		return u.IsFunctional() && u.Inverse().IsFunctional()
	case unifier.Subsumptive:
		return u.Inverse().IsFunctional()
	}
	return true
}

// expand renames a child predicate into the parent's namespace, producing one
// atom per combination of parent variables. It returns nil if some variable of
// the predicate isn't mapped.
func expand(p atom.Atom, u unifier.Unifier) []atom.Atom {
	vars := p.Vars()
	choices := make([][]atom.Var, len(vars))
	for i, v := range vars {
		choices[i] = u.Get(v)
		if len(choices[i]) == 0 {
			return nil
		}
	}
	var res []atom.Atom
	current := make(map[atom.Var]atom.Var, len(vars))
	var walk func(i int)
	walk = func(i int) {
		if i == len(vars) {
			res = append(res, p.Rename(func(v atom.Var) atom.Var { return current[v] }))
			return
		}
		for _, target := range choices[i] {
			current[vars[i]] = target
			walk(i + 1)
		}
	}
	walk(0)
	return res
}

func predicateKeys(atoms []atom.Atom, blankIDs bool) map[string]bool {
	res := make(map[string]bool, len(atoms))
	own := func(v atom.Var) string { return v.String() }
	for _, a := range atoms {
		var b strings.Builder
		a.WriteKey(&b, own, blankIDs)
		res[b.String()] = true
	}
	return res
}

func predicatesUnify(child, parent *Atomic, u unifier.Unifier, mode unifier.Mode) bool {
	if mode == unifier.Rule {
		return IsPredicateCompatible(child, parent, u)
	}
	var renamed []atom.Atom
	for _, p := range child.Predicates() {
		renamed = append(renamed, expand(p, u)...)
	}
	blank := mode == unifier.Structural
	childKeys := predicateKeys(renamed, blank)
	parentKeys := predicateKeys(parent.Predicates(), blank)
	for k := range parentKeys {
		if !childKeys[k] {
			return false
		}
	}
	if mode == unifier.Subsumptive {
		return true
	}
	return len(childKeys) == len(parentKeys)
}

// IsPredicateCompatible returns false if, under u, the identity or value
// constraints of child contradict those of parent: the same variable fixed to
// two different concepts, or fixed to a value that violates a comparison on
// the other side. Constraints that can't be compared are assumed compatible.
func IsPredicateCompatible(child, parent *Atomic, u unifier.Unifier) bool {
	type facts struct {
		ids    map[string]bool
		values []*atom.Value
	}
	collect := func(atoms []atom.Atom) map[atom.Var]*facts {
		res := make(map[atom.Var]*facts)
		get := func(v atom.Var) *facts {
			if res[v] == nil {
				res[v] = &facts{ids: make(map[string]bool)}
			}
			return res[v]
		}
		for _, a := range atoms {
			switch a := a.(type) {
			case *atom.ID:
				get(a.Var).ids[a.ID] = true
			case *atom.Value:
				if a.Ref == "" {
					get(a.Var).values = append(get(a.Var).values, a)
				}
			}
		}
		return res
	}
	var renamed []atom.Atom
	for _, p := range child.Predicates() {
		renamed = append(renamed, expand(p, u)...)
	}
	childFacts := collect(renamed)
	parentFacts := collect(parent.Predicates())
	for v, cf := range childFacts {
		pf, ok := parentFacts[v]
		if !ok {
			continue
		}
		if len(cf.ids) > 0 && len(pf.ids) > 0 && !sameKeys(cf.ids, pf.ids) {
			return false
		}
		if !valuesCompatible(cf.values, pf.values) || !valuesCompatible(pf.values, cf.values) {
			return false
		}
	}
	return true
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// valuesCompatible returns false if some equality in fixed pins the value to a
// literal that violates one of the comparisons in others.
func valuesCompatible(fixed, others []*atom.Value) bool {
	for _, f := range fixed {
		if f.Op != atom.EQ {
			continue
		}
		for _, o := range others {
			if !o.Op.Holds(f.Literal, o.Literal) {
				return false
			}
		}
	}
	return true
}

// Subsumes returns true if every answer to child can be obtained from the
// answers to parent. When it does, the returned unifier maps child variables
// to parent variables, and its inverse covers every child variable, so parent
// answers can be renamed into complete child answers.
//
// Queries that compare values between variables never take part in
// subsumption.
func Subsumes(child, parent *Atomic) (unifier.Unifier, bool) {
	if hasValueRef(child) || hasValueRef(parent) {
		return unifier.Unifier{}, false
	}
	childVars := child.Vars()
	for _, u := range Unify(child, parent, unifier.Subsumptive).Unifiers() {
		covered := make(map[atom.Var]bool)
		for _, v := range u.Inverse().Range() {
			covered[v] = true
		}
		complete := len(u.Domain()) > 0
		for _, v := range childVars {
			if !covered[v] {
				complete = false
				break
			}
		}
		if complete {
			return u, true
		}
	}
	return unifier.Unifier{}, false
}

func hasValueRef(q *Atomic) bool {
	for _, p := range q.Predicates() {
		if v, ok := p.(*atom.Value); ok && v.Ref != "" {
			return true
		}
	}
	return false
}
