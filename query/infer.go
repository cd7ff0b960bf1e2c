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
	"sort"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
)

// inferVarTypes collects the possible types of each variable from the
// selectable atoms: the type of an isa, the type of a relation, and the
// player types the schema allows for each role.
func inferVarTypes(s *schema.Schema, atoms []atom.Atom) map[atom.Var][]string {
	sets := make(map[atom.Var]map[string]bool)
	add := func(v atom.Var, t string) {
		if t == "" {
			return
		}
		if sets[v] == nil {
			sets[v] = make(map[string]bool)
		}
		sets[v][t] = true
	}
	for _, a := range atoms {
		switch a := a.(type) {
		case *atom.Isa:
			add(a.Var, a.Type)
		case *atom.Relation:
			add(a.Var, a.Type)
			if a.Type == "" {
				continue
			}
			for _, rp := range a.RolePlayers {
				if rp.Role == "" {
					continue
				}
				for _, t := range s.PlayerTypes(a.Type, rp.Role) {
					add(rp.Player, t)
				}
			}
		}
	}
	res := make(map[atom.Var][]string, len(sets))
	for v, set := range sets {
		types := make([]string, 0, len(set))
		for t := range set {
			types = append(types, t)
		}
		sort.Strings(types)
		res[v] = types
	}
	return res
}

// InferTypes returns a query in which untyped relation atoms are given a type
// when the schema has exactly one relation type with all of their roles. If
// nothing can be inferred, q itself is returned.
func (q *Conjunctive) InferTypes() *Conjunctive {
	if q.schema == nil {
		return q
	}
	changed := false
	atoms := q.Atoms()
	for i, a := range atoms {
		rel, ok := a.(*atom.Relation)
		if !ok || rel.Type != "" {
			continue
		}
		var roles []string
		for _, rp := range rel.RolePlayers {
			if rp.Role != "" {
				roles = append(roles, rp.Role)
			}
		}
		if len(roles) == 0 {
			continue
		}
		candidates := q.schema.RelationTypesWithRoles(roles)
		// Subtypes inherit roles, so keep only the most general candidates.
		var roots []string
		for _, c := range candidates {
			isRoot := true
			for _, other := range candidates {
				if other != c && q.schema.IsSubtype(c, other) {
					isRoot = false
					break
				}
			}
			if isRoot {
				roots = append(roots, c)
			}
		}
		if len(roots) != 1 {
			continue
		}
		typed := *rel
		typed.Type = roots[0]
		atoms[i] = &typed
		changed = true
	}
	if !changed {
		return q
	}
	return NewConjunctive(q.schema, atoms...)
}
