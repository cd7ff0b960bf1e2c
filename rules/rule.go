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

// Package rules holds inference rules and the dependencies between them.
package rules

import (
	"fmt"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query"
)

// A Rule states that whenever its body holds, so does its head. Rules are
// immutable once constructed.
type Rule struct {
	// A unique name for the rule, used in explanations and logs.
	ID string
	// The conditions under which the rule applies.
	Body *query.Conjunctive
	// The conclusion: a type constraint or a relation constraint.
	Head atom.Atom

	headQuery *query.Atomic
}

// New validates and returns a rule. The head must be a typed *atom.Isa or
// *atom.Relation whose role players all name a role, and all of the head's
// variables must appear in the body, except for a relation head's own
// variable.
func New(id string, body *query.Conjunctive, head atom.Atom) (*Rule, error) {
	if id == "" {
		return nil, fmt.Errorf("rule ID must not be empty")
	}
	if len(body.Selectable()) == 0 {
		return nil, fmt.Errorf("rule %s: body must have at least one type or relation constraint", id)
	}
	var free []atom.Var
	switch h := head.(type) {
	case *atom.Isa:
		if h.Type == "" {
			return nil, fmt.Errorf("rule %s: head %v must have a type", id, h)
		}
		free = []atom.Var{h.Var}
	case *atom.Relation:
		if h.Type == "" {
			return nil, fmt.Errorf("rule %s: head %v must have a type", id, h)
		}
		if len(h.RolePlayers) == 0 {
			return nil, fmt.Errorf("rule %s: head %v must have role players", id, h)
		}
		for _, rp := range h.RolePlayers {
			if rp.Role == "" {
				return nil, fmt.Errorf("rule %s: head %v must name the role of %v", id, h, rp.Player)
			}
			free = append(free, rp.Player)
		}
	default:
		return nil, fmt.Errorf("rule %s: head %v must be a type or relation constraint", id, head)
	}
	for _, v := range free {
		if !body.HasVar(v) {
			return nil, fmt.Errorf("rule %s: head variable %v does not appear in the body", id, v)
		}
	}
	r := &Rule{ID: id, Body: body, Head: head}
	headVars := make(map[atom.Var]bool)
	for _, v := range head.Vars() {
		headVars[v] = true
	}
	atoms := []atom.Atom{head}
	for _, a := range body.Predicates() {
		switch a := a.(type) {
		case *atom.ID:
			if headVars[a.Var] {
				atoms = append(atoms, a)
			}
		case *atom.Value:
			if headVars[a.Var] && a.Ref == "" {
				atoms = append(atoms, a)
			}
		}
	}
	hq, err := query.NewAtomic(body.Schema(), atoms...)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %v", id, err)
	}
	r.headQuery = hq
	return r, nil
}

// MustNew is like New but panics on error. It's meant for tests.
func MustNew(id string, body *query.Conjunctive, head atom.Atom) *Rule {
	r, err := New(id, body, head)
	if err != nil {
		panic(err)
	}
	return r
}

// HeadQuery returns the head as an atomic query, including any identity and
// value constraints the body places on the head's variables.
func (r *Rule) HeadQuery() *query.Atomic {
	return r.headQuery
}

// HeadType returns the type the rule concludes.
func (r *Rule) HeadType() string {
	return atom.TypeOf(r.Head)
}

// RequiresMaterialisation returns true if applying the rule yields a relation
// that must be stored before it can be referred to.
func (r *Rule) RequiresMaterialisation() bool {
	_, isRelation := r.Head.(*atom.Relation)
	return isRelation
}

// AppendsRolePlayers returns true if the rule adds role players to an
// existing relation: its head is a relation whose variable is bound by the
// body.
func (r *Rule) AppendsRolePlayers() bool {
	rel, ok := r.Head.(*atom.Relation)
	return ok && r.Body.HasVar(rel.Var)
}

// String returns the rule in a form like
// "transitive: {...} => $r (...) isa t".
func (r *Rule) String() string {
	return fmt.Sprintf("%s: %v => %v", r.ID, r.Body, r.Head)
}
