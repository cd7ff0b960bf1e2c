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

package atom

import (
	log "github.com/sirupsen/logrus"
)

// Lookup returns the concept bound to a variable, if any.
type Lookup func(Var) (Concept, bool)

// Check evaluates a non-selectable atom against the bindings given by get. It
// returns true if the constraint holds, or if it can't be decided yet because
// one of its variables is unbound. Selectable atoms always pass: they're
// checked by whatever produced the bindings.
func Check(a Atom, get Lookup) bool {
	switch a := a.(type) {
	case *Isa, *Relation:
		return true
	case *ID:
		c, ok := get(a.Var)
		return !ok || c.ID == a.ID
	case *Neq:
		l, lok := get(a.Left)
		r, rok := get(a.Right)
		return !lok || !rok || l.ID != r.ID
	case *Value:
		c, ok := get(a.Var)
		if !ok {
			return true
		}
		if c.Value == nil {
			return false
		}
		right := a.Literal
		if a.Ref != "" {
			ref, ok := get(a.Ref)
			if !ok {
				return true
			}
			if ref.Value == nil {
				return false
			}
			right = *ref.Value
		}
		return a.Op.Holds(*c.Value, right)
	}
	log.Panicf("atom.Check: unexpected atom type %T", a)
	return false
}

// Decided returns true if every variable of the atom is bound in get, so
// that Check gives a definite answer.
func Decided(a Atom, get Lookup) bool {
	for _, v := range a.Vars() {
		if _, ok := get(v); !ok {
			return false
		}
	}
	return true
}
