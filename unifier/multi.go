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

package unifier

import (
	"fmt"
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/util/cmp"
)

// MultiUnifier is the set of all Unifiers found between two queries. The zero
// value is the non-existent MultiUnifier.
type MultiUnifier struct {
	exists   bool
	unifiers []Unifier
}

// NonExistent returns the MultiUnifier for a pair of queries that could never
// unify, such as atoms of different variants.
func NonExistent() MultiUnifier {
	return MultiUnifier{}
}

// Empty returns the MultiUnifier for a pair of queries that were compared but
// have no valid mapping.
func Empty() MultiUnifier {
	return MultiUnifier{exists: true}
}

// Of returns a MultiUnifier holding the given unifiers, with duplicates
// removed. Of with no arguments is the same as Empty.
func Of(unifiers ...Unifier) MultiUnifier {
	res := MultiUnifier{exists: true}
	seen := make(map[string]bool, len(unifiers))
	for _, u := range unifiers {
		k := cmp.GetKey(u)
		if !seen[k] {
			seen[k] = true
			res.unifiers = append(res.unifiers, u)
		}
	}
	return res
}

// Exists returns false for the non-existent MultiUnifier.
func (m MultiUnifier) Exists() bool {
	return m.exists
}

// IsEmpty returns true if the MultiUnifier holds no unifiers. This is true for
// both Empty and NonExistent.
func (m MultiUnifier) IsEmpty() bool {
	return len(m.unifiers) == 0
}

// Len returns the number of unifiers.
func (m MultiUnifier) Len() int {
	return len(m.unifiers)
}

// Unifiers returns the unifiers held.
func (m MultiUnifier) Unifiers() []Unifier {
	return append([]Unifier(nil), m.unifiers...)
}

// Inverse returns the MultiUnifier holding the inverse of each unifier.
func (m MultiUnifier) Inverse() MultiUnifier {
	res := MultiUnifier{exists: m.exists}
	for _, u := range m.unifiers {
		res.unifiers = append(res.unifiers, u.Inverse())
	}
	return res
}

// Apply applies every unifier to s and returns the distinct results.
func (m MultiUnifier) Apply(s answer.Substitution) []answer.Substitution {
	var res []answer.Substitution
	seen := make(map[string]bool)
	for _, u := range m.unifiers {
		mapped, ok := u.Apply(s)
		if !ok {
			continue
		}
		k := cmp.GetKey(mapped)
		if !seen[k] {
			seen[k] = true
			res = append(res, mapped)
		}
	}
	return res
}

// First returns the first unifier held, for callers that need any one of
// them. It returns a UnificationError if there are none.
func (m MultiUnifier) First() (Unifier, error) {
	switch {
	case !m.exists:
		return Unifier{}, &UnificationError{Reason: "unifier does not exist"}
	case len(m.unifiers) == 0:
		return Unifier{}, &UnificationError{Reason: "no unifier found"}
	}
	return m.unifiers[0], nil
}

func (m MultiUnifier) String() string {
	if !m.exists {
		return "<non-existent>"
	}
	parts := make([]string, len(m.unifiers))
	for i, u := range m.unifiers {
		parts[i] = u.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// UnificationError is returned when a unifier is required but none exists.
type UnificationError struct {
	Reason string
	Child  string
	Parent string
}

func (e *UnificationError) Error() string {
	if e.Child == "" && e.Parent == "" {
		return "unification error: " + e.Reason
	}
	return fmt.Sprintf("unification error: %s: child %s, parent %s",
		e.Reason, e.Child, e.Parent)
}
