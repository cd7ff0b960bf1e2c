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

// Package answer defines substitutions: the bindings of query variables to
// concepts that make up query results, along with how they were derived.
package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/atom"
)

// Substitution is an immutable mapping from variables to concepts, along with
// an explanation of how it came to be. The zero value is an empty
// substitution with no explanation.
type Substitution struct {
	bindings    map[atom.Var]atom.Concept
	explanation Explanation
}

// New returns a substitution with a copy of the given bindings.
func New(bindings map[atom.Var]atom.Concept, explanation Explanation) Substitution {
	s := Substitution{
		bindings:    make(map[atom.Var]atom.Concept, len(bindings)),
		explanation: explanation,
	}
	for v, c := range bindings {
		s.bindings[v] = c
	}
	return s
}

// Get returns the concept bound to v.
func (s Substitution) Get(v atom.Var) (atom.Concept, bool) {
	c, ok := s.bindings[v]
	return c, ok
}

// Lookup returns s.Get as an atom.Lookup.
func (s Substitution) Lookup() atom.Lookup {
	return s.Get
}

// Len returns the number of bound variables.
func (s Substitution) Len() int {
	return len(s.bindings)
}

// Vars returns the bound variables in sorted order.
func (s Substitution) Vars() []atom.Var {
	vars := make([]atom.Var, 0, len(s.bindings))
	for v := range s.bindings {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

// Covers returns true if every one of vars is bound.
func (s Substitution) Covers(vars []atom.Var) bool {
	for _, v := range vars {
		if _, ok := s.bindings[v]; !ok {
			return false
		}
	}
	return true
}

// Explanation returns how the substitution was derived. It's nil if unknown.
func (s Substitution) Explanation() Explanation {
	return s.explanation
}

// WithExplanation returns a copy of s with the given explanation.
func (s Substitution) WithExplanation(e Explanation) Substitution {
	s.explanation = e
	return s
}

// With returns a copy of s that also binds v to c, replacing any existing
// binding of v.
func (s Substitution) With(v atom.Var, c atom.Concept) Substitution {
	res := New(s.bindings, s.explanation)
	res.bindings[v] = c
	return res
}

// Project returns a copy of s with only the bindings for the given variables.
// The explanation is kept.
func (s Substitution) Project(vars []atom.Var) Substitution {
	res := Substitution{
		bindings:    make(map[atom.Var]atom.Concept, len(vars)),
		explanation: s.explanation,
	}
	for _, v := range vars {
		if c, ok := s.bindings[v]; ok {
			res.bindings[v] = c
		}
	}
	return res
}

// Extend returns the union of the bindings of s and other, keeping the
// explanation of s. It returns false if s and other bind the same variable to
// different concepts.
func (s Substitution) Extend(other Substitution) (Substitution, bool) {
	res := New(s.bindings, s.explanation)
	for v, c := range other.bindings {
		existing, ok := res.bindings[v]
		if !ok {
			res.bindings[v] = c
			continue
		}
		if existing.ID != c.ID {
			return Substitution{}, false
		}
		res.bindings[v] = richer(existing, c)
	}
	return res, true
}

// Merge returns the union of the bindings of s and other with a Join
// explanation over both. It returns false if s and other bind the same
// variable to different concepts.
func (s Substitution) Merge(other Substitution) (Substitution, bool) {
	res, ok := s.Extend(other)
	if !ok {
		return res, false
	}
	res.explanation = joinOf(s, other)
	return res, true
}

// richer returns whichever of two handles to the same concept carries more
// information.
func richer(a, b atom.Concept) atom.Concept {
	if a.Type == "" && b.Type != "" {
		a.Type = b.Type
	}
	if a.Value == nil && b.Value != nil {
		a.Value = b.Value
	}
	return a
}

// Key implements cmp.Key. It serializes the bindings only; two substitutions
// with the same bindings but different explanations have the same key.
func (s Substitution) Key(b *strings.Builder) {
	for i, v := range s.Vars() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(string(v))
		b.WriteByte('=')
		b.WriteString(s.bindings[v].ID)
	}
}

// String returns the bindings in a form like "{$x=V1, $y=V2}".
func (s Substitution) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range s.Vars() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v=%v", v, s.bindings[v])
	}
	b.WriteByte('}')
	return b.String()
}
