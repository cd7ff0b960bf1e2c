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

package answer

import (
	"fmt"
	"strings"
)

// Explanation describes how a substitution was derived. It's one of Lookup,
// RuleApplication, or Join.
type Explanation interface {
	String() string
	anExplanation()
}

// Lookup explains a substitution that was read directly from the graph store.
type Lookup struct{}

// RuleApplication explains a substitution produced by applying a rule to the
// answer of the rule's body.
type RuleApplication struct {
	// The identifier of the rule that was applied.
	Rule string
	// How the rule body's answer was derived.
	Premise Explanation
}

// Join explains a substitution produced by merging partial substitutions.
type Join struct {
	Parts []Substitution
}

func (Lookup) anExplanation()          {}
func (RuleApplication) anExplanation() {}
func (Join) anExplanation()            {}

func (Lookup) String() string {
	return "lookup"
}

func (r RuleApplication) String() string {
	if r.Premise == nil {
		return fmt.Sprintf("rule(%s)", r.Rule)
	}
	return fmt.Sprintf("rule(%s, %v)", r.Rule, r.Premise)
}

func (j Join) String() string {
	parts := make([]string, len(j.Parts))
	for i, p := range j.Parts {
		parts[i] = fmt.Sprintf("%v: %v", p, p.explanation)
	}
	return "join[" + strings.Join(parts, "; ") + "]"
}

// joinOf composes the explanation of merging a and b. Nested joins are
// flattened, and empty substitutions with no explanation are left out.
func joinOf(a, b Substitution) Explanation {
	var parts []Substitution
	for _, s := range []Substitution{a, b} {
		switch e := s.explanation.(type) {
		case Join:
			parts = append(parts, e.Parts...)
		case nil:
			if s.Len() > 0 {
				parts = append(parts, s)
			}
		default:
			parts = append(parts, s)
		}
	}
	if len(parts) == 1 {
		return parts[0].explanation
	}
	return Join{Parts: parts}
}

// Rules returns the identifiers of every rule applied anywhere in the
// explanation, in depth-first order. It returns nil for pure lookups.
func Rules(e Explanation) []string {
	switch e := e.(type) {
	case RuleApplication:
		return append([]string{e.Rule}, Rules(e.Premise)...)
	case Join:
		var res []string
		for _, p := range e.Parts {
			res = append(res, Rules(p.explanation)...)
		}
		return res
	}
	return nil
}
