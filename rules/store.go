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

package rules

import (
	"fmt"
	"io"
	"sort"

	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/unifier"
	"github.com/ebay/reasoner/util/graphviz"
	log "github.com/sirupsen/logrus"
)

// Store is an immutable set of rules along with their dependency graph. It's
// safe for concurrent use.
type Store struct {
	schema *schema.Schema
	// Sorted by ID.
	rules []*Rule
	byID  map[string]*Rule
	// dependsOn[r] lists, in sorted order, the IDs of the rules whose heads
	// can produce answers to some atom in the body of rule r.
	dependsOn map[string][]string
	// The rules whose conclusions feed back into their own bodies, directly
	// or through other rules.
	recursive map[string]bool
	// Rules in stratum n depend only on rules in strata up to n, and only
	// rules in the same strongly connected component share a stratum with
	// their dependencies.
	stratum map[string]int
	// reachesRecursive[r] is true if r or a rule it transitively depends on
	// is recursive.
	reachesRecursive map[string]bool
}

// Application is a rule that can produce answers to an atomic query, along
// with how to rename the rule head's variables into the query's variables.
type Application struct {
	Rule    *Rule
	Unifier unifier.Unifier
}

// NewStore returns a store holding the given rules. Rule IDs must be unique.
func NewStore(s *schema.Schema, rules ...*Rule) (*Store, error) {
	store := &Store{
		schema:           s,
		byID:             make(map[string]*Rule, len(rules)),
		dependsOn:        make(map[string][]string, len(rules)),
		recursive:        make(map[string]bool),
		stratum:          make(map[string]int, len(rules)),
		reachesRecursive: make(map[string]bool),
	}
	for _, r := range rules {
		if _, dup := store.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule ID %s", r.ID)
		}
		store.byID[r.ID] = r
		store.rules = append(store.rules, r)
	}
	sort.Slice(store.rules, func(i, j int) bool {
		return store.rules[i].ID < store.rules[j].ID
	})
	for _, r := range store.rules {
		deps, err := store.dependencies(r)
		if err != nil {
			return nil, err
		}
		store.dependsOn[r.ID] = deps
	}
	store.stratify()
	log.WithFields(log.Fields{
		"rules":     len(store.rules),
		"recursive": len(store.recursive),
	}).Debug("Loaded rules")
	return store, nil
}

// dependencies returns the IDs of the rules that can produce answers to the
// atomic queries in r's body.
func (store *Store) dependencies(r *Rule) ([]string, error) {
	d, err := r.Body.Decompose(store.Appends)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %v", r.ID, err)
	}
	set := make(map[string]bool)
	for _, a := range d.Atomics {
		for _, app := range store.ApplicableRules(a) {
			set[app.Rule.ID] = true
		}
	}
	deps := make([]string, 0, len(set))
	for id := range set {
		deps = append(deps, id)
	}
	sort.Strings(deps)
	return deps, nil
}

// stratify finds the strongly connected components of the dependency graph
// using Tarjan's algorithm. Components are completed dependencies-first, so
// each one's stratum can be computed as soon as it's found.
func (store *Store) stratify() {
	index := make(map[string]int, len(store.rules))
	lowlink := make(map[string]int, len(store.rules))
	onStack := make(map[string]bool)
	var stack []string
	next := 0
	var connect func(id string)
	connect = func(id string) {
		index[id] = next
		lowlink[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true
		for _, dep := range store.dependsOn[id] {
			if _, visited := index[dep]; !visited {
				connect(dep)
				if lowlink[dep] < lowlink[id] {
					lowlink[id] = lowlink[dep]
				}
			} else if onStack[dep] && index[dep] < lowlink[id] {
				lowlink[id] = index[dep]
			}
		}
		if lowlink[id] != index[id] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		store.finishComponent(component)
	}
	for _, r := range store.rules {
		if _, visited := index[r.ID]; !visited {
			connect(r.ID)
		}
	}
}

func (store *Store) finishComponent(component []string) {
	members := make(map[string]bool, len(component))
	for _, id := range component {
		members[id] = true
	}
	recursive := len(component) > 1
	stratum := 0
	reaches := false
	for _, id := range component {
		for _, dep := range store.dependsOn[id] {
			if members[dep] {
				if dep == id {
					recursive = true
				}
				continue
			}
			if s := store.stratum[dep] + 1; s > stratum {
				stratum = s
			}
			reaches = reaches || store.reachesRecursive[dep]
		}
	}
	for _, id := range component {
		store.stratum[id] = stratum
		if recursive {
			store.recursive[id] = true
		}
		if recursive || reaches {
			store.reachesRecursive[id] = true
		}
	}
}

// Schema returns the schema the rules were checked against.
func (store *Store) Schema() *schema.Schema {
	return store.schema
}

// Rules returns all the rules, sorted by ID.
func (store *Store) Rules() []*Rule {
	return append([]*Rule(nil), store.rules...)
}

// Rule returns the rule with the given ID.
func (store *Store) Rule(id string) (*Rule, bool) {
	r, ok := store.byID[id]
	return r, ok
}

// Len returns the number of rules.
func (store *Store) Len() int {
	return len(store.rules)
}

// DependsOn returns the IDs of the rules that rule id depends on, in sorted
// order.
func (store *Store) DependsOn(id string) []string {
	return append([]string(nil), store.dependsOn[id]...)
}

// IsRecursive returns true if the rule's head can feed back into its own
// body.
func (store *Store) IsRecursive(id string) bool {
	return store.recursive[id]
}

// Stratum returns the rule's stratum. Rules in stratum 0 depend on no other
// strata.
func (store *Store) Stratum(id string) int {
	return store.stratum[id]
}

// ApplicableRules returns the rules whose heads unify with q, each paired with
// every way of unifying them. Non-recursive rules come first, then lower
// strata, then rules sorted by ID.
func (store *Store) ApplicableRules(q *query.Atomic) []Application {
	var res []Application
	var ordered []*Rule
	for _, r := range store.rules {
		if r.HeadQuery().FamilyKeyFor("") != q.FamilyKeyFor("") {
			continue
		}
		ordered = append(ordered, r)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].ID, ordered[j].ID
		if store.recursive[a] != store.recursive[b] {
			return !store.recursive[a]
		}
		return store.stratum[a] < store.stratum[b]
	})
	for _, r := range ordered {
		for _, u := range query.Unify(r.HeadQuery(), q, unifier.Rule).Unifiers() {
			res = append(res, Application{Rule: r, Unifier: u})
		}
	}
	return res
}

// IsRuleResolvable returns true if some rule can produce answers to q.
func (store *Store) IsRuleResolvable(q *query.Atomic) bool {
	for _, r := range store.rules {
		if !query.Unify(r.HeadQuery(), q, unifier.Rule).IsEmpty() {
			return true
		}
	}
	return false
}

// RequiresReiteration returns true if resolving q may involve a recursive
// rule. A single resolution pass cuts such recursion short, so it must be
// repeated until no new answers appear.
func (store *Store) RequiresReiteration(q *query.Atomic) bool {
	for _, app := range store.ApplicableRules(q) {
		if store.reachesRecursive[app.Rule.ID] {
			return true
		}
	}
	return false
}

// Appends returns true if some rule adds role players to existing relations
// whose type is relationType or one of its subtypes.
func (store *Store) Appends(relationType string) bool {
	for _, r := range store.rules {
		if r.AppendsRolePlayers() && store.schema.IsSubtype(r.HeadType(), relationType) {
			return true
		}
	}
	return false
}

// Graphviz writes the rule dependency graph in dot format. Each edge points
// from a rule to a rule it depends on. Recursive rules are drawn in red.
func (store *Store) Graphviz(w io.Writer) {
	fmt.Fprintln(w, "digraph rules {")
	fmt.Fprintln(w, "\tnode [shape=box];")
	for _, r := range store.rules {
		attrs := ""
		if store.recursive[r.ID] {
			attrs = ", color=red"
		}
		fmt.Fprintf(w, "\t%v [label=%v%v];\n", graphviz.Quote(r.ID),
			graphviz.Quote(fmt.Sprintf("%s (stratum %d)", r.ID, store.stratum[r.ID])), attrs)
	}
	for _, r := range store.rules {
		for _, dep := range store.dependsOn[r.ID] {
			fmt.Fprintf(w, "\t%v -> %v;\n", graphviz.Quote(r.ID), graphviz.Quote(dep))
		}
	}
	fmt.Fprintln(w, "}")
}
