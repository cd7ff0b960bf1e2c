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

package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph/memstore"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/schema"
	"github.com/stretchr/testify/require"
)

func isa(v atom.Var, t string) *atom.Isa {
	return &atom.Isa{Var: v, Type: t}
}

func id(v atom.Var, id string) *atom.ID {
	return &atom.ID{Var: v, ID: id}
}

// rel returns a relation atom with players given as "role:var".
func rel(v atom.Var, t string, players ...string) *atom.Relation {
	r := &atom.Relation{Var: v, Type: t}
	for _, p := range players {
		i := strings.IndexByte(p, ':')
		r.RolePlayers = append(r.RolePlayers, atom.RolePlayer{
			Role:   p[:i],
			Player: atom.Var(p[i+1:]),
		})
	}
	return r
}

func link(from, to string) []memstore.Player {
	return []memstore.Player{{Role: "from", ID: from}, {Role: "to", ID: to}}
}

func newEngine(t *testing.T, store *memstore.Store, options Options, rs ...*rules.Rule) *Engine {
	ruleStore, err := rules.NewStore(store.Schema(), rs...)
	require.NoError(t, err)
	return New(ruleStore, Backend{Executor: store, Planner: store, Materializer: store}, options)
}

func resolveAll(t *testing.T, tx *Tx, atoms ...atom.Atom) []answer.Substitution {
	res, err := tx.ResolveAll(context.Background(), query.NewConjunctive(tx.engine.rules.Schema(), atoms...))
	require.NoError(t, err)
	return res
}

// pairs returns the sorted "x->y" bindings of the answers, ignoring other
// variables.
func pairs(subs []answer.Substitution, x, y atom.Var) []string {
	res := make([]string, len(subs))
	for i, s := range subs {
		from, _ := s.Get(x)
		to, _ := s.Get(y)
		res[i] = from.ID + "->" + to.ID
	}
	sort.Strings(res)
	return res
}

// chainSchema has one "node" entity type and the relation types given, each
// with "from" and "to" roles.
func chainSchema(t *testing.T, relations ...string) *schema.Schema {
	s := schema.New()
	require.NoError(t, s.AddEntity("node", ""))
	require.NoError(t, s.AddEntity("special", ""))
	for _, r := range relations {
		require.NoError(t, s.AddRelation(r, "",
			schema.Role{Name: "from", Players: []string{"node"}},
			schema.Role{Name: "to", Players: []string{"node"}}))
	}
	return s
}

// pathStore returns a store with the chain a0 -> a1 -> ... -> an as "path"
// relations.
func pathStore(t *testing.T, n int) *memstore.Store {
	store := memstore.New(chainSchema(t, "path"))
	for i := 0; i <= n; i++ {
		require.NoError(t, store.PutEntity(fmt.Sprintf("a%d", i), "node"))
	}
	for i := 0; i < n; i++ {
		require.NoError(t, store.PutRelation(fmt.Sprintf("p%d", i), "path",
			link(fmt.Sprintf("a%d", i), fmt.Sprintf("a%d", i+1))...))
	}
	return store
}

func transitiveRule(s *schema.Schema) *rules.Rule {
	return rules.MustNew("path-trans",
		query.NewConjunctive(s,
			rel("r1", "path", "from:x", "to:z"),
			rel("r2", "path", "from:z", "to:y")),
		rel("r", "path", "from:x", "to:y"))
}

// chainPairs returns every ordered pair along the chain a0 -> ... -> an.
func chainPairs(n int) []string {
	var res []string
	for i := 0; i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			res = append(res, fmt.Sprintf("a%d->a%d", i, j))
		}
	}
	sort.Strings(res)
	return res
}
