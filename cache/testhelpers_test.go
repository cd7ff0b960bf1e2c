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

package cache

import (
	"context"
	"testing"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/graph/memstore"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/util/stream"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	s := schema.New()
	require.NoError(t, s.AddEntity("person", ""))
	require.NoError(t, s.AddEntity("student", "person"))
	require.NoError(t, s.AddRelation("friendship", "",
		schema.Role{Name: "friend", Players: []string{"person"}}))
	return s
}

type fixture struct {
	schema  *schema.Schema
	store   *memstore.Store
	planner *countingPlanner
	plans   *Structural
	cache   *Semantic
}

// countingPlanner counts the calls to Plan.
type countingPlanner struct {
	graph.Planner
	plans int
}

func (p *countingPlanner) Plan(q *query.Conjunctive) (graph.Plan, error) {
	p.plans++
	return p.Planner.Plan(q)
}

func newFixture(t *testing.T, options Options) *fixture {
	s := testSchema(t)
	store := memstore.New(s)
	require.NoError(t, store.PutEntity("alice", "person"))
	require.NoError(t, store.PutEntity("bob", "student"))
	require.NoError(t, store.PutEntity("carol", "person"))
	require.NoError(t, store.PutRelation("f1", "friendship",
		memstore.Player{Role: "friend", ID: "alice"}, memstore.Player{Role: "friend", ID: "bob"}))
	require.NoError(t, store.PutRelation("f2", "friendship",
		memstore.Player{Role: "friend", ID: "bob"}, memstore.Player{Role: "friend", ID: "carol"}))
	planner := &countingPlanner{Planner: store}
	plans := NewStructural(planner, false)
	return &fixture{
		schema:  s,
		store:   store,
		planner: planner,
		plans:   plans,
		cache:   NewSemantic(store, plans, options),
	}
}

func (f *fixture) atomic(atoms ...atom.Atom) *query.Atomic {
	return query.MustAtomic(f.schema, atoms...)
}

func person(v atom.Var) atom.Atom {
	return &atom.Isa{Var: v, Type: "person"}
}

func id(v atom.Var, id string) atom.Atom {
	return &atom.ID{Var: v, ID: id}
}

func friends(r, x, y atom.Var) atom.Atom {
	return &atom.Relation{Var: r, Type: "friendship", RolePlayers: []atom.RolePlayer{
		{Role: "friend", Player: x},
		{Role: "friend", Player: y},
	}}
}

// drain reads all of q's answers from the cache, returning their sorted keys.
func (f *fixture) drain(t *testing.T, q *query.Atomic) []string {
	subs, err := stream.Collect(f.cache.AnswerStream(context.Background(), q))
	require.NoError(t, err)
	return cmp.SortedKeys(subs)
}

func keys(subs []answer.Substitution) []string {
	return cmp.SortedKeys(subs)
}

func sub(explanation answer.Explanation, pairs ...string) answer.Substitution {
	m := make(map[atom.Var]atom.Concept)
	for i := 0; i < len(pairs); i += 2 {
		m[atom.Var(pairs[i])] = atom.Concept{ID: pairs[i+1]}
	}
	return answer.New(m, explanation)
}
