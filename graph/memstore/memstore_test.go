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

package memstore

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/unifier"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/util/stats"
	"github.com/ebay/reasoner/util/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	s := schema.New()
	require.NoError(t, s.AddEntity("person", ""))
	require.NoError(t, s.AddEntity("student", "person"))
	require.NoError(t, s.AddEntity("city", ""))
	require.NoError(t, s.AddAttribute("age", ""))
	require.NoError(t, s.AddRelation("friendship", "",
		schema.Role{Name: "friend", Players: []string{"person"}}))
	require.NoError(t, s.AddRelation("best-friendship", "friendship"))
	require.NoError(t, s.AddRelation("located", "",
		schema.Role{Name: "resident", Players: []string{"person"}},
		schema.Role{Name: "place", Players: []string{"city"}}))
	return s
}

func testStore(t *testing.T) *Store {
	store := New(testSchema(t))
	require.NoError(t, store.PutEntity("alice", "person"))
	require.NoError(t, store.PutEntity("bob", "student"))
	require.NoError(t, store.PutEntity("carol", "person"))
	require.NoError(t, store.PutEntity("paris", "city"))
	require.NoError(t, store.PutAttribute("age30", "age", atom.Int(30)))
	require.NoError(t, store.PutAttribute("age17", "age", atom.Int(17)))
	require.NoError(t, store.PutRelation("f1", "friendship",
		Player{"friend", "alice"}, Player{"friend", "bob"}))
	require.NoError(t, store.PutRelation("f2", "best-friendship",
		Player{"friend", "bob"}, Player{"friend", "carol"}))
	require.NoError(t, store.PutRelation("l1", "located",
		Player{"resident", "alice"}, Player{"place", "paris"}))
	return store
}

func rel(v atom.Var, t string, players ...atom.RolePlayer) *atom.Relation {
	return &atom.Relation{Var: v, Type: t, RolePlayers: players}
}

func friend(v atom.Var) atom.RolePlayer {
	return atom.RolePlayer{Role: "friend", Player: v}
}

// run plans and executes q, returning the sorted keys of its answers.
func run(t *testing.T, store *Store, q *query.Conjunctive) []string {
	p, err := store.Plan(q)
	require.NoError(t, err)
	it, err := store.Traverse(context.Background(), p)
	require.NoError(t, err)
	subs, err := stream.Collect(it)
	require.NoError(t, err)
	for _, s := range subs {
		assert.Equal(t, answer.Lookup{}, s.Explanation())
	}
	return cmp.SortedKeys(subs)
}

func Test_PutErrors(t *testing.T) {
	assert := assert.New(t)
	store := testStore(t)
	assert.EqualError(store.PutEntity("dave", "robot"), "type robot is not defined")
	assert.EqualError(store.PutEntity("dave", "age"), "type age is of kind attribute, not entity")
	assert.EqualError(store.PutEntity("alice", "person"), "concept alice already exists")
	assert.EqualError(store.PutEntity("", "person"), "concept ID must not be empty")
	err := store.PutRelation("f3", "friendship", Player{"friend", "nobody"})
	var unresolved *graph.UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal("nobody", unresolved.ID)
	assert.Equal(9, store.Size())
}

func Test_TraverseIsa(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	assert.Equal(t, []string{"x=alice", "x=bob", "x=carol"},
		run(t, store, query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "person"})))
	assert.Equal(t, []string{"x=bob"},
		run(t, store, query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "student"})))
	assert.Len(t, run(t, store, query.NewConjunctive(s, &atom.Isa{Var: "x"})), 9)
	assert.Equal(t, []string{"x=age30"},
		run(t, store, query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "age"},
			&atom.Value{Var: "x", Op: atom.GT, Literal: atom.Int(20)})))
}

func Test_TraverseRelation(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	assert.Equal(t, []string{
		"r=f1 x=alice y=bob",
		"r=f1 x=bob y=alice",
		"r=f2 x=bob y=carol",
		"r=f2 x=carol y=bob",
	}, run(t, store, query.NewConjunctive(s, rel("r", "friendship", friend("x"), friend("y")))))

	assert.Equal(t, []string{"r=f2 x=bob y=carol", "r=f2 x=carol y=bob"},
		run(t, store, query.NewConjunctive(s, rel("r", "best-friendship", friend("x"), friend("y")))))

	assert.Equal(t, []string{"r=f1 x=alice y=bob"},
		run(t, store, query.NewConjunctive(s,
			rel("r", "friendship", friend("x"), friend("y")),
			&atom.ID{Var: "x", ID: "alice"})))

	// A role player of an untyped relation with any role.
	assert.Equal(t, []string{"r=f1 x=alice", "r=l1 x=alice"},
		run(t, store, query.NewConjunctive(s,
			rel("r", "", atom.RolePlayer{Player: "x"}),
			&atom.ID{Var: "x", ID: "alice"})))

	// Joins across relations.
	assert.Equal(t, []string{"c=paris f=f1 l=l1 x=alice y=bob"},
		run(t, store, query.NewConjunctive(s,
			rel("f", "friendship", friend("x"), friend("y")),
			rel("l", "located", atom.RolePlayer{Role: "resident", Player: "x"},
				atom.RolePlayer{Role: "place", Player: "c"}))))

	// A repeated player can't match two distinct stored players.
	assert.Empty(t, run(t, store, query.NewConjunctive(s,
		rel("r", "friendship", friend("x"), friend("x")))))
}

func Test_TraverseFilters(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	assert.Equal(t, []string{"b=bob x=alice y=carol", "b=bob x=carol y=alice"},
		run(t, store, query.NewConjunctive(s,
			&atom.Isa{Var: "x", Type: "person"},
			&atom.Isa{Var: "y", Type: "person"},
			&atom.Neq{Left: "x", Right: "y"},
			&atom.Neq{Left: "x", Right: "b"},
			&atom.Neq{Left: "y", Right: "b"},
			&atom.ID{Var: "b", ID: "bob"})))
}

func Test_TraverseUnresolvedReference(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	p, err := store.Plan(query.NewConjunctive(s,
		&atom.Isa{Var: "x", Type: "person"}, &atom.ID{Var: "x", ID: "nobody"}))
	require.NoError(t, err)
	_, err = store.Traverse(context.Background(), p)
	var unresolved *graph.UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, `unresolved reference to concept "nobody"`, err.Error())
}

func Test_TraverseCanceled(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	p, err := store.Plan(query.NewConjunctive(s, &atom.Isa{Var: "x"}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	it, err := store.Traverse(ctx, p)
	require.NoError(t, err)
	_, ok, err := it.Next()
	assert.True(t, ok)
	assert.NoError(t, err)
	cancel()
	_, ok, err = it.Next()
	assert.False(t, ok)
	assert.Equal(t, context.Canceled, err)
}

func Test_PlanTransform(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	q := query.NewConjunctive(s,
		rel("r", "friendship", friend("x"), friend("y")),
		&atom.ID{Var: "x", ID: "alice"},
		&atom.Neq{Left: "x", Right: "y"})
	p, err := store.Plan(q)
	require.NoError(t, err)
	assert.Equal(t, "lookup {$x=alice} then [$r (friend: $x, friend: $y) isa friendship] filter [$x != $y]",
		p.String())

	other := query.NewConjunctive(s,
		rel("s", "friendship", friend("a"), friend("b")),
		&atom.ID{Var: "a", ID: "carol"},
		&atom.Neq{Left: "a", Right: "b"})
	u := unifier.FromMap(map[atom.Var]atom.Var{"r": "s", "x": "a", "y": "b"})
	transformed := p.Transform(u, other.IDs())
	assert.Equal(t, "lookup {$a=carol} then [$s (friend: $a, friend: $b) isa friendship] filter [$a != $b]",
		transformed.String())
	it, err := store.Traverse(context.Background(), transformed)
	require.NoError(t, err)
	subs, err := stream.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []string{"a=carol b=bob s=f2"}, cmp.SortedKeys(subs))
}

func Test_PlanPrefersBoundAtoms(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	p, err := store.Plan(query.NewConjunctive(s,
		&atom.Isa{Var: "y", Type: "person"},
		rel("r", "friendship", friend("x"), friend("y")),
		&atom.ID{Var: "x", ID: "alice"},
		&atom.Neq{Left: "z", Right: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "lookup {$x=alice} then [$r (friend: $x, friend: $y) isa friendship; "+
		"$y isa person; $z isa *] filter [$x != $z]", p.String())
}

func Test_Order(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	persons := query.MustAtomic(s, &atom.Isa{Var: "y", Type: "person"})
	friends := query.MustAtomic(s, rel("r", "friendship", friend("x"), friend("y")))
	alice := query.MustAtomic(s, &atom.Isa{Var: "x", Type: "person"}, &atom.ID{Var: "x", ID: "alice"})
	ordered := store.Order([]*query.Atomic{persons, friends, alice})
	assert.Equal(t, []*query.Atomic{alice, friends, persons}, ordered)
}

func materialise(t *testing.T, store *Store, q *query.Atomic, bindings map[atom.Var]string) []answer.Substitution {
	concepts := make(map[atom.Var]atom.Concept, len(bindings))
	for v, id := range bindings {
		c, ok := store.Concept(id)
		require.True(t, ok, id)
		concepts[v] = c
	}
	it, err := store.Materialise(context.Background(), q, answer.New(concepts, answer.Lookup{}))
	require.NoError(t, err)
	subs, err := stream.Collect(it)
	require.NoError(t, err)
	return subs
}

func Test_MaterialiseInsertsOnce(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	store := testStore(t)
	head := query.MustAtomic(s, rel("r", "friendship", friend("a"), friend("b")))

	subs := materialise(t, store, head, map[atom.Var]string{"a": "alice", "b": "carol"})
	require.Len(t, subs, 1)
	r, ok := subs[0].Get("r")
	require.True(t, ok)
	assert.Equal("_:friendship1", r.ID)
	assert.Equal("friendship", r.Type)
	assert.Equal([]Player{{"friend", "alice"}, {"friend", "carol"}}, store.Players(r.ID))

	again := materialise(t, store, head, map[atom.Var]string{"a": "carol", "b": "alice"})
	require.Len(t, again, 1)
	r2, _ := again[0].Get("r")
	assert.Equal(r.ID, r2.ID)

	existing := materialise(t, store, head, map[atom.Var]string{"a": "alice", "b": "bob"})
	r3, _ := existing[0].Get("r")
	assert.Equal("f1", r3.ID)

	assert.Equal(Stats{Materialisations: 3, Inserted: 1}, store.Stats())
}

func Test_MaterialiseAppends(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	store := testStore(t)
	head := query.MustAtomic(s, rel("r", "friendship", friend("a")))
	subs := materialise(t, store, head, map[atom.Var]string{"r": "f1", "a": "carol"})
	require.Len(t, subs, 1)
	assert.Equal([]Player{{"friend", "alice"}, {"friend", "bob"}, {"friend", "carol"}},
		store.Players("f1"))
	materialise(t, store, head, map[atom.Var]string{"r": "f1", "a": "carol"})
	assert.Len(store.Players("f1"), 3)
	assert.Equal(1, store.Stats().Appended)

	_, err := store.Materialise(context.Background(), head, answer.New(map[atom.Var]atom.Concept{
		"r": {ID: "alice"}, "a": {ID: "carol"},
	}, nil))
	var unresolved *graph.UnresolvedReferenceError
	assert.True(errors.As(err, &unresolved))
}

func Test_MaterialiseRejects(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	store := testStore(t)
	_, err := store.Materialise(context.Background(),
		query.MustAtomic(s, &atom.Isa{Var: "x", Type: "person"}), answer.Substitution{})
	var conversion *atom.ConversionError
	assert.True(errors.As(err, &conversion))

	unbound := materialise(t, store, query.MustAtomic(s, rel("r", "friendship", friend("a"), friend("b"))),
		map[atom.Var]string{"a": "alice"})
	assert.Empty(unbound)
	assert.Equal(0, store.Stats().Inserted)
}

func Test_Stats(t *testing.T) {
	s := testSchema(t)
	store := testStore(t)
	for i := 0; i < 3; i++ {
		run(t, store, query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "person"}))
	}
	assert.Equal(t, 3, store.Stats().Traversals)
	ids := make([]string, 0)
	store.lock.RLock()
	store.ofTypeLocked("friendship", func(c atom.Concept) { ids = append(ids, c.ID) })
	store.lock.RUnlock()
	sort.Strings(ids)
	assert.Equal(t, []string{"f1", "f2"}, ids)
}

func Test_Summary(t *testing.T) {
	summary := testStore(t).Summary()
	stats.SortStats(summary)
	assert.Equal(t, []stats.TypeCount{
		{Type: "age", Count: 2},
		{Type: "person", Count: 2},
		{Type: "best-friendship", Count: 1},
		{Type: "city", Count: 1},
		{Type: "friendship", Count: 1},
		{Type: "located", Count: 1},
		{Type: "student", Count: 1},
	}, summary.Types)
	assert.Equal(t, []stats.RoleCount{
		{Relation: "best-friendship", Role: "friend", Count: 2},
		{Relation: "friendship", Role: "friend", Count: 2},
		{Relation: "located", Role: "place", Count: 1},
		{Relation: "located", Role: "resident", Count: 1},
	}, summary.Roles)
}
