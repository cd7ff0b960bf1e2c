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
	"strings"
	"testing"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	s := schema.New()
	require.NoError(t, s.AddEntity("person", ""))
	require.NoError(t, s.AddEntity("student", "person"))
	require.NoError(t, s.AddEntity("member", ""))
	require.NoError(t, s.AddRelation("edge", "",
		schema.Role{Name: "from"}, schema.Role{Name: "to"}))
	require.NoError(t, s.AddRelation("reachability", "",
		schema.Role{Name: "from"}, schema.Role{Name: "to"}))
	require.NoError(t, s.AddRelation("enrolment", "", schema.Role{Name: "enrollee"}))
	require.NoError(t, s.AddRelation("group", "", schema.Role{Name: "member"}))
	require.NoError(t, s.AddRelation("friendship", "", schema.Role{Name: "friend"}))
	return s
}

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

type testRules struct {
	base, trans, enrolled, grouped *Rule
}

func newTestRules(t *testing.T, s *schema.Schema) testRules {
	return testRules{
		base: MustNew("reach-base",
			query.NewConjunctive(s, rel("e", "edge", "from:x", "to:y")),
			rel("r", "reachability", "from:x", "to:y")),
		trans: MustNew("reach-trans",
			query.NewConjunctive(s,
				rel("r1", "reachability", "from:x", "to:y"),
				rel("r2", "reachability", "from:y", "to:z")),
			rel("r", "reachability", "from:x", "to:z")),
		enrolled: MustNew("enrolled-member",
			query.NewConjunctive(s,
				&atom.Isa{Var: "x", Type: "person"},
				rel("e", "enrolment", "enrollee:x")),
			&atom.Isa{Var: "x", Type: "member"}),
		grouped: MustNew("friends-join-groups",
			query.NewConjunctive(s,
				rel("g", "group", "member:x"),
				rel("f", "friendship", "friend:x", "friend:y")),
			rel("g", "group", "member:y")),
	}
}

func Test_NewValidates(t *testing.T) {
	s := testSchema(t)
	body := query.NewConjunctive(s, rel("e", "edge", "from:x", "to:y"))
	tests := []struct {
		name string
		id   string
		body *query.Conjunctive
		head atom.Atom
		err  string
	}{
		{"no id", "", body, &atom.Isa{Var: "x", Type: "person"},
			"rule ID must not be empty"},
		{"empty body", "r", query.NewConjunctive(s, &atom.ID{Var: "x", ID: "V1"}), &atom.Isa{Var: "x", Type: "person"},
			"rule r: body must have at least one type or relation constraint"},
		{"untyped isa", "r", body, &atom.Isa{Var: "x"},
			"rule r: head $x isa * must have a type"},
		{"untyped relation", "r", body, rel("r", "", "from:x"),
			"rule r: head $r (from: $x) isa * must have a type"},
		{"no players", "r", body, rel("r", "reachability"),
			"rule r: head $r () isa reachability must have role players"},
		{"no role", "r", body, &atom.Relation{Var: "r", Type: "reachability",
			RolePlayers: []atom.RolePlayer{{Player: "x"}}},
			"rule r: head $r ($x) isa reachability must name the role of $x"},
		{"predicate head", "r", body, &atom.ID{Var: "x", ID: "V1"},
			"rule r: head $x id V1 must be a type or relation constraint"},
		{"free variable", "r", body, rel("r", "reachability", "from:x", "to:z"),
			"rule r: head variable $z does not appear in the body"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.id, test.body, test.head)
			assert.EqualError(t, err, test.err)
		})
	}
	assert.Panics(t, func() { MustNew("", body, &atom.Isa{Var: "x", Type: "person"}) })
}

func Test_HeadQuery(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	r := MustNew("alice-is-member",
		query.NewConjunctive(s,
			&atom.Isa{Var: "x", Type: "person"},
			&atom.ID{Var: "x", ID: "alice"},
			rel("e", "enrolment", "enrollee:x"),
			&atom.ID{Var: "e", ID: "E1"}),
		&atom.Isa{Var: "x", Type: "member"})
	assert.Equal("{$x id alice; $x isa member}", r.HeadQuery().String())
	assert.Equal("member", r.HeadType())
	assert.False(r.RequiresMaterialisation())
	assert.False(r.AppendsRolePlayers())

	rs := newTestRules(t, s)
	assert.True(rs.base.RequiresMaterialisation())
	assert.False(rs.base.AppendsRolePlayers())
	assert.True(rs.grouped.AppendsRolePlayers())
	assert.Equal("reach-base: {$e (from: $x, to: $y) isa edge} => $r (from: $x, to: $y) isa reachability",
		rs.base.String())
}

func Test_StoreStratification(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	rs := newTestRules(t, s)
	store, err := NewStore(s, rs.trans, rs.grouped, rs.base, rs.enrolled)
	require.NoError(t, err)
	assert.Equal(4, store.Len())

	assert.Empty(store.DependsOn("reach-base"))
	assert.Equal([]string{"reach-base", "reach-trans"}, store.DependsOn("reach-trans"))
	assert.Empty(store.DependsOn("enrolled-member"))
	assert.Equal([]string{"friends-join-groups"}, store.DependsOn("friends-join-groups"))

	assert.False(store.IsRecursive("reach-base"))
	assert.True(store.IsRecursive("reach-trans"))
	assert.False(store.IsRecursive("enrolled-member"))
	assert.True(store.IsRecursive("friends-join-groups"))

	assert.Equal(0, store.Stratum("reach-base"))
	assert.Equal(1, store.Stratum("reach-trans"))
	assert.Equal(0, store.Stratum("enrolled-member"))

	ids := make([]string, 0, store.Len())
	for _, r := range store.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal([]string{"enrolled-member", "friends-join-groups", "reach-base", "reach-trans"}, ids)
	r, ok := store.Rule("reach-base")
	assert.True(ok)
	assert.Equal(rs.base, r)
}

func Test_MutualRecursion(t *testing.T) {
	s := schema.New()
	require.NoError(t, s.AddEntity("a", ""))
	require.NoError(t, s.AddEntity("b", ""))
	require.NoError(t, s.AddEntity("c", ""))
	require.NoError(t, s.AddEntity("seed", ""))
	toB := MustNew("a-to-b", query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "a"}), &atom.Isa{Var: "x", Type: "b"})
	toA := MustNew("b-to-a", query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "b"}), &atom.Isa{Var: "x", Type: "a"})
	seed := MustNew("seed-to-a", query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "seed"}), &atom.Isa{Var: "x", Type: "a"})
	toC := MustNew("b-to-c", query.NewConjunctive(s, &atom.Isa{Var: "x", Type: "b"}), &atom.Isa{Var: "x", Type: "c"})
	store, err := NewStore(s, toB, toA, seed, toC)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.True(store.IsRecursive("a-to-b"))
	assert.True(store.IsRecursive("b-to-a"))
	assert.False(store.IsRecursive("seed-to-a"))
	assert.False(store.IsRecursive("b-to-c"))
	assert.Equal(0, store.Stratum("seed-to-a"))
	assert.Equal(1, store.Stratum("a-to-b"))
	assert.Equal(1, store.Stratum("b-to-a"))
	assert.Equal(2, store.Stratum("b-to-c"))

	isC := query.MustAtomic(s, &atom.Isa{Var: "y", Type: "c"})
	assert.True(store.RequiresReiteration(isC))
	isSeed := query.MustAtomic(s, &atom.Isa{Var: "y", Type: "seed"})
	assert.False(store.RequiresReiteration(isSeed))
	assert.False(store.IsRuleResolvable(isSeed))

	isA := query.MustAtomic(s, &atom.Isa{Var: "y", Type: "a"})
	var order []string
	for _, app := range store.ApplicableRules(isA) {
		order = append(order, app.Rule.ID)
	}
	assert.Equal([]string{"seed-to-a", "b-to-a"}, order)
}

func Test_ApplicableRules(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	rs := newTestRules(t, s)
	store, err := NewStore(s, rs.trans, rs.grouped, rs.base, rs.enrolled)
	require.NoError(t, err)

	reach := query.MustAtomic(s, rel("q", "reachability", "from:a", "to:b"))
	apps := store.ApplicableRules(reach)
	require.Len(t, apps, 2)
	assert.Equal("reach-base", apps[0].Rule.ID)
	assert.Equal("{$r->$q, $x->$a, $y->$b}", apps[0].Unifier.String())
	assert.Equal("reach-trans", apps[1].Rule.ID)
	assert.Equal("{$r->$q, $x->$a, $z->$b}", apps[1].Unifier.String())
	assert.True(store.IsRuleResolvable(reach))
	assert.True(store.RequiresReiteration(reach))

	edge := query.MustAtomic(s, rel("q", "edge", "from:a", "to:b"))
	assert.Empty(store.ApplicableRules(edge))
	assert.False(store.IsRuleResolvable(edge))
	assert.False(store.RequiresReiteration(edge))

	member := query.MustAtomic(s, &atom.Isa{Var: "m", Type: "member"})
	assert.True(store.IsRuleResolvable(member))
	assert.False(store.RequiresReiteration(member))

	// A group query with one member unifies with the appending rule's head.
	group := query.MustAtomic(s, rel("q", "group", "member:m"))
	apps = store.ApplicableRules(group)
	require.Len(t, apps, 1)
	assert.Equal("{$g->$q, $y->$m}", apps[0].Unifier.String())

	// A ground query whose identity conflicts with nothing still applies.
	from := query.MustAtomic(s, rel("q", "reachability", "from:a", "to:b"), &atom.ID{Var: "a", ID: "n1"})
	assert.Len(store.ApplicableRules(from), 2)
}

func Test_Appends(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	rs := newTestRules(t, s)
	store, err := NewStore(s, rs.trans, rs.grouped, rs.base, rs.enrolled)
	require.NoError(t, err)
	assert.True(store.Appends("group"))
	assert.True(store.Appends(""))
	assert.False(store.Appends("reachability"))
	assert.False(store.Appends("friendship"))
}

func Test_NewStoreDuplicate(t *testing.T) {
	s := testSchema(t)
	rs := newTestRules(t, s)
	_, err := NewStore(s, rs.base, rs.trans, rs.base)
	assert.EqualError(t, err, "duplicate rule ID reach-base")
}

func Test_Graphviz(t *testing.T) {
	assert := assert.New(t)
	s := testSchema(t)
	rs := newTestRules(t, s)
	store, err := NewStore(s, rs.trans, rs.base)
	require.NoError(t, err)
	var b strings.Builder
	store.Graphviz(&b)
	assert.Equal(`digraph rules {
	node [shape=box];
	"reach-base" [label="reach-base (stratum 0)"];
	"reach-trans" [label="reach-trans (stratum 1)", color=red];
	"reach-trans" -> "reach-base";
	"reach-trans" -> "reach-trans";
}
`, b.String())
}
