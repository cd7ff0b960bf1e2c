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

package query

import (
	"strings"
	"testing"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	"github.com/stretchr/testify/require"
)

func isa(v atom.Var, t string) atom.Atom {
	return &atom.Isa{Var: v, Type: t}
}

// rel builds a relation atom. Each player is given as "role:var" or "var".
func rel(v atom.Var, t string, players ...string) atom.Atom {
	r := &atom.Relation{Var: v, Type: t}
	for _, p := range players {
		role, player := "", p
		if i := strings.IndexByte(p, ':'); i >= 0 {
			role, player = p[:i], p[i+1:]
		}
		r.RolePlayers = append(r.RolePlayers, atom.RolePlayer{Role: role, Player: atom.Var(player)})
	}
	return r
}

func id(v atom.Var, id string) atom.Atom {
	return &atom.ID{Var: v, ID: id}
}

func gt(v atom.Var, i int64) atom.Atom {
	return &atom.Value{Var: v, Op: atom.GT, Literal: atom.Int(i)}
}

func eq(v atom.Var, i int64) atom.Atom {
	return &atom.Value{Var: v, Op: atom.EQ, Literal: atom.Int(i)}
}

func neq(l, r atom.Var) atom.Atom {
	return &atom.Neq{Left: l, Right: r}
}

func testSchema(t testing.TB) *schema.Schema {
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

func atomic(t testing.TB, s *schema.Schema, atoms ...atom.Atom) *Atomic {
	a, err := NewAtomic(s, atoms...)
	require.NoError(t, err)
	return a
}
