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
	"testing"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CumulativeStateDropsDecidedFilters(t *testing.T) {
	ctx := context.Background()
	s := chainSchema(t)
	node := func(v atom.Var) *query.Atomic {
		return query.MustAtomic(s, isa(v, "node"))
	}
	xy := &atom.Neq{Left: "x", Right: "y"}
	xz := &atom.Neq{Left: "x", Right: "z"}
	bind := func(v atom.Var, id string) *AnswerState {
		sub := answer.New(map[atom.Var]atom.Concept{v: {ID: id, Type: "node"}}, answer.Lookup{})
		return newAnswerState(sub, nil, nil)
	}
	root := newCumulativeState(nil, []*query.Atomic{node("x"), node("y"), node("z")},
		[]atom.Atom{xy, xz}, answer.Substitution{}, nil, newVisited())

	next, err := root.PropagateAnswer(ctx, bind("x", "a0"))
	require.NoError(t, err)
	afterX := next.(*CumulativeState)
	assert.Equal(t, []atom.Atom{xy, xz}, afterX.filters)

	next, err = afterX.PropagateAnswer(ctx, bind("y", "a0"))
	require.NoError(t, err)
	assert.Nil(t, next)

	next, err = afterX.PropagateAnswer(ctx, bind("y", "a1"))
	require.NoError(t, err)
	afterY := next.(*CumulativeState)
	assert.Equal(t, []atom.Atom{xz}, afterY.filters)

	next, err = afterY.PropagateAnswer(ctx, bind("z", "a0"))
	require.NoError(t, err)
	assert.Nil(t, next)
	next, err = afterY.PropagateAnswer(ctx, bind("z", "a2"))
	require.NoError(t, err)
	final := next.(*AnswerState)
	assert.Equal(t, "x=a0 y=a1 z=a2", cmp.GetKey(final.Substitution()))
}
