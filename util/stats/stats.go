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

// Package stats contains a pretty-printer for statistics about the concepts
// held in a graph store.
package stats

import (
	"bufio"
	"context"
	"io"
	"sort"

	"github.com/ebay/reasoner/util/table"
	opentracing "github.com/opentracing/opentracing-go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

// Summary counts the concepts in a store.
type Summary struct {
	// Number of concepts of each type, not counting subtypes.
	Types []TypeCount
	// Number of role players of each role of each relation type.
	Roles []RoleCount
}

// TypeCount is one entry of Summary.Types.
type TypeCount struct {
	Type  string
	Count uint64
}

// RoleCount is one entry of Summary.Roles.
type RoleCount struct {
	Relation string
	Role     string
	Count    uint64
}

// PrettyPrint writes the summary as two tables, sorting it first.
func PrettyPrint(ctx context.Context, w io.Writer, s *Summary) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "sort")
	SortStats(s)
	span.Finish()

	span, _ = opentracing.StartSpanFromContext(ctx, "write result")
	defer span.Finish()
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	count := func(c uint64) string {
		return fmtr.Sprintf("%d", c)
	}

	t := [][]string{{"Type", "Count"}}
	for _, c := range s.Types {
		t = append(t, []string{c.Type, count(c.Count)})
	}
	table.PrettyPrint(bw, t, table.HeaderRow|table.SkipEmpty|table.RightJustify)
	bw.WriteRune('\n')

	t = [][]string{{"Relation", "Role", "Count"}}
	for _, c := range s.Roles {
		t = append(t, []string{c.Relation, c.Role, count(c.Count)})
	}
	table.PrettyPrint(bw, t, table.HeaderRow|table.SkipEmpty|table.RightJustify)
	_, err := fmtr.Fprintf(bw, "\n%d types, %d roles.\n", len(s.Types), len(s.Roles))
	return err
}

// SortStats sorts the counts in the given summary in descending order. Equal
// counts are ordered by name.
func SortStats(s *Summary) {
	sort.Slice(s.Types, func(a, b int) bool {
		if s.Types[a].Count != s.Types[b].Count {
			return s.Types[a].Count > s.Types[b].Count
		}
		return s.Types[a].Type < s.Types[b].Type
	})
	sort.Slice(s.Roles, func(a, b int) bool {
		x, y := s.Roles[a], s.Roles[b]
		if x.Count != y.Count {
			return x.Count > y.Count
		}
		if x.Relation != y.Relation {
			return x.Relation < y.Relation
		}
		return x.Role < y.Role
	})
}
