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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ebay/reasoner/atom"
)

// labelling is a canonical naming of a query's variables. Two sets of atoms
// get the same key exactly when one is a variable renaming of the other.
type labelling struct {
	key   string
	names map[atom.Var]atom.Var
}

// canonicalize computes the labelling of atoms. Variables are first colored
// by how they appear in the atoms, and the colors are refined by the colors
// of their neighbors until stable. Variables that remain indistinguishable
// are individualized one at a time, and the labelling with the smallest key
// wins.
func canonicalize(atoms []atom.Atom, blankIDs bool) labelling {
	c := canonicalizer{
		atoms:    atoms,
		blankIDs: blankIDs,
		uses:     make(map[atom.Var][]atom.Atom),
	}
	for _, a := range atoms {
		for _, v := range a.Vars() {
			if len(c.uses[v]) == 0 {
				c.vars = append(c.vars, v)
			}
			c.uses[v] = append(c.uses[v], a)
		}
	}
	sort.Slice(c.vars, func(i, j int) bool { return c.vars[i] < c.vars[j] })
	colors := c.rank(func(v atom.Var) string {
		return c.neighborhood(v, func(atom.Var) string { return "_" })
	})
	return c.search(c.refine(colors))
}

type canonicalizer struct {
	atoms    []atom.Atom
	blankIDs bool
	vars     []atom.Var
	uses     map[atom.Var][]atom.Atom
}

// neighborhood serializes the atoms that use v, with v written as '#' and
// every other variable written as other(w).
func (c *canonicalizer) neighborhood(v atom.Var, other func(atom.Var) string) string {
	name := func(w atom.Var) string {
		if w == v {
			return "#"
		}
		return other(w)
	}
	parts := make([]string, len(c.uses[v]))
	for i, a := range c.uses[v] {
		var b strings.Builder
		a.WriteKey(&b, name, c.blankIDs)
		parts[i] = b.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// rank assigns each variable the index of its signature among the sorted
// distinct signatures.
func (c *canonicalizer) rank(signature func(atom.Var) string) map[atom.Var]int {
	sigs := make(map[atom.Var]string, len(c.vars))
	distinct := make(map[string]int)
	for _, v := range c.vars {
		s := signature(v)
		sigs[v] = s
		distinct[s] = 0
	}
	sorted := make([]string, 0, len(distinct))
	for s := range distinct {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)
	for i, s := range sorted {
		distinct[s] = i
	}
	colors := make(map[atom.Var]int, len(c.vars))
	for v, s := range sigs {
		colors[v] = distinct[s]
	}
	return colors
}

func numColors(colors map[atom.Var]int) int {
	seen := make(map[int]bool, len(colors))
	for _, c := range colors {
		seen[c] = true
	}
	return len(seen)
}

// refine splits color classes by the colors of each variable's neighbors
// until no class splits further. The relative order of existing classes is
// kept.
func (c *canonicalizer) refine(colors map[atom.Var]int) map[atom.Var]int {
	for {
		current := colors
		next := c.rank(func(v atom.Var) string {
			return fmt.Sprintf("%08d/", current[v]) +
				c.neighborhood(v, func(w atom.Var) string {
					return "c" + strconv.Itoa(current[w])
				})
		})
		if numColors(next) == numColors(current) {
			return next
		}
		colors = next
	}
}

func (c *canonicalizer) search(colors map[atom.Var]int) labelling {
	// Find the first color class with more than one variable.
	members := make(map[int][]atom.Var)
	for _, v := range c.vars {
		members[colors[v]] = append(members[colors[v]], v)
	}
	cell := -1
	for color, vars := range members {
		if len(vars) > 1 && (cell == -1 || color < cell) {
			cell = color
		}
	}
	if cell == -1 {
		return c.leaf(colors)
	}
	var best labelling
	for _, chosen := range members[cell] {
		individualized := make(map[atom.Var]int, len(colors))
		for v, color := range colors {
			individualized[v] = color * 2
			if color == cell && v != chosen {
				individualized[v]++
			}
		}
		l := c.search(c.refine(individualized))
		if best.names == nil || l.key < best.key {
			best = l
		}
	}
	return best
}

func (c *canonicalizer) leaf(colors map[atom.Var]int) labelling {
	names := make(map[atom.Var]atom.Var, len(colors))
	for v, color := range colors {
		names[v] = atom.Var("v" + strconv.Itoa(color))
	}
	name := func(v atom.Var) string {
		return string(names[v])
	}
	keys := make([]string, len(c.atoms))
	for i, a := range c.atoms {
		var b strings.Builder
		a.WriteKey(&b, name, c.blankIDs)
		keys[i] = b.String()
	}
	sort.Strings(keys)
	return labelling{key: strings.Join(keys, ";"), names: names}
}
