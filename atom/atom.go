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

// Package atom defines the constraints that make up queries and rules.
//
// An Atom is one of a closed set of variants: a type constraint (*Isa), a
// relation-shape constraint (*Relation), an identity constraint (*ID), a value
// constraint (*Value), or an inequality constraint (*Neq). Code that handles
// atoms switches over these types; adding a variant means updating every
// such switch.
package atom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/util/cmp"
)

// Atom is an immutable constraint over one or more variables.
type Atom interface {
	// Vars returns the distinct variables the atom refers to, in order of
	// first appearance.
	Vars() []Var
	// Selectable returns true for atoms that can be resolved on their own
	// (types and relations), false for atoms that only restrict the bindings
	// of another atom's variables.
	Selectable() bool
	// Rename returns a copy of the atom with every variable v replaced by
	// fn(v).
	Rename(fn func(Var) Var) Atom
	// WriteKey writes a serialization of the atom to b, with each variable
	// written as name(v). If blankIDs is set, concrete identifiers in identity
	// constraints are omitted.
	WriteKey(b *strings.Builder, name func(Var) string, blankIDs bool)
	// Key writes a serialization of the atom using its own variable names.
	Key(b *strings.Builder)
	String() string

	anAtom()
}

// RolePlayer is one participant in a relation.
type RolePlayer struct {
	// The role played. Empty means any role.
	Role string
	// The variable bound to the participant.
	Player Var
}

func (rp RolePlayer) String() string {
	if rp.Role == "" {
		return rp.Player.String()
	}
	return rp.Role + ": " + rp.Player.String()
}

// Isa constrains Var to be an instance of Type or one of its subtypes. An
// empty Type matches any concept.
type Isa struct {
	Var  Var
	Type string
}

// Relation constrains Var to be a relation of Type (or a subtype; empty means
// any relation type) that includes at least the given role players.
type Relation struct {
	Var         Var
	Type        string
	RolePlayers []RolePlayer
}

// ID constrains Var to be the concept with the given identifier.
type ID struct {
	Var Var
	ID  string
}

// Value constrains the value of the attribute bound to Var. It compares either
// against Literal or, if Ref is set, against the value of the attribute bound
// to Ref.
type Value struct {
	Var     Var
	Op      Comparator
	Literal Literal
	Ref     Var
}

// Neq constrains Left and Right to be bound to different concepts.
type Neq struct {
	Left  Var
	Right Var
}

func (*Isa) anAtom()      {}
func (*Relation) anAtom() {}
func (*ID) anAtom()       {}
func (*Value) anAtom()    {}
func (*Neq) anAtom()      {}

// Selectable implements Atom.
func (*Isa) Selectable() bool { return true }

// Selectable implements Atom.
func (*Relation) Selectable() bool { return true }

// Selectable implements Atom.
func (*ID) Selectable() bool { return false }

// Selectable implements Atom.
func (*Value) Selectable() bool { return false }

// Selectable implements Atom.
func (*Neq) Selectable() bool { return false }

// Vars implements Atom.
func (a *Isa) Vars() []Var { return []Var{a.Var} }

// Vars implements Atom.
func (a *Relation) Vars() []Var {
	vars := []Var{a.Var}
	for _, rp := range a.RolePlayers {
		vars = appendVar(vars, rp.Player)
	}
	return vars
}

// Vars implements Atom.
func (a *ID) Vars() []Var { return []Var{a.Var} }

// Vars implements Atom.
func (a *Value) Vars() []Var {
	if a.Ref != "" {
		return appendVar([]Var{a.Var}, a.Ref)
	}
	return []Var{a.Var}
}

// Vars implements Atom.
func (a *Neq) Vars() []Var { return appendVar([]Var{a.Left}, a.Right) }

func appendVar(vars []Var, v Var) []Var {
	for _, existing := range vars {
		if existing == v {
			return vars
		}
	}
	return append(vars, v)
}

// Rename implements Atom.
func (a *Isa) Rename(fn func(Var) Var) Atom {
	return &Isa{Var: fn(a.Var), Type: a.Type}
}

// Rename implements Atom.
func (a *Relation) Rename(fn func(Var) Var) Atom {
	res := &Relation{
		Var:         fn(a.Var),
		Type:        a.Type,
		RolePlayers: make([]RolePlayer, len(a.RolePlayers)),
	}
	for i, rp := range a.RolePlayers {
		res.RolePlayers[i] = RolePlayer{Role: rp.Role, Player: fn(rp.Player)}
	}
	return res
}

// Rename implements Atom.
func (a *ID) Rename(fn func(Var) Var) Atom {
	return &ID{Var: fn(a.Var), ID: a.ID}
}

// Rename implements Atom.
func (a *Value) Rename(fn func(Var) Var) Atom {
	res := *a
	res.Var = fn(a.Var)
	if a.Ref != "" {
		res.Ref = fn(a.Ref)
	}
	return &res
}

// Rename implements Atom.
func (a *Neq) Rename(fn func(Var) Var) Atom {
	return &Neq{Left: fn(a.Left), Right: fn(a.Right)}
}

// WriteKey implements Atom.
func (a *Isa) WriteKey(b *strings.Builder, name func(Var) string, blankIDs bool) {
	b.WriteString("isa(")
	b.WriteString(name(a.Var))
	b.WriteByte(',')
	b.WriteString(a.Type)
	b.WriteByte(')')
}

// WriteKey implements Atom. The role players are written in sorted order, so
// the order in which they were given doesn't matter.
func (a *Relation) WriteKey(b *strings.Builder, name func(Var) string, blankIDs bool) {
	b.WriteString("rel(")
	b.WriteString(name(a.Var))
	b.WriteByte(',')
	b.WriteString(a.Type)
	players := make([]string, len(a.RolePlayers))
	for i, rp := range a.RolePlayers {
		players[i] = rp.Role + ":" + name(rp.Player)
	}
	sort.Strings(players)
	for _, p := range players {
		b.WriteByte(',')
		b.WriteString(p)
	}
	b.WriteByte(')')
}

// WriteKey implements Atom.
func (a *ID) WriteKey(b *strings.Builder, name func(Var) string, blankIDs bool) {
	b.WriteString("id(")
	b.WriteString(name(a.Var))
	b.WriteByte(',')
	if !blankIDs {
		b.WriteString(a.ID)
	}
	b.WriteByte(')')
}

// WriteKey implements Atom.
func (a *Value) WriteKey(b *strings.Builder, name func(Var) string, blankIDs bool) {
	b.WriteString("val(")
	b.WriteString(name(a.Var))
	b.WriteByte(',')
	b.WriteString(a.Op.String())
	b.WriteByte(',')
	if a.Ref != "" {
		b.WriteString(name(a.Ref))
	} else {
		a.Literal.Key(b)
	}
	b.WriteByte(')')
}

// WriteKey implements Atom. Inequality is symmetric, so the two variable names
// are written in sorted order.
func (a *Neq) WriteKey(b *strings.Builder, name func(Var) string, blankIDs bool) {
	l, r := name(a.Left), name(a.Right)
	if r < l {
		l, r = r, l
	}
	b.WriteString("neq(")
	b.WriteString(l)
	b.WriteByte(',')
	b.WriteString(r)
	b.WriteByte(')')
}

func ownName(v Var) string {
	return v.String()
}

// Key implements cmp.Key.
func (a *Isa) Key(b *strings.Builder) { a.WriteKey(b, ownName, false) }

// Key implements cmp.Key.
func (a *Relation) Key(b *strings.Builder) { a.WriteKey(b, ownName, false) }

// Key implements cmp.Key.
func (a *ID) Key(b *strings.Builder) { a.WriteKey(b, ownName, false) }

// Key implements cmp.Key.
func (a *Value) Key(b *strings.Builder) { a.WriteKey(b, ownName, false) }

// Key implements cmp.Key.
func (a *Neq) Key(b *strings.Builder) { a.WriteKey(b, ownName, false) }

func typeString(t string) string {
	if t == "" {
		return "*"
	}
	return t
}

func (a *Isa) String() string {
	return fmt.Sprintf("%v isa %s", a.Var, typeString(a.Type))
}

func (a *Relation) String() string {
	players := make([]string, len(a.RolePlayers))
	for i, rp := range a.RolePlayers {
		players[i] = rp.String()
	}
	return fmt.Sprintf("%v (%s) isa %s", a.Var, strings.Join(players, ", "),
		typeString(a.Type))
}

func (a *ID) String() string {
	return fmt.Sprintf("%v id %s", a.Var, a.ID)
}

func (a *Value) String() string {
	if a.Ref != "" {
		return fmt.Sprintf("%v %v %v", a.Var, a.Op, a.Ref)
	}
	return fmt.Sprintf("%v %v %s", a.Var, a.Op, a.Literal.Format())
}

// String writes the variables in sorted order, like WriteKey.
func (a *Neq) String() string {
	l, r := a.Left, a.Right
	if r < l {
		l, r = r, l
	}
	return fmt.Sprintf("%v != %v", l, r)
}

// ConversionError is returned when an atom is asked to be converted to a
// variant it isn't.
type ConversionError struct {
	Atom Atom
	To   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("illegal atom conversion: %v (%T) is not %s", e.Atom, e.Atom, e.To)
}

// AsRelation returns the atom as a relation constraint, or a ConversionError
// if it's some other variant.
func AsRelation(a Atom) (*Relation, error) {
	if rel, ok := a.(*Relation); ok {
		return rel, nil
	}
	return nil, &ConversionError{Atom: a, To: "a relation constraint"}
}

// AsIsa returns the atom as a type constraint, or a ConversionError if it's
// some other variant.
func AsIsa(a Atom) (*Isa, error) {
	if isa, ok := a.(*Isa); ok {
		return isa, nil
	}
	return nil, &ConversionError{Atom: a, To: "a type constraint"}
}

// TypeOf returns the type named by a selectable atom, or "" for non-selectable
// atoms and untyped selectable atoms.
func TypeOf(a Atom) string {
	switch a := a.(type) {
	case *Isa:
		return a.Type
	case *Relation:
		return a.Type
	}
	return ""
}

// KeyOf returns the serialization of the atom using its own variable names.
func KeyOf(a Atom) string {
	return cmp.GetKey(a)
}
