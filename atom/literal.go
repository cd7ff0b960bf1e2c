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

package atom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Var is a named query variable. Names are opaque: two queries that differ
// only in their variable names are equivalent.
type Var string

// String returns the variable with a leading '$'.
func (v Var) String() string {
	return "$" + string(v)
}

// Concept is a handle to a thing in the graph store.
type Concept struct {
	// A unique identifier assigned by the store.
	ID string
	// The most specific type of the concept, if known.
	Type string
	// For attributes, the attribute's value. nil otherwise.
	Value *Literal
}

// String returns a compact representation of the concept.
func (c Concept) String() string {
	if c.Value != nil {
		return fmt.Sprintf("%s(%s)", c.ID, c.Value.Format())
	}
	return c.ID
}

// LiteralKind identifies the type of value held in a Literal.
type LiteralKind uint8

// The possible LiteralKinds.
const (
	KindInt LiteralKind = iota + 1
	KindFloat
	KindString
	KindBool
)

// Literal is a constant value: an integer, a floating point number, a string,
// or a boolean. Only the field corresponding to Kind is meaningful.
type Literal struct {
	Kind   LiteralKind
	Int    int64
	Float  float64
	String string
	Bool   bool
}

// Int returns an integer literal.
func Int(v int64) Literal { return Literal{Kind: KindInt, Int: v} }

// Float returns a floating point literal.
func Float(v float64) Literal { return Literal{Kind: KindFloat, Float: v} }

// String returns a string literal.
func String(v string) Literal { return Literal{Kind: KindString, String: v} }

// Bool returns a boolean literal.
func Bool(v bool) Literal { return Literal{Kind: KindBool, Bool: v} }

func (l Literal) numeric() (float64, bool) {
	switch l.Kind {
	case KindInt:
		return float64(l.Int), true
	case KindFloat:
		return l.Float, true
	}
	return 0, false
}

// Compare orders l relative to other, returning -1, 0, or 1. Integers and
// floats compare numerically with each other. ok is false if the two literals
// have incomparable kinds.
func (l Literal) Compare(other Literal) (result int, ok bool) {
	if l.Kind == KindInt && other.Kind == KindInt {
		return compareOrdered(l.Int, other.Int), true
	}
	if a, isNum := l.numeric(); isNum {
		b, isNum := other.numeric()
		if !isNum {
			return 0, false
		}
		return compareOrdered(a, b), true
	}
	if l.Kind != other.Kind {
		return 0, false
	}
	switch l.Kind {
	case KindString:
		return strings.Compare(l.String, other.String), true
	case KindBool:
		switch {
		case l.Bool == other.Bool:
			return 0, true
		case other.Bool:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Format returns the literal in the syntax used by String and Key.
func (l Literal) Format() string {
	switch l.Kind {
	case KindInt:
		return strconv.FormatInt(l.Int, 10)
	case KindFloat:
		if l.Float == math.Trunc(l.Float) && math.Abs(l.Float) < 1e15 {
			return strconv.FormatFloat(l.Float, 'f', 1, 64)
		}
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case KindString:
		return strconv.Quote(l.String)
	case KindBool:
		return strconv.FormatBool(l.Bool)
	}
	return "<invalid>"
}

// Key writes an unambiguous serialization of the literal.
func (l Literal) Key(b *strings.Builder) {
	b.WriteByte("?ifsb"[l.Kind%5])
	b.WriteString(l.Format())
}

// Comparator is the operator of a value constraint.
type Comparator uint8

// The possible Comparators.
const (
	EQ Comparator = iota + 1
	NEQ
	LT
	LTE
	GT
	GTE
)

var comparatorStrings = map[Comparator]string{
	EQ:  "==",
	NEQ: "!=",
	LT:  "<",
	LTE: "<=",
	GT:  ">",
	GTE: ">=",
}

// String returns the operator symbol, like "<=".
func (op Comparator) String() string {
	if s, ok := comparatorStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("Comparator(%d)", uint8(op))
}

// ParseComparator returns the Comparator for the given operator symbol.
func ParseComparator(s string) (Comparator, error) {
	for op, str := range comparatorStrings {
		if str == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown comparison operator %q", s)
}

// Eval applies the operator to the result of Literal.Compare.
func (op Comparator) Eval(cmp int) bool {
	switch op {
	case EQ:
		return cmp == 0
	case NEQ:
		return cmp != 0
	case LT:
		return cmp < 0
	case LTE:
		return cmp <= 0
	case GT:
		return cmp > 0
	case GTE:
		return cmp >= 0
	}
	return false
}

// Holds reports whether "left op right" is true. Incomparable literals only
// satisfy NEQ.
func (op Comparator) Holds(left, right Literal) bool {
	cmp, ok := left.Compare(right)
	if !ok {
		return op == NEQ
	}
	return op.Eval(cmp)
}
