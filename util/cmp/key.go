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

// Package cmp has helpers for comparing values and deriving identity keys.
package cmp

import (
	"sort"
	"strings"
)

// The Key interface is satisfied by any object whose identity can be serialized
// into a string. The serialization is meant for maps and equality checks, but
// should remain readable to make debugging and unit tests easier.
type Key interface {
	Key(*strings.Builder)
}

// GetKey returns the identity/comparison key of the object.
func GetKey(object Key) string {
	var b strings.Builder
	object.Key(&b)
	return b.String()
}

// SortedKeys returns the keys of all the objects in ascending order. Duplicate
// keys are kept.
func SortedKeys[T Key](objects []T) []string {
	keys := make([]string, len(objects))
	for i, o := range objects {
		keys[i] = GetKey(o)
	}
	sort.Strings(keys)
	return keys
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MinInt returns the smaller of a and b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
