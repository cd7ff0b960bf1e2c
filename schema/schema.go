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

// Package schema describes the type hierarchy of a knowledge graph: which
// types specialize which, and which roles each relation type has.
//
// A nil *Schema is valid and describes a flat hierarchy: every type is only a
// subtype of itself.
package schema

import (
	"fmt"
	"sort"
)

// Kind is the category of a type.
type Kind uint8

// The possible Kinds.
const (
	Entity Kind = iota + 1
	Relation
	Attribute
)

func (k Kind) String() string {
	switch k {
	case Entity:
		return "entity"
	case Relation:
		return "relation"
	case Attribute:
		return "attribute"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Role describes one role of a relation type.
type Role struct {
	Name string
	// The types allowed to play the role. Empty means any type.
	Players []string
}

type typeInfo struct {
	kind  Kind
	super string
	roles map[string][]string
}

// Schema is a set of type definitions. It's safe for concurrent reads once
// fully built.
type Schema struct {
	types map[string]*typeInfo
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{types: make(map[string]*typeInfo)}
}

func (s *Schema) define(name string, kind Kind, super string) (*typeInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("type name must not be empty")
	}
	if _, exists := s.types[name]; exists {
		return nil, fmt.Errorf("type %s defined twice", name)
	}
	if super != "" {
		superInfo, ok := s.types[super]
		if !ok {
			return nil, fmt.Errorf("type %s: supertype %s is not defined", name, super)
		}
		if superInfo.kind != kind {
			return nil, fmt.Errorf("type %s: supertype %s is a %v, not a %v",
				name, super, superInfo.kind, kind)
		}
	}
	info := &typeInfo{kind: kind, super: super}
	s.types[name] = info
	return info, nil
}

// AddEntity defines an entity type. If super is not empty, it must already be
// defined as an entity type.
func (s *Schema) AddEntity(name, super string) error {
	_, err := s.define(name, Entity, super)
	return err
}

// AddAttribute defines an attribute type. If super is not empty, it must
// already be defined as an attribute type.
func (s *Schema) AddAttribute(name, super string) error {
	_, err := s.define(name, Attribute, super)
	return err
}

// AddRelation defines a relation type with the given roles. A relation type
// inherits the roles of its supertype.
func (s *Schema) AddRelation(name, super string, roles ...Role) error {
	info, err := s.define(name, Relation, super)
	if err != nil {
		return err
	}
	info.roles = make(map[string][]string)
	if super != "" {
		for r, players := range s.types[super].roles {
			info.roles[r] = players
		}
	}
	for _, r := range roles {
		if r.Name == "" {
			return fmt.Errorf("relation %s: role name must not be empty", name)
		}
		info.roles[r.Name] = append([]string(nil), r.Players...)
	}
	return nil
}

// Has returns true if the type is defined.
func (s *Schema) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.types[name]
	return ok
}

// KindOf returns the kind of the type, or 0 if it's not defined.
func (s *Schema) KindOf(name string) Kind {
	if s == nil {
		return 0
	}
	if info, ok := s.types[name]; ok {
		return info.kind
	}
	return 0
}

// IsSubtype returns true if sub is super or a descendant of super. The empty
// type is the supertype of everything.
func (s *Schema) IsSubtype(sub, super string) bool {
	if super == "" || sub == super {
		return true
	}
	if s == nil {
		return false
	}
	for t := sub; t != ""; {
		info, ok := s.types[t]
		if !ok {
			return false
		}
		if info.super == super {
			return true
		}
		t = info.super
	}
	return false
}

// Supertypes returns t followed by each of its ancestors, nearest first.
func (s *Schema) Supertypes(t string) []string {
	res := []string{t}
	if s == nil {
		return res
	}
	for {
		info, ok := s.types[t]
		if !ok || info.super == "" {
			return res
		}
		t = info.super
		res = append(res, t)
	}
}

// Subtypes returns t and all of its descendants in sorted order.
func (s *Schema) Subtypes(t string) []string {
	if s == nil {
		return []string{t}
	}
	res := []string{t}
	for name := range s.types {
		if name != t && s.IsSubtype(name, t) {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}

// Roles returns the role names of a relation type in sorted order.
func (s *Schema) Roles(relation string) []string {
	if s == nil {
		return nil
	}
	info, ok := s.types[relation]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(info.roles))
	for r := range info.roles {
		res = append(res, r)
	}
	sort.Strings(res)
	return res
}

// PlayerTypes returns the types allowed to play the role in the relation type.
// It returns nil if any type may play it, or if the schema doesn't say.
func (s *Schema) PlayerTypes(relation, role string) []string {
	if s == nil {
		return nil
	}
	info, ok := s.types[relation]
	if !ok {
		return nil
	}
	return append([]string(nil), info.roles[role]...)
}

// RelationTypesWithRoles returns the relation types that define all the given
// roles, in sorted order. Empty role names are ignored.
func (s *Schema) RelationTypesWithRoles(roles []string) []string {
	if s == nil {
		return nil
	}
	var res []string
	for name, info := range s.types {
		if info.kind != Relation {
			continue
		}
		ok := true
		for _, r := range roles {
			if r == "" {
				continue
			}
			if _, has := info.roles[r]; !has {
				ok = false
				break
			}
		}
		if ok {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}
