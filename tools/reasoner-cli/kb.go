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

package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph/memstore"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/schema"
	"gopkg.in/yaml.v3"
)

// kbFile is the on-disk format of a knowledge base. JSON files are read as
// YAML.
type kbFile struct {
	Schema  schemaSpec            `yaml:"schema"`
	Facts   factsSpec             `yaml:"facts"`
	Rules   []ruleSpec            `yaml:"rules"`
	Queries map[string][]atomSpec `yaml:"queries"`
}

type schemaSpec struct {
	Entities   []typeSpec     `yaml:"entities"`
	Attributes []typeSpec     `yaml:"attributes"`
	Relations  []relationSpec `yaml:"relations"`
}

type typeSpec struct {
	Name  string `yaml:"name"`
	Super string `yaml:"super"`
}

type relationSpec struct {
	Name  string     `yaml:"name"`
	Super string     `yaml:"super"`
	Roles []roleSpec `yaml:"roles"`
}

type roleSpec struct {
	Name    string   `yaml:"name"`
	Players []string `yaml:"players"`
}

type factsSpec struct {
	Entities   []entityFact    `yaml:"entities"`
	Attributes []attributeFact `yaml:"attributes"`
	Relations  []relationFact  `yaml:"relations"`
}

type entityFact struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

type attributeFact struct {
	ID    string      `yaml:"id"`
	Type  string      `yaml:"type"`
	Value literalSpec `yaml:"value"`
}

type relationFact struct {
	ID      string       `yaml:"id"`
	Type    string       `yaml:"type"`
	Players []playerFact `yaml:"players"`
}

type playerFact struct {
	Role string `yaml:"role"`
	ID   string `yaml:"id"`
}

type ruleSpec struct {
	ID   string     `yaml:"id"`
	When []atomSpec `yaml:"when"`
	Then atomSpec   `yaml:"then"`
}

// atomSpec holds exactly one kind of atom.
type atomSpec struct {
	Isa      *isaSpec      `yaml:"isa"`
	Relation *relationAtom `yaml:"relation"`
	ID       *idSpec       `yaml:"id"`
	Value    *valueSpec    `yaml:"value"`
	Neq      *neqSpec      `yaml:"neq"`
}

type isaSpec struct {
	Var  string `yaml:"var"`
	Type string `yaml:"type"`
}

type relationAtom struct {
	Var     string       `yaml:"var"`
	Type    string       `yaml:"type"`
	Players []playerAtom `yaml:"players"`
}

type playerAtom struct {
	Role   string `yaml:"role"`
	Player string `yaml:"player"`
}

type idSpec struct {
	Var string `yaml:"var"`
	ID  string `yaml:"id"`
}

type valueSpec struct {
	Var     string       `yaml:"var"`
	Op      string       `yaml:"op"`
	Literal *literalSpec `yaml:"literal"`
	Ref     string       `yaml:"ref"`
}

type neqSpec struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// literalSpec is a scalar whose YAML tag selects the kind of literal.
type literalSpec struct {
	atom.Literal
}

func (l *literalSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: literal must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int":
		v, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: %v", node.Line, err)
		}
		l.Literal = atom.Int(v)
	case "!!float":
		v, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %v", node.Line, err)
		}
		l.Literal = atom.Float(v)
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return err
		}
		l.Literal = atom.Bool(v)
	case "!!str":
		l.Literal = atom.String(node.Value)
	default:
		return fmt.Errorf("line %d: unsupported literal %q (%s)", node.Line, node.Value, node.ShortTag())
	}
	return nil
}

func (spec atomSpec) toAtom() (atom.Atom, error) {
	var res []atom.Atom
	if spec.Isa != nil {
		res = append(res, &atom.Isa{Var: atom.Var(spec.Isa.Var), Type: spec.Isa.Type})
	}
	if spec.Relation != nil {
		r := &atom.Relation{Var: atom.Var(spec.Relation.Var), Type: spec.Relation.Type}
		for _, p := range spec.Relation.Players {
			r.RolePlayers = append(r.RolePlayers, atom.RolePlayer{Role: p.Role, Player: atom.Var(p.Player)})
		}
		res = append(res, r)
	}
	if spec.ID != nil {
		res = append(res, &atom.ID{Var: atom.Var(spec.ID.Var), ID: spec.ID.ID})
	}
	if spec.Value != nil {
		op, err := atom.ParseComparator(spec.Value.Op)
		if err != nil {
			return nil, err
		}
		v := &atom.Value{Var: atom.Var(spec.Value.Var), Op: op, Ref: atom.Var(spec.Value.Ref)}
		switch {
		case spec.Value.Literal != nil && v.Ref != "":
			return nil, fmt.Errorf("value constraint on $%s has both a literal and a ref", spec.Value.Var)
		case spec.Value.Literal != nil:
			v.Literal = spec.Value.Literal.Literal
		case v.Ref == "":
			return nil, fmt.Errorf("value constraint on $%s needs a literal or a ref", spec.Value.Var)
		}
		res = append(res, v)
	}
	if spec.Neq != nil {
		res = append(res, &atom.Neq{Left: atom.Var(spec.Neq.Left), Right: atom.Var(spec.Neq.Right)})
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("each atom needs exactly one of isa, relation, id, value, or neq; got %d", len(res))
	}
	for _, v := range res[0].Vars() {
		if v == "" {
			return nil, fmt.Errorf("atom %v has an empty variable name", res[0])
		}
	}
	return res[0], nil
}

func toConjunctive(s *schema.Schema, specs []atomSpec) (*query.Conjunctive, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("query has no atoms")
	}
	atoms := make([]atom.Atom, len(specs))
	for i, spec := range specs {
		a, err := spec.toAtom()
		if err != nil {
			return nil, fmt.Errorf("atom %d: %v", i+1, err)
		}
		atoms[i] = a
	}
	return query.NewConjunctive(s, atoms...), nil
}

// knowledgeBase is a loaded kbFile.
type knowledgeBase struct {
	schema  *schema.Schema
	store   *memstore.Store
	rules   *rules.Store
	queries map[string]*query.Conjunctive
}

// decodeStrict decodes a single YAML document into out, rejecting unknown
// fields.
func decodeStrict(data []byte, out interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(out)
}

func loadKB(filename string) (*knowledgeBase, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	kb, err := parseKB(data)
	if err != nil {
		return nil, fmt.Errorf("error loading knowledge base %v: %v", filename, err)
	}
	return kb, nil
}

func parseKB(data []byte) (*knowledgeBase, error) {
	var f kbFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, err
	}
	s, err := f.Schema.build()
	if err != nil {
		return nil, fmt.Errorf("schema: %v", err)
	}
	kb := &knowledgeBase{
		schema:  s,
		store:   memstore.New(s),
		queries: make(map[string]*query.Conjunctive, len(f.Queries)),
	}
	if err := f.Facts.load(kb.store); err != nil {
		return nil, fmt.Errorf("facts: %v", err)
	}
	rs := make([]*rules.Rule, len(f.Rules))
	for i, spec := range f.Rules {
		body, err := toConjunctive(s, spec.When)
		if err != nil {
			return nil, fmt.Errorf("rule %s: body: %v", spec.ID, err)
		}
		head, err := spec.Then.toAtom()
		if err != nil {
			return nil, fmt.Errorf("rule %s: head: %v", spec.ID, err)
		}
		rs[i], err = rules.New(spec.ID, body, head)
		if err != nil {
			return nil, err
		}
	}
	kb.rules, err = rules.NewStore(s, rs...)
	if err != nil {
		return nil, err
	}
	for name, specs := range f.Queries {
		q, err := toConjunctive(s, specs)
		if err != nil {
			return nil, fmt.Errorf("query %s: %v", name, err)
		}
		kb.queries[name] = q
	}
	return kb, nil
}

func (spec schemaSpec) build() (*schema.Schema, error) {
	s := schema.New()
	for _, t := range spec.Entities {
		if err := s.AddEntity(t.Name, t.Super); err != nil {
			return nil, err
		}
	}
	for _, t := range spec.Attributes {
		if err := s.AddAttribute(t.Name, t.Super); err != nil {
			return nil, err
		}
	}
	for _, t := range spec.Relations {
		roles := make([]schema.Role, len(t.Roles))
		for i, r := range t.Roles {
			roles[i] = schema.Role{Name: r.Name, Players: r.Players}
		}
		if err := s.AddRelation(t.Name, t.Super, roles...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// load inserts the facts into the store. Relations may refer to relations
// listed before them.
func (spec factsSpec) load(store *memstore.Store) error {
	for _, e := range spec.Entities {
		if err := store.PutEntity(e.ID, e.Type); err != nil {
			return err
		}
	}
	for _, a := range spec.Attributes {
		if a.Value.Kind == 0 {
			return fmt.Errorf("attribute %s needs a value", a.ID)
		}
		if err := store.PutAttribute(a.ID, a.Type, a.Value.Literal); err != nil {
			return err
		}
	}
	for _, r := range spec.Relations {
		players := make([]memstore.Player, len(r.Players))
		for i, p := range r.Players {
			players[i] = memstore.Player{Role: p.Role, ID: p.ID}
		}
		if err := store.PutRelation(r.ID, r.Type, players...); err != nil {
			return err
		}
	}
	return nil
}

// parseQuery returns the named query from the knowledge base or, if there's
// no such query, parses arg as an inline YAML list of atoms.
func (kb *knowledgeBase) parseQuery(arg string) (*query.Conjunctive, error) {
	if q, ok := kb.queries[arg]; ok {
		return q, nil
	}
	var specs []atomSpec
	if err := decodeStrict([]byte(arg), &specs); err != nil {
		return nil, fmt.Errorf("%q is not a known query name or a list of atoms: %v", arg, err)
	}
	return toConjunctive(kb.schema, specs)
}
