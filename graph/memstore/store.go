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

// Package memstore is an in-memory graph store. It implements the graph
// package's Executor, Planner, and Materializer interfaces, and it's used by
// tests and the command-line tool.
package memstore

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/util/stats"
	"github.com/google/btree"
)

// Player is one participant of a stored relation.
type Player struct {
	Role string
	ID   string
}

// Stats counts the calls made to a Store.
type Stats struct {
	// Number of calls to Traverse.
	Traversals int
	// Number of calls to Materialise.
	Materialisations int
	// Number of relations created by Materialise.
	Inserted int
	// Number of role players added to existing relations by Materialise.
	Appended int
}

// Store holds concepts and relations in memory. It's safe for concurrent use.
// A Store must be constructed with New.
type Store struct {
	schema *schema.Schema
	// Protects locked.
	lock sync.RWMutex
	// These fields are protected by lock.
	locked struct {
		// Every concept, keyed by ID.
		concepts map[string]atom.Concept
		// The players of every relation, keyed by relation ID.
		relations map[string][]Player
		// Each item has type typeItem.
		byType *btree.BTree
		// Each item has type playerItem.
		byPlayer *btree.BTree
		// Used to assign IDs to materialised relations.
		nextID int
	}
	traversals       int64
	materialisations int64
	inserted         int64
	appended         int64
}

// typeItem values are stored in the byType btree, ordered by type and then
// by concept ID.
type typeItem struct {
	typ string
	id  string
}

// Less is needed to order the btree.
func (item typeItem) Less(other btree.Item) bool {
	o := other.(typeItem)
	if item.typ != o.typ {
		return item.typ < o.typ
	}
	return item.id < o.id
}

// playerItem values are stored in the byPlayer btree. They index relations by
// the concepts playing in them.
type playerItem struct {
	player   string
	relation string
	role     string
}

// Less is needed to order the btree.
func (item playerItem) Less(other btree.Item) bool {
	o := other.(playerItem)
	if item.player != o.player {
		return item.player < o.player
	}
	if item.relation != o.relation {
		return item.relation < o.relation
	}
	return item.role < o.role
}

// New returns an empty store. If s is not nil, inserted concepts must have
// types defined in it, and type constraints honor its subtyping.
func New(s *schema.Schema) *Store {
	store := &Store{schema: s}
	store.locked.concepts = make(map[string]atom.Concept)
	store.locked.relations = make(map[string][]Player)
	store.locked.byType = btree.New(16)
	store.locked.byPlayer = btree.New(16)
	return store
}

// Schema returns the schema given to New.
func (store *Store) Schema() *schema.Schema {
	return store.schema
}

func (store *Store) checkType(typ string, kind schema.Kind) error {
	if typ == "" {
		return fmt.Errorf("concept type must not be empty")
	}
	if store.schema == nil {
		return nil
	}
	if got := store.schema.KindOf(typ); got != kind {
		if got == 0 {
			return fmt.Errorf("type %s is not defined", typ)
		}
		return fmt.Errorf("type %s is of kind %v, not %v", typ, got, kind)
	}
	return nil
}

// insertLocked adds a new concept. The caller must hold lock for writing.
func (store *Store) insertLocked(c atom.Concept) error {
	if c.ID == "" {
		return fmt.Errorf("concept ID must not be empty")
	}
	if _, exists := store.locked.concepts[c.ID]; exists {
		return fmt.Errorf("concept %s already exists", c.ID)
	}
	store.locked.concepts[c.ID] = c
	store.locked.byType.ReplaceOrInsert(typeItem{typ: c.Type, id: c.ID})
	return nil
}

// PutEntity inserts an entity.
func (store *Store) PutEntity(id, typ string) error {
	if err := store.checkType(typ, schema.Entity); err != nil {
		return err
	}
	store.lock.Lock()
	defer store.lock.Unlock()
	return store.insertLocked(atom.Concept{ID: id, Type: typ})
}

// PutAttribute inserts an attribute holding the given value.
func (store *Store) PutAttribute(id, typ string, value atom.Literal) error {
	if err := store.checkType(typ, schema.Attribute); err != nil {
		return err
	}
	store.lock.Lock()
	defer store.lock.Unlock()
	return store.insertLocked(atom.Concept{ID: id, Type: typ, Value: &value})
}

// PutRelation inserts a relation between existing concepts.
func (store *Store) PutRelation(id, typ string, players ...Player) error {
	if err := store.checkType(typ, schema.Relation); err != nil {
		return err
	}
	store.lock.Lock()
	defer store.lock.Unlock()
	for _, p := range players {
		if _, ok := store.locked.concepts[p.ID]; !ok {
			return &graph.UnresolvedReferenceError{ID: p.ID}
		}
	}
	if err := store.insertLocked(atom.Concept{ID: id, Type: typ}); err != nil {
		return err
	}
	store.locked.relations[id] = make([]Player, 0, len(players))
	store.addPlayersLocked(id, players)
	return nil
}

// addPlayersLocked adds role players to an existing relation. The caller must
// hold lock for writing.
func (store *Store) addPlayersLocked(relation string, players []Player) {
	for _, p := range players {
		store.locked.relations[relation] = append(store.locked.relations[relation], p)
		store.locked.byPlayer.ReplaceOrInsert(playerItem{
			player:   p.ID,
			relation: relation,
			role:     p.Role,
		})
	}
}

// Concept returns the concept with the given ID.
func (store *Store) Concept(id string) (atom.Concept, bool) {
	store.lock.RLock()
	defer store.lock.RUnlock()
	c, ok := store.locked.concepts[id]
	return c, ok
}

// Players returns the role players of the relation with the given ID, sorted
// by role and then by player.
func (store *Store) Players(relation string) []Player {
	store.lock.RLock()
	players := append([]Player(nil), store.locked.relations[relation]...)
	store.lock.RUnlock()
	sort.Slice(players, func(i, j int) bool {
		if players[i].Role != players[j].Role {
			return players[i].Role < players[j].Role
		}
		return players[i].ID < players[j].ID
	})
	return players
}

// Size returns the number of concepts in the store.
func (store *Store) Size() int {
	store.lock.RLock()
	defer store.lock.RUnlock()
	return len(store.locked.concepts)
}

// Stats returns how many calls the store has served so far.
func (store *Store) Stats() Stats {
	return Stats{
		Traversals:       int(atomic.LoadInt64(&store.traversals)),
		Materialisations: int(atomic.LoadInt64(&store.materialisations)),
		Inserted:         int(atomic.LoadInt64(&store.inserted)),
		Appended:         int(atomic.LoadInt64(&store.appended)),
	}
}

// ofTypeLocked calls fn for each concept whose type is typ or one of its
// subtypes, in order of type and then ID. An empty typ visits every concept.
// The caller must hold lock.
func (store *Store) ofTypeLocked(typ string, fn func(atom.Concept)) {
	visit := func(item btree.Item) bool {
		fn(store.locked.concepts[item.(typeItem).id])
		return true
	}
	if typ == "" {
		store.locked.byType.Ascend(visit)
		return
	}
	for _, t := range store.schema.Subtypes(typ) {
		store.locked.byType.AscendRange(typeItem{typ: t}, typeItem{typ: t + "\x00"}, visit)
	}
}

// relationsOfLocked returns the IDs of the relations in which the concept
// plays some role, in sorted order. The caller must hold lock.
func (store *Store) relationsOfLocked(player string) []string {
	var res []string
	store.locked.byPlayer.AscendRange(playerItem{player: player}, playerItem{player: player + "\x00"},
		func(item btree.Item) bool {
			id := item.(playerItem).relation
			if len(res) == 0 || res[len(res)-1] != id {
				res = append(res, id)
			}
			return true
		})
	return res
}

var (
	_ graph.Executor     = (*Store)(nil)
	_ graph.Planner      = (*Store)(nil)
	_ graph.Materializer = (*Store)(nil)
)

// Summary counts the stored concepts by type and the role players by relation
// type and role.
func (store *Store) Summary() *stats.Summary {
	store.lock.RLock()
	defer store.lock.RUnlock()
	res := new(stats.Summary)
	store.locked.byType.Ascend(func(item btree.Item) bool {
		typ := item.(typeItem).typ
		if n := len(res.Types); n > 0 && res.Types[n-1].Type == typ {
			res.Types[n-1].Count++
		} else {
			res.Types = append(res.Types, stats.TypeCount{Type: typ, Count: 1})
		}
		return true
	})
	roles := make(map[[2]string]uint64)
	for id, players := range store.locked.relations {
		typ := store.locked.concepts[id].Type
		for _, p := range players {
			roles[[2]string{typ, p.Role}]++
		}
	}
	for k, count := range roles {
		res.Roles = append(res.Roles, stats.RoleCount{Relation: k[0], Role: k[1], Count: count})
	}
	return res
}
