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

package memstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/util/stream"
	"github.com/google/btree"
	log "github.com/sirupsen/logrus"
)

// Materialise implements graph.Materializer for relation heads. If the
// relation variable is bound, any missing role players are added to that
// relation. Otherwise, an existing relation of the same type with the same
// role players is reused, or a new one is created. Calling it twice with the
// same arguments has the same effect as calling it once.
func (store *Store) Materialise(ctx context.Context, q *query.Atomic, sub answer.Substitution) (stream.Iterator[answer.Substitution], error) {
	atomic.AddInt64(&store.materialisations, 1)
	rel, err := atom.AsRelation(q.Atom())
	if err != nil {
		return nil, err
	}
	if rel.Type == "" {
		return nil, fmt.Errorf("can't materialise relation without a type: %v", rel)
	}
	players := make([]Player, 0, len(rel.RolePlayers))
	for _, rp := range rel.RolePlayers {
		c, ok := sub.Get(rp.Player)
		if !ok || rp.Role == "" {
			return stream.Empty[answer.Substitution](), nil
		}
		players = append(players, Player{Role: rp.Role, ID: c.ID})
	}

	store.lock.Lock()
	defer store.lock.Unlock()
	for _, p := range players {
		if _, ok := store.locked.concepts[p.ID]; !ok {
			return nil, &graph.UnresolvedReferenceError{ID: p.ID}
		}
	}
	if bound, ok := sub.Get(rel.Var); ok {
		existing, isRelation := store.locked.relations[bound.ID]
		if !isRelation {
			return nil, &graph.UnresolvedReferenceError{ID: bound.ID}
		}
		if missing := missingPlayers(existing, players); len(missing) > 0 {
			store.addPlayersLocked(bound.ID, missing)
			atomic.AddInt64(&store.appended, int64(len(missing)))
			log.WithFields(log.Fields{
				"relation": bound.ID,
				"players":  missing,
			}).Debug("Appended role players")
		}
		return stream.FromSlice([]answer.Substitution{
			sub.With(rel.Var, store.locked.concepts[bound.ID]),
		}), nil
	}
	c, found := store.findRelationLocked(rel.Type, players)
	if !found {
		c = store.createRelationLocked(rel.Type, players)
		atomic.AddInt64(&store.inserted, 1)
		log.WithFields(log.Fields{
			"relation": c.ID,
			"type":     c.Type,
			"players":  players,
		}).Debug("Inserted relation")
	}
	return stream.FromSlice([]answer.Substitution{sub.With(rel.Var, c)}), nil
}

// findRelationLocked returns an existing relation of exactly the given type
// that includes all the given players. The caller must hold lock.
func (store *Store) findRelationLocked(typ string, players []Player) (atom.Concept, bool) {
	var candidates []string
	if len(players) > 0 {
		candidates = store.relationsOfLocked(players[0].ID)
	} else {
		store.locked.byType.AscendRange(typeItem{typ: typ}, typeItem{typ: typ + "\x00"},
			func(item btree.Item) bool {
				candidates = append(candidates, item.(typeItem).id)
				return true
			})
	}
	for _, id := range candidates {
		c := store.locked.concepts[id]
		if c.Type == typ && len(missingPlayers(store.locked.relations[id], players)) == 0 {
			return c, true
		}
	}
	return atom.Concept{}, false
}

// createRelationLocked inserts a relation with a newly assigned ID. The
// caller must hold lock for writing.
func (store *Store) createRelationLocked(typ string, players []Player) atom.Concept {
	for {
		store.locked.nextID++
		id := fmt.Sprintf("_:%s%d", typ, store.locked.nextID)
		if _, exists := store.locked.concepts[id]; exists {
			continue
		}
		c := atom.Concept{ID: id, Type: typ}
		if err := store.insertLocked(c); err != nil {
			log.Panicf("Failed to insert new relation %v: %v", id, err)
		}
		store.locked.relations[id] = make([]Player, 0, len(players))
		store.addPlayersLocked(id, players)
		return c
	}
}

// missingPlayers returns the players in want that aren't in have, counting
// repeated players separately.
func missingPlayers(have, want []Player) []Player {
	counts := make(map[Player]int, len(have))
	for _, p := range have {
		counts[p]++
	}
	var missing []Player
	for _, p := range want {
		if counts[p] > 0 {
			counts[p]--
			continue
		}
		missing = append(missing, p)
	}
	return missing
}
