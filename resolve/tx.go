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
	"fmt"
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/cache"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/util/stream"
	"github.com/ebay/reasoner/util/tracing"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Tx holds the state shared by the queries of one transaction: the answer
// and plan caches and the set of facts already materialised. It's not safe
// for concurrent use.
type Tx struct {
	engine *Engine
	id     uuid.UUID
	plans  *cache.Structural
	cache  *cache.Semantic
	// Keyed by rule head and substitution. The values are the stored
	// substitutions that came back from the Materializer.
	materialised map[string][]answer.Substitution
	log          *log.Entry
}

// ID returns the transaction's unique identifier.
func (tx *Tx) ID() uuid.UUID {
	return tx.id
}

// Cache returns the transaction's semantic cache.
func (tx *Tx) Cache() *cache.Semantic {
	return tx.cache
}

// Resolve returns a lazy stream of the distinct answers to q. Each answer
// binds every variable of q. Work is done only as answers are pulled: if the
// caller stops early, the remaining search is abandoned.
//
// If the rules that apply to q are recursive, the stream may need several
// rounds over the whole search tree before it's exhausted. Answers are
// returned as soon as they're found, in whichever round that is.
func (tx *Tx) Resolve(ctx context.Context, q *query.Conjunctive) stream.Iterator[answer.Substitution] {
	q = q.InferTypes()
	reiterate, err := tx.requiresReiteration(q)
	if err != nil {
		return stream.Error[answer.Substitution](err)
	}
	r := &resolution{
		tx:        tx,
		ctx:       ctx,
		query:     q,
		reiterate: reiterate,
		emitted:   make(map[string]bool),
	}
	if tx.engine.options.Limit > 0 {
		return stream.Limit[answer.Substitution](r, tx.engine.options.Limit)
	}
	return r
}

// ResolveAll is like Resolve but collects the answers into a slice.
func (tx *Tx) ResolveAll(ctx context.Context, q *query.Conjunctive) ([]answer.Substitution, error) {
	return stream.Collect(tx.Resolve(ctx, q))
}

// requiresReiteration returns true if some atomic query of q may be answered
// by recursive rules.
func (tx *Tx) requiresReiteration(q *query.Conjunctive) (bool, error) {
	d, err := q.Decompose(tx.engine.rules.Appends)
	if err != nil {
		return false, err
	}
	for _, a := range d.Atomics {
		if tx.engine.rules.RequiresReiteration(a) {
			return true, nil
		}
	}
	return false, nil
}

// root returns the state at the top of a resolution tree for q.
func (tx *Tx) root(q *query.Conjunctive, visited *visited) State {
	if a, err := query.AtomicOf(q); err == nil {
		return newAtomicState(tx, a, nil, visited)
	}
	return newConjunctiveState(tx, q, nil, visited)
}

// materialise stores a rule-derived fact, given the rule's head query and an
// answer to its body. Within a transaction, each fact is passed to the
// Materializer at most once.
func (tx *Tx) materialise(ctx context.Context, head *query.Atomic, sub answer.Substitution) ([]answer.Substitution, error) {
	key := materialisedKey(head, sub)
	if res, ok := tx.materialised[key]; ok {
		metrics.materialisations.WithLabelValues("deduplicated").Inc()
		return withExplanation(res, sub.Explanation()), nil
	}
	if tx.engine.backend.Materializer == nil {
		return nil, fmt.Errorf("can't materialise %v: no Materializer configured", head)
	}
	span, ctx := tracing.StartSpan(ctx, "materialise", metrics.materialiseDurationSeconds)
	span.SetTag("head", head.String())
	defer span.Finish()
	it, err := tx.engine.backend.Materializer.Materialise(ctx, head, sub)
	if err != nil {
		return nil, err
	}
	res, err := stream.Collect(it)
	if err != nil {
		return nil, err
	}
	metrics.materialisations.WithLabelValues("stored").Inc()
	tx.materialised[key] = res
	tx.log.WithFields(log.Fields{
		"head":    head,
		"answers": len(res),
	}).Debug("Materialised rule conclusion")
	return withExplanation(res, sub.Explanation()), nil
}

func materialisedKey(head *query.Atomic, sub answer.Substitution) string {
	var b strings.Builder
	b.WriteString(head.String())
	b.WriteByte('|')
	sub.Key(&b)
	return b.String()
}

func withExplanation(subs []answer.Substitution, e answer.Explanation) []answer.Substitution {
	res := make([]answer.Substitution, len(subs))
	for i, s := range subs {
		res[i] = s.WithExplanation(e)
	}
	return res
}

// resolution is the iterator returned by Resolve. It runs rounds of
// resolution until one of them finds nothing new.
type resolution struct {
	tx    *Tx
	ctx   context.Context
	query *query.Conjunctive
	// Set if q reaches recursive rules, which makes more than one round
	// likely.
	reiterate bool
	// Keys of the answers already returned, across rounds.
	emitted map[string]bool
	err     error
	done    bool

	// Per round.
	round      int
	states     *stateIterator
	visited    *visited
	span       *tracing.Span
	newAnswers int
	cacheSize  int
}

func (r *resolution) Next() (answer.Substitution, bool, error) {
	for {
		if r.err != nil {
			return answer.Substitution{}, false, r.err
		}
		if r.done {
			return answer.Substitution{}, false, nil
		}
		if r.states == nil {
			r.startRound()
		}
		sub, ok, err := r.states.Next()
		if err != nil {
			r.span.SetTag("error", err.Error())
			r.span.Finish()
			r.err = err
			continue
		}
		if !ok {
			r.finishRound()
			continue
		}
		k := cmp.GetKey(sub)
		if r.emitted[k] {
			continue
		}
		r.emitted[k] = true
		r.newAnswers++
		metrics.answersProduced.Inc()
		return sub, true, nil
	}
}

func (r *resolution) startRound() {
	r.round++
	r.visited = newVisited()
	r.newAnswers = 0
	r.cacheSize = r.tx.cache.Size()
	var ctx context.Context
	r.span, ctx = tracing.StartSpan(r.ctx, "resolve round", metrics.roundDurationSeconds)
	r.span.SetTag("round", r.round)
	r.span.SetTag("query", r.query.String())
	r.states = newStateIterator(ctx, r.tx.root(r.query, r.visited))
}

// finishRound decides whether another round is needed. A round that cut off
// no subgoals saw every answer. Otherwise, a round that found no new answers
// and didn't grow the cache has reached the fixed point: at that point, every
// atomic query the round visited has all of its answers.
func (r *resolution) finishRound() {
	r.span.Finish()
	r.states = nil
	if r.visited.cuts == 0 {
		if r.reiterate {
			metrics.roundsPerResolve.Observe(float64(r.round))
		}
		r.done = true
		return
	}
	propagated := r.tx.cache.PropagateAnswers()
	fields := log.Fields{
		"round":      r.round,
		"query":      r.query,
		"answers":    r.newAnswers,
		"cached":     r.tx.cache.Size(),
		"propagated": propagated,
	}
	if r.newAnswers == 0 && r.tx.cache.Size() == r.cacheSize {
		for _, q := range r.visited.queries {
			r.tx.cache.AckComplete(q)
		}
		if r.reiterate {
			metrics.roundsPerResolve.Observe(float64(r.round))
		}
		r.tx.log.WithFields(fields).Debug("Resolution reached a fixed point")
		r.done = true
		return
	}
	if r.round >= r.tx.engine.options.MaxRounds {
		r.tx.log.WithFields(fields).Warn("Resolution stopped after the maximum number of rounds; answers may be incomplete")
		r.done = true
		return
	}
	r.tx.log.WithFields(fields).Debug("Starting another resolution round")
}
