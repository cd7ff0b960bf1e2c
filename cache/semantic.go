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

// Package cache remembers the answers to atomic queries during a transaction.
//
// The Semantic cache stores answers per atomic query, up to variable
// renaming, and tracks whether each entry holds all of the store's answers
// (DB-complete) or all answers including those derived by rules (complete).
// Entries of queries with the same kind of selectable atom and the same type
// form a family; within a family, the cache proves which queries subsume
// which, and answers flow from a subsuming (parent) entry to the entries it
// subsumes (children).
//
// The Structural cache stores store-access plans, keyed by query structure
// with identifiers ignored.
package cache

import (
	"context"
	"fmt"
	"sort"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/graph"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/unifier"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/util/stream"
	log "github.com/sirupsen/logrus"
)

// InvalidCacheEntryError is returned when an answer can't be recorded because
// it breaks the cache's invariants. It indicates a bug in the caller.
type InvalidCacheEntryError struct {
	Query  string
	Answer answer.Substitution
	Reason string
}

func (e *InvalidCacheEntryError) Error() string {
	return fmt.Sprintf("invalid cache entry for %s: %s: %v", e.Query, e.Reason, e.Answer)
}

// Options define optional arguments to NewSemantic. The zero value of Options
// is usable.
type Options struct {
	// If set, answers are never shared between the entries of different
	// queries.
	DisableSubsumption bool
}

// Semantic is a per-transaction answer cache. It's not safe for concurrent
// use. A Semantic cache must be constructed with NewSemantic.
type Semantic struct {
	executor graph.Executor
	plans    *Structural
	options  Options
	// Keyed by the canonical key of the entry's query.
	entries map[string]*entry
	// Keyed by family key.
	families map[string][]*entry
	// The total number of answers across all entries.
	size int
}

// entry holds the answers to one atomic query. The query and the answers use
// the query's canonical variable names.
type entry struct {
	query      *query.Atomic
	answers    []answer.Substitution
	index      map[string]bool
	complete   bool
	dbComplete bool
	// Entries that subsume this one.
	parents []link
	// Entries this one subsumes.
	children []link
}

// link is a proven subsumption relationship.
type link struct {
	entry *entry
	// Maps the variables of the subsumed (child) query to those of the
	// subsuming (parent) query.
	unifier unifier.Unifier
}

// NewSemantic returns an empty cache. It reads answers that aren't cached
// from executor, using plans from the given plan cache.
func NewSemantic(executor graph.Executor, plans *Structural, options Options) *Semantic {
	return &Semantic{
		executor: executor,
		plans:    plans,
		options:  options,
		entries:  make(map[string]*entry),
		families: make(map[string][]*entry),
	}
}

// lookup returns the entry for q, creating it if needed, along with the
// unifier from q's variables to the entry's variables.
func (c *Semantic) lookup(q *query.Atomic) (*entry, unifier.Unifier) {
	canon := q.Canonical()
	if e, ok := c.entries[q.CanonicalKey()]; ok {
		return e, canon
	}
	e := &entry{
		query: q.Rename(canon.Rename()),
		index: make(map[string]bool),
	}
	c.entries[q.CanonicalKey()] = e
	family := e.query.FamilyKey()
	metrics.entriesCreated.Inc()
	if !c.options.DisableSubsumption {
		for _, other := range c.families[family] {
			if u, ok := query.Subsumes(e.query, other.query); ok {
				c.connect(other, e, u)
			}
			if u, ok := query.Subsumes(other.query, e.query); ok {
				c.connect(e, other, u)
			}
		}
	}
	c.families[family] = append(c.families[family], e)
	ground := e.query.IsGround()
	for _, p := range e.parents {
		if ground || p.entry.complete || p.entry.dbComplete {
			c.pull(p, e)
		}
	}
	return e, canon
}

// connect records that parent subsumes child, where u maps the child's
// variables to the parent's.
func (c *Semantic) connect(parent, child *entry, u unifier.Unifier) {
	child.parents = append(child.parents, link{entry: parent, unifier: u})
	parent.children = append(parent.children, link{entry: child, unifier: u})
	metrics.subsumptionLinks.Inc()
	log.WithFields(log.Fields{
		"parent": parent.query,
		"child":  child.query,
	}).Debug("Proved subsumption between cache entries")
}

// pull copies the answers of the parent in l into child, keeping those that
// satisfy the child's constraints. It returns the number of answers added.
func (c *Semantic) pull(l link, child *entry) int {
	inverse := l.unifier.Inverse()
	base := child.query.BaseSubstitution()
	added := 0
	for _, a := range l.entry.answers {
		s, ok := inverse.Apply(a)
		if !ok {
			continue
		}
		if s, ok = s.Extend(base); !ok || !child.query.Admits(s) {
			continue
		}
		if c.add(child, s.Project(child.query.Vars())) {
			added++
		}
	}
	metrics.answersPropagated.Add(float64(added))
	return added
}

// add inserts an answer into an entry if it's new.
func (c *Semantic) add(e *entry, s answer.Substitution) bool {
	k := cmp.GetKey(s)
	if e.index[k] {
		return false
	}
	e.index[k] = true
	e.answers = append(e.answers, s)
	c.size++
	return true
}

// Record adds an answer to q's entry. It returns true if the answer was new,
// and an InvalidCacheEntryError if the answer doesn't bind all of q's
// variables or has no explanation.
func (c *Semantic) Record(q *query.Atomic, sub answer.Substitution) (bool, error) {
	var reason string
	switch {
	case sub.Explanation() == nil:
		reason = "missing explanation"
	case !sub.Covers(q.Vars()):
		reason = fmt.Sprintf("answer must bind all of %v", q.Vars())
	}
	if reason != "" {
		metrics.invalidAnswers.Inc()
		return false, &InvalidCacheEntryError{Query: q.String(), Answer: sub, Reason: reason}
	}
	e, canon := c.lookup(q)
	s, _ := canon.Apply(sub.Project(q.Vars()))
	if c.add(e, s) {
		metrics.answersRecorded.Inc()
		return true, nil
	}
	return false, nil
}

// AnswerStream returns the answers to q. If q's entry or one of its parents is
// DB-complete, only cached answers are returned. Otherwise, the cached
// answers are followed by the answers found by traversing the store, which
// are recorded as they're read; once the traversal is exhausted, the entry is
// acknowledged DB-complete.
//
// Answers recorded for q while the stream is being read are also returned.
func (c *Semantic) AnswerStream(ctx context.Context, q *query.Atomic) stream.Iterator[answer.Substitution] {
	e, canon := c.lookup(q)
	inverse := canon.Inverse()
	source := "cache"
	if !e.dbComplete && c.completeFromParents(e) {
		source = "parent"
	}
	var traversal stream.Iterator[answer.Substitution]
	traversed := e.dbComplete
	if !traversed {
		source = "store"
	}
	metrics.answerStreams.WithLabelValues(source).Inc()
	i := 0
	return stream.Func[answer.Substitution](func() (answer.Substitution, bool, error) {
		for {
			if i < len(e.answers) {
				a := e.answers[i]
				i++
				s, _ := inverse.Apply(a)
				return s, true, nil
			}
			if traversed || e.dbComplete {
				return answer.Substitution{}, false, nil
			}
			if traversal == nil {
				it, err := c.traverse(ctx, e)
				if err != nil {
					return answer.Substitution{}, false, err
				}
				traversal = it
			}
			a, ok, err := traversal.Next()
			if err != nil {
				return answer.Substitution{}, false, err
			}
			if !ok {
				traversed = true
				e.dbComplete = true
				continue
			}
			if c.add(e, a) {
				metrics.answersRecorded.Inc()
			}
		}
	})
}

func (c *Semantic) traverse(ctx context.Context, e *entry) (stream.Iterator[answer.Substitution], error) {
	plan, err := c.plans.Plan(e.query)
	if err != nil {
		return nil, err
	}
	return c.executor.Traverse(ctx, plan)
}

// completeFromParents pulls the answers of every DB-complete parent into e.
// If there is one, e becomes DB-complete, and if some parent is complete, e
// becomes complete too. It returns true if e became DB-complete.
func (c *Semantic) completeFromParents(e *entry) bool {
	found := false
	for _, p := range e.parents {
		if !p.entry.dbComplete && !p.entry.complete {
			continue
		}
		c.pull(p, e)
		found = true
		e.dbComplete = true
		if p.entry.complete {
			e.complete = true
		}
	}
	return found
}

// Answers returns a snapshot of the cached answers to q, without reading
// the store.
func (c *Semantic) Answers(q *query.Atomic) []answer.Substitution {
	e, canon := c.lookup(q)
	if !e.dbComplete {
		c.completeFromParents(e)
	}
	inverse := canon.Inverse()
	res := make([]answer.Substitution, len(e.answers))
	for i, a := range e.answers {
		res[i], _ = inverse.Apply(a)
	}
	return res
}

// IsComplete returns true if q's entry or some entry subsuming it has been
// acknowledged complete.
func (c *Semantic) IsComplete(q *query.Atomic) bool {
	e, _ := c.lookup(q)
	return isComplete(e, make(map[*entry]bool))
}

func isComplete(e *entry, seen map[*entry]bool) bool {
	if e.complete {
		return true
	}
	seen[e] = true
	for _, p := range e.parents {
		if !seen[p.entry] && isComplete(p.entry, seen) {
			return true
		}
	}
	return false
}

// IsDBComplete returns true if q's entry or some entry subsuming it holds all
// of the store's answers.
func (c *Semantic) IsDBComplete(q *query.Atomic) bool {
	e, _ := c.lookup(q)
	return isDBComplete(e, make(map[*entry]bool))
}

func isDBComplete(e *entry, seen map[*entry]bool) bool {
	if e.complete || e.dbComplete {
		return true
	}
	seen[e] = true
	for _, p := range e.parents {
		if !seen[p.entry] && isDBComplete(p.entry, seen) {
			return true
		}
	}
	return false
}

// AckComplete acknowledges that q's entry holds every answer to q, including
// those derived by rules.
func (c *Semantic) AckComplete(q *query.Atomic) {
	e, _ := c.lookup(q)
	e.complete = true
	e.dbComplete = true
}

// AckDBComplete acknowledges that q's entry holds every answer to q that's
// in the store.
func (c *Semantic) AckDBComplete(q *query.Atomic) {
	e, _ := c.lookup(q)
	e.dbComplete = true
}

// PropagateAnswers copies the answers of every DB-complete or complete entry
// into the entries it subsumes. It returns the number of answers added.
func (c *Semantic) PropagateAnswers() int {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	added := 0
	for _, k := range keys {
		e := c.entries[k]
		if !e.complete && !e.dbComplete {
			continue
		}
		for _, child := range e.children {
			added += c.pull(link{entry: e, unifier: child.unifier}, child.entry)
		}
	}
	if added > 0 {
		log.WithField("answers", added).Debug("Propagated answers between cache entries")
	}
	return added
}

// Size returns the total number of answers cached.
func (c *Semantic) Size() int {
	return c.size
}

// Len returns the number of cache entries.
func (c *Semantic) Len() int {
	return len(c.entries)
}

// Clear removes every entry.
func (c *Semantic) Clear() {
	c.entries = make(map[string]*entry)
	c.families = make(map[string][]*entry)
	c.size = 0
}
