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

package cache

import (
	metricsutil "github.com/ebay/reasoner/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type cacheMetrics struct {
	answerStreams     *prometheus.CounterVec
	answersRecorded   prometheus.Counter
	answersPropagated prometheus.Counter
	entriesCreated    prometheus.Counter
	subsumptionLinks  prometheus.Counter
	planLookups       *prometheus.CounterVec
	invalidAnswers    prometheus.Counter
}

var metrics cacheMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = cacheMetrics{
		answerStreams: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "semantic_cache",
			Name:      "answer_streams",
			Help: `The number of answer streams opened on the semantic cache.

The source label is "cache" when the entry was already DB-complete, "parent" when
it was completed from a subsuming entry, and "store" when the graph store had
to be traversed.
`,
		}, []string{"source"}),
		answersRecorded: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "semantic_cache",
			Name:      "answers_recorded",
			Help:      `The number of new answers added to cache entries by Record or by store traversals.`,
		}),
		answersPropagated: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "semantic_cache",
			Name:      "answers_propagated",
			Help:      `The number of answers copied from a cache entry into an entry it subsumes.`,
		}),
		entriesCreated: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "semantic_cache",
			Name:      "entries_created",
			Help:      `The number of cache entries created.`,
		}),
		subsumptionLinks: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "semantic_cache",
			Name:      "subsumption_links",
			Help:      `The number of proven subsumption relationships between cache entries.`,
		}),
		planLookups: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "structural_cache",
			Name:      "lookups",
			Help:      `The number of plan lookups in the structural cache, labeled "hit" or "miss".`,
		}, []string{"result"}),
		invalidAnswers: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "semantic_cache",
			Name:      "invalid_answers",
			Help:      `The number of answers rejected by Record as invalid cache entries.`,
		}),
	}
}
