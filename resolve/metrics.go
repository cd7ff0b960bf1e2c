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
	metricsutil "github.com/ebay/reasoner/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type resolveMetrics struct {
	statesCreated              *prometheus.CounterVec
	answersProduced            prometheus.Counter
	subgoalsCut                prometheus.Counter
	roundsPerResolve           prometheus.Histogram
	roundDurationSeconds       prometheus.Summary
	materialiseDurationSeconds prometheus.Summary
	materialisations           *prometheus.CounterVec
}

var metrics resolveMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = resolveMetrics{
		statesCreated: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "states_created",
			Help:      `The number of resolution states created, labeled by kind of state.`,
		}, []string{"state"}),
		answersProduced: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "answers_produced",
			Help:      `The number of distinct answers returned to callers of Resolve.`,
		}),
		subgoalsCut: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "subgoals_cut",
			Help: `The number of times an atomic query was reached again within one round
and its rules were not applied.`,
		}),
		roundsPerResolve: mr.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "rounds",
			Help:      `The number of rounds needed to reach a fixed point, for queries that reach recursive rules.`,
			Buckets:   prometheus.ExponentialBuckets(1, 2, 6),
		}),
		roundDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "round_duration_seconds",
			Help:      `The time it takes to run one resolution round to exhaustion.`,
		}),
		materialiseDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "materialise_duration_seconds",
			Help:      `The time it takes to write a rule-derived fact back to the graph store.`,
		}),
		materialisations: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "materialisations",
			Help: `The number of rule-derived facts that needed to be stored. The result label
is "stored" when the Materializer was called and "deduplicated" when the same fact
was already stored earlier in the transaction.`,
		}, []string{"result"}),
	}
}
