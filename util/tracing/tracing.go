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

// Package tracing ties OpenTracing spans to Prometheus latency metrics.
package tracing

import (
	"context"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metric is a Prometheus metric that can observe durations, such as a Summary
// or a Histogram.
type Metric interface {
	prometheus.Metric
	prometheus.Observer
}

// Span is an in-progress operation. Finish must be called exactly once.
type Span struct {
	opentracing.Span
	metric Metric
	start  time.Time
}

// StartSpan starts a child span of any span in ctx, using the global tracer.
// When the returned span is finished, its duration in seconds is observed by
// metric, if metric is not nil.
func StartSpan(ctx context.Context, operation string, metric Metric) (*Span, context.Context) {
	otSpan, ctx := opentracing.StartSpanFromContext(ctx, operation)
	span := &Span{Span: otSpan, metric: metric, start: time.Now()}
	if metric != nil {
		otSpan.SetTag("metric", stringableMetric{metric})
	}
	return span, ctx
}

// Finish completes the span and updates its metric.
func (span *Span) Finish() {
	if span.metric != nil {
		span.metric.Observe(time.Since(span.start).Seconds())
	}
	span.Span.Finish()
}

// stringableMetric gives the Prometheus metrics a better stringer.
type stringableMetric struct {
	Metric
}

// String returns the fully-qualified name of the metric. This ends up being
// reported in the OpenTracing tag named "metric".
func (metric stringableMetric) String() string {
	desc := metric.Desc().String()
	// Desc{fqName: "reasoner_cache_lookup_seconds", help: ...
	const prefix = `Desc{fqName: "`
	if len(desc) > len(prefix) && desc[:len(prefix)] == prefix {
		rest := desc[len(prefix):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == '"' {
				return rest[:i]
			}
		}
	}
	return desc
}
