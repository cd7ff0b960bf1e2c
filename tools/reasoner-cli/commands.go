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
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/resolve"
	"github.com/ebay/reasoner/util/graphviz"
	"github.com/ebay/reasoner/util/parallel"
	"github.com/ebay/reasoner/util/table"
	log "github.com/sirupsen/logrus"
)

// queryResult is the outcome of resolving one QUERY argument.
type queryResult struct {
	query   *query.Conjunctive
	answers []answer.Substitution
	took    time.Duration
}

func runQueries(ctx context.Context, w io.Writer, kb *knowledgeBase, cfg *config.Reasoner, options *options) error {
	queries := make([]*query.Conjunctive, len(options.Queries))
	for i, arg := range options.Queries {
		q, err := kb.parseQuery(arg)
		if err != nil {
			return err
		}
		queries[i] = q
	}
	engineOpts := resolve.OptionsFromConfig(cfg)
	engineOpts.Limit = options.Limit
	engine := resolve.New(kb.rules, resolve.Backend{
		Executor:     kb.store,
		Planner:      kb.store,
		Materializer: kb.store,
	}, engineOpts)

	results := make([]queryResult, len(queries))
	err := parallel.InvokeN(ctx, len(queries), runtime.GOMAXPROCS(0), func(ctx context.Context, i int) error {
		tx := engine.NewTx()
		start := time.Now()
		answers, err := tx.ResolveAll(ctx, queries[i])
		if err != nil {
			return fmt.Errorf("%v: %v", queries[i], err)
		}
		results[i] = queryResult{query: queries[i], answers: answers, took: time.Since(start)}
		log.WithFields(log.Fields{
			"tx":      tx.ID().String(),
			"answers": len(answers),
			"took":    results[i].took,
		}).Debugf("Resolved %v", queries[i])
		return nil
	})
	if err != nil {
		return err
	}
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		dumpAnswers(w, res, options.Explain)
	}
	stats := kb.store.Stats()
	fmtr.Fprintf(w, "\nStore: %d traversals, %d materialisations, %d relations inserted, %d role players appended.\n",
		stats.Traversals, stats.Materialisations, stats.Inserted, stats.Appended)
	return nil
}

func dumpAnswers(w io.Writer, res queryResult, explain bool) {
	fmt.Fprintf(w, "%v\n", res.query)
	vars := res.query.Vars()
	header := make([]string, len(vars), len(vars)+1)
	for i, v := range vars {
		header[i] = v.String()
	}
	if explain {
		header = append(header, "Rules")
	}
	t := [][]string{header}
	for _, sub := range res.answers {
		row := make([]string, len(header))
		for i, v := range vars {
			if c, ok := sub.Get(v); ok {
				row[i] = c.String()
			}
		}
		if explain {
			row[len(vars)] = strings.Join(answer.Rules(sub.Explanation()), ", ")
		}
		t = append(t, row)
	}
	rows := t[1:]
	sort.Slice(rows, func(i, j int) bool {
		return strings.Join(rows[i], "\x00") < strings.Join(rows[j], "\x00")
	})
	table.PrettyPrint(w, t, table.HeaderRow|table.SkipEmpty)
	fmtr.Fprintf(w, "%d answers in %v.\n", len(res.answers), res.took.Round(time.Microsecond))
}

func showRules(w io.Writer, kb *knowledgeBase, options *options) error {
	t := [][]string{{"Rule", "Stratum", "Recursive", "Depends On", "When", "Then"}}
	for _, r := range kb.rules.Rules() {
		t = append(t, []string{
			r.ID,
			strconv.Itoa(kb.rules.Stratum(r.ID)),
			strconv.FormatBool(kb.rules.IsRecursive(r.ID)),
			strings.Join(kb.rules.DependsOn(r.ID), ", "),
			r.Body.String(),
			fmt.Sprint(r.Head),
		})
	}
	table.PrettyPrint(w, t, table.HeaderRow)
	fmtr.Fprintf(w, "%d rules.\n", kb.rules.Len())
	if options.GraphFile != "" {
		if err := graphviz.Create(options.GraphFile, kb.rules.Graphviz, graphviz.Options{}); err != nil {
			return fmt.Errorf("error writing rule graph: %v", err)
		}
	}
	return nil
}
