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

// Command reasoner-cli resolves queries over a knowledge base file with the
// rule-resolution engine.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	docopt "github.com/docopt/docopt-go"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/util/debuglog"
	"github.com/ebay/reasoner/util/profiling"
	"github.com/ebay/reasoner/util/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

const usage = `reasoner-cli resolves queries over a knowledge base with inference rules.

Usage:
  reasoner-cli [--config=FILE --cpuprofile=FILE] query [--limit=N] [--explain] KB QUERY...
  reasoner-cli [--config=FILE --cpuprofile=FILE] rules [--graph=FILE] KB
  reasoner-cli [--config=FILE --cpuprofile=FILE] stats KB

Options:
  --config=FILE      JSON or YAML configuration file for the engine.
  --cpuprofile=FILE  Write a CPU profile of the command to FILE.
  --limit=N          Stop after N answers per query, 0 for no limit [default: 0].
  --explain          Show the rules that derived each answer.
  --graph=FILE       Write the rule dependency graph to FILE (dot, gv, svg, png, or pdf).

KB is a YAML or JSON file with schema, facts, rules, and named queries. Each
QUERY is either the name of a query in KB or an inline YAML list of atoms.
Several queries are resolved concurrently, each in its own transaction.

Examples:
  # Resolve the query named "ancestors" in family.yaml.
  reasoner-cli query family.yaml ancestors

  # Resolve an inline query.
  reasoner-cli query family.yaml '[{isa: {var: x, type: person}}, {id: {var: x, id: alice}}]'

  # List the rules and draw their dependencies.
  reasoner-cli rules --graph=rules.svg family.yaml

  # Count the concepts in the knowledge base by type.
  reasoner-cli stats family.yaml
`

type options struct {
	ConfigFile  string `docopt:"--config"`
	ProfileFile string `docopt:"--cpuprofile"`
	KBFile      string `docopt:"KB"`

	// Query
	Query       bool     `docopt:"query"`
	Queries     []string `docopt:"QUERY"`
	Explain     bool     `docopt:"--explain"`
	LimitString string   `docopt:"--limit"`
	Limit       int

	// Rules
	Rules     bool   `docopt:"rules"`
	GraphFile string `docopt:"--graph"`

	// Stats
	Stats bool `docopt:"stats"`
}

func parseArgs(argv []string) (*options, error) {
	opts, err := docopt.ParseArgs(usage, argv, "")
	if err != nil {
		return nil, err
	}
	var options options
	if err := opts.Bind(&options); err != nil {
		return nil, fmt.Errorf("error binding command-line arguments: %v\nfrom: %+v", err, opts)
	}
	if options.LimitString != "" {
		options.Limit, err = strconv.Atoi(options.LimitString)
		if err != nil {
			return nil, fmt.Errorf("unable to parse limit: %v", err)
		}
		if options.Limit < 0 {
			return nil, fmt.Errorf("limit must not be negative, got %d", options.Limit)
		}
	}
	return &options, nil
}

// loadConfig reads a JSON or YAML engine configuration. An empty filename
// gives the defaults.
func loadConfig(filename string) (*config.Reasoner, error) {
	if filename == "" {
		return new(config.Reasoner), nil
	}
	return config.Load(filename)
}

func main() {
	options, err := parseArgs(nil)
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	cfg, err := loadConfig(options.ConfigFile)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if err := debuglog.Configure(debuglog.Options{Level: cfg.LogLevel}); err != nil {
		log.Fatalf("Error configuring logging: %v", err)
	}
	if options.ProfileFile != "" {
		stop, err := profiling.StartCPUProfile(options.ProfileFile)
		if err != nil {
			log.Fatalf("Error starting CPU profile: %v", err)
		}
		defer stop()
	}
	kb, err := loadKB(options.KBFile)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := context.Background()
	switch {
	case options.Query:
		if err := runQueries(ctx, os.Stdout, kb, cfg, options); err != nil {
			log.Fatalf("Error executing query: %v", err)
		}
	case options.Rules:
		if err := showRules(os.Stdout, kb, options); err != nil {
			log.Fatalf("Error listing rules: %v", err)
		}
	case options.Stats:
		if err := stats.PrettyPrint(ctx, os.Stdout, kb.store.Summary()); err != nil {
			log.Fatalf("Error printing stats: %v", err)
		}
	default:
		log.Fatalf("command not implemented")
	}
}
