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

package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ebay/reasoner/util/errors"
	"gopkg.in/yaml.v3"
)

// Load parses and validates the configuration from the given file. Files
// named *.yaml or *.yml are decoded as YAML and all others as JSON. Upon
// success, it returns a non-nil configuration. Otherwise, it returns an error,
// which already includes the filename.
func Load(filename string) (*Reasoner, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := bufio.NewReader(f)
	var cfg *Reasoner
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		cfg, err = decodeYAML(reader, filename)
	default:
		cfg, err = decodeJSON(reader, filename)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %v: %v", filename, err)
	}
	return cfg, nil
}

func decodeJSON(r io.Reader, filename string) (*Reasoner, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	cfg := new(Reasoner)
	// The **Reasoner double-pointer is needed to detect an input of "null".
	err := decoder.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding JSON value in %v: %v", filename, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("loading %v resulted in nil config", filename)
	}
	if decoder.More() {
		return nil, fmt.Errorf("found unexpected data after config in %v", filename)
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, filename string) (*Reasoner, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	cfg := new(Reasoner)
	err := decoder.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding YAML value in %v: %v", filename, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("loading %v resulted in nil config", filename)
	}
	var more yaml.Node
	if err := decoder.Decode(&more); err != io.EOF {
		return nil, fmt.Errorf("found unexpected data after config in %v", filename)
	}
	return cfg, nil
}

// Write marshalls the configuration as JSON to the given file. It truncates the
// file if it already exists. It returns nil upon success. Otherwise, it returns
// an error, which already includes the filename.
func Write(cfg *Reasoner, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	writer := bufio.NewWriter(f)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "\t")
	err = errors.Any(
		encoder.Encode(cfg),
		writer.Flush(),
		f.Close(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %v: %v", filename, err)
	}
	return nil
}
