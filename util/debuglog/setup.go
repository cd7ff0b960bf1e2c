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

// Package debuglog sets up Logrus for the reasoner binaries.
package debuglog

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options control Configure.
type Options struct {
	// If true, the logger will highlight some output with ANSI colors. This
	// might not work in all situations, such as when writing into a file.
	//
	// This may be overridden by setting the environment variable
	// "CLICOLOR_FORCE" to "1".
	ForceColors bool

	// Minimum level to log, in any form accepted by logrus.ParseLevel. Empty
	// means "info".
	Level string

	// If not nil, this will set up the given logger. If nil, it will set up the
	// default Logrus logger (see logrus.StandardLogger()).
	Logger *logrus.Logger
}

// Configure sets the formatter, level, and hooks on the logger. Timestamps
// are reported in UTC and caller filenames relative to the module root.
func Configure(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return err
		}
	}
	opts.Logger.SetLevel(level)
	opts.Logger.SetReportCaller(true)
	opts.Logger.AddHook(utcHook{})
	opts.Logger.AddHook(newFilenameHook())
	opts.Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:             true,
		TimestampFormat:           "2006-01-02 15:04:05.000000 MST",
		ForceColors:               opts.ForceColors,
		EnvironmentOverrideColors: true,
	})
	opts.Logger.WithFields(logrus.Fields{
		"forceColors": opts.ForceColors,
		"minLevel":    level.String(),
	}).Info("Initialized Logrus")
	return nil
}

type utcHook struct{}

func (utcHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (utcHook) Fire(entry *logrus.Entry) error {
	entry.Time = entry.Time.UTC()
	return nil
}

// filenameHook trims the module's directory off of caller filenames.
type filenameHook struct {
	prefix string
}

func newFilenameHook() filenameHook {
	const localPath = "util/debuglog/setup.go"
	_, file, _, ok := runtime.Caller(0)
	if !ok || !strings.HasSuffix(file, localPath) {
		return filenameHook{}
	}
	return filenameHook{
		prefix: file[:len(file)-len(localPath)],
	}
}

func (hook filenameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook filenameHook) Fire(entry *logrus.Entry) error {
	if entry.HasCaller() && hook.prefix != "" {
		entry.Caller.File = strings.TrimPrefix(entry.Caller.File, hook.prefix)
	}
	return nil
}
