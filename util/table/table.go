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

// Package table renders rows of strings as aligned text columns.
package table

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ebay/reasoner/util/cmp"
	"golang.org/x/text/unicode/norm"
)

// Options control the layout generated by PrettyPrint.
type Options int

const (
	// HeaderRow separates the first row from the rest with a divider.
	HeaderRow Options = 1 << iota
	// SkipEmpty generates nothing when there are no rows other than the
	// header row.
	SkipEmpty
	// RightJustify left pads the cells, rather than the default of right
	// padding them.
	RightJustify
)

// PrettyPrint writes the table t to dest, one line per row, each column padded
// to the width of its widest cell. Rows shorter than the first row are padded
// with empty cells; extra cells are dropped.
func PrettyPrint(dest io.Writer, t [][]string, opts Options) {
	if len(t) == 0 {
		return
	}
	if opts&SkipEmpty != 0 && opts&HeaderRow != 0 && len(t) == 1 {
		return
	}
	ncols := len(t[0])
	widths := make([]int, ncols)
	for _, row := range t {
		for c := 0; c < ncols && c < len(row); c++ {
			widths[c] = cmp.MaxInt(widths[c], charsWide(row[c]))
		}
	}
	w := bufio.NewWriterSize(dest, 256)
	defer w.Flush()
	for r, row := range t {
		for c := 0; c < ncols; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			pad := strings.Repeat(" ", widths[c]-charsWide(cell))
			w.WriteByte(' ')
			if opts&RightJustify != 0 {
				w.WriteString(pad)
				w.WriteString(cell)
			} else {
				w.WriteString(cell)
				w.WriteString(pad)
			}
			w.WriteString(" |")
		}
		w.WriteByte('\n')
		if r == 0 && opts&HeaderRow != 0 {
			for c := 0; c < ncols; c++ {
				w.WriteByte(' ')
				w.WriteString(strings.Repeat("-", widths[c]))
				w.WriteString(" |")
			}
			w.WriteByte('\n')
		}
	}
}

// charsWide estimates how many terminal columns s occupies. Combining
// sequences are composed first so that "e" followed by a combining accent
// counts as one column.
func charsWide(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}
