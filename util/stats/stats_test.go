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

package stats

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PrettyPrint(t *testing.T) {
	s := &Summary{
		Types: []TypeCount{
			{"person", 2},
			{"friendship", 1500},
			{"city", 2},
		},
		Roles: []RoleCount{
			{"friendship", "friend", 3000},
		},
	}
	var out strings.Builder
	assert.NoError(t, PrettyPrint(context.Background(), &out, s))
	assert.Equal(t, `
       Type | Count |
 ---------- | ----- |
 friendship | 1,500 |
       city |     2 |
     person |     2 |

   Relation |   Role | Count |
 ---------- | ------ | ----- |
 friendship | friend | 3,000 |

3 types, 1 roles.
`, "\n"+out.String())
}

func Test_PrettyPrintEmpty(t *testing.T) {
	var out strings.Builder
	assert.NoError(t, PrettyPrint(context.Background(), &out, &Summary{}))
	assert.Equal(t, "\n\n0 types, 0 roles.\n", out.String())
}
