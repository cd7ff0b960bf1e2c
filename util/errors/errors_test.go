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

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Any(t *testing.T) {
	assert := assert.New(t)
	e1 := errors.New("one")
	e2 := errors.New("two")
	assert.NoError(Any())
	assert.NoError(Any(nil, nil))
	assert.Equal(e1, Any(nil, e1, e2))
	assert.Equal(e2, Any(e2, nil))
}

func Test_Combine(t *testing.T) {
	assert := assert.New(t)
	e1 := errors.New("one")
	e2 := errors.New("two")
	assert.NoError(Combine(nil))
	assert.Equal(e1, Combine(nil, e1))
	err := Combine(e1, nil, e2)
	assert.EqualError(err, "one; two")
	assert.Len(err.(Multi), 2)
}
