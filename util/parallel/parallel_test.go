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

package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_InvokeN(t *testing.T) {
	for _, width := range []int{0, 1, 3, 10, 20} {
		var sum int64
		err := InvokeN(context.Background(), 10, width, func(ctx context.Context, i int) error {
			atomic.AddInt64(&sum, int64(i))
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(45), sum, "width %d", width)
	}
}

func Test_InvokeNZero(t *testing.T) {
	err := InvokeN(context.Background(), 0, 4, func(ctx context.Context, i int) error {
		t.Errorf("unexpected call %d", i)
		return nil
	})
	assert.NoError(t, err)
}

func Test_InvokeNLimitsWidth(t *testing.T) {
	var running, most int64
	err := InvokeN(context.Background(), 20, 3, func(ctx context.Context, i int) error {
		n := atomic.AddInt64(&running, 1)
		for {
			m := atomic.LoadInt64(&most)
			if n <= m || atomic.CompareAndSwapInt64(&most, m, n) {
				break
			}
		}
		atomic.AddInt64(&running, -1)
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, most >= 1 && most <= 3, "at most 3 calls should run at once, got %d", most)
}

func Test_InvokeNCancelsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls int64
	err := InvokeN(context.Background(), 100, 1, func(ctx context.Context, i int) error {
		atomic.AddInt64(&calls, 1)
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, int64(3), calls, "no calls should start after the error")

	err = InvokeN(context.Background(), 2, 2, func(ctx context.Context, i int) error {
		if i == 0 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, boom, err)
}

func Test_InvokeNCanceledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := InvokeN(ctx, 5, 1, func(ctx context.Context, i int) error {
		return nil
	})
	assert.Equal(t, context.Canceled, err)
}
