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

// Package parallel runs independent tasks concurrently.
package parallel

import (
	"context"
	"sync"
	"sync/atomic"
)

// InvokeN runs call with i=0, i=1, ..., i=n-1, with at most width calls
// running at once. A width of zero or less runs all n calls at once. All the
// calls are run in a child of 'ctx'. If any call returns an error, InvokeN
// cancels this child context, starts no further calls, waits for the running
// calls to complete, and returns the first error. If 'ctx' ends before every
// call has started, InvokeN returns its error. Otherwise, InvokeN waits for
// all the calls to complete, then returns nil.
func InvokeN(ctx context.Context, n, width int, call func(ctx context.Context, i int) error) error {
	if width <= 0 || width > n {
		width = n
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		once     sync.Once
		firstErr error
		skipped  int32
		wg       sync.WaitGroup
	)
	next := make(chan int)
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if ctx.Err() != nil {
					atomic.StoreInt32(&skipped, 1)
					continue
				}
				if err := call(ctx, i); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			atomic.StoreInt32(&skipped, 1)
			break
		}
		next <- i
	}
	close(next)
	wg.Wait()
	if firstErr == nil && atomic.LoadInt32(&skipped) != 0 {
		return parent.Err()
	}
	return firstErr
}
