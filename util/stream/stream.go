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

// Package stream provides pull-based iterators. Work happens only when the
// consumer calls Next, so a consumer that stops early bounds the work done by
// every producer below it.
package stream

// Iterator is a lazily evaluated sequence of items.
type Iterator[T any] interface {
	// Next returns the next item. It returns ok=false once the sequence is
	// exhausted, and keeps returning ok=false after that. Any error ends the
	// sequence.
	Next() (item T, ok bool, err error)
}

// Func adapts a plain function to the Iterator interface.
type Func[T any] func() (T, bool, error)

// Next implements Iterator.
func (f Func[T]) Next() (T, bool, error) {
	return f()
}

// Empty returns an iterator with no items.
func Empty[T any]() Iterator[T] {
	return Func[T](func() (T, bool, error) {
		var zero T
		return zero, false, nil
	})
}

// Error returns an iterator that fails with err on the first call to Next.
func Error[T any](err error) Iterator[T] {
	return Func[T](func() (T, bool, error) {
		var zero T
		return zero, false, err
	})
}

// FromSlice returns an iterator over a copy of items.
func FromSlice[T any](items []T) Iterator[T] {
	items = append([]T(nil), items...)
	i := 0
	return Func[T](func() (T, bool, error) {
		if i >= len(items) {
			var zero T
			return zero, false, nil
		}
		i++
		return items[i-1], true, nil
	})
}

// Concat returns the items of each iterator in turn. Later iterators are not
// touched until the earlier ones are exhausted.
func Concat[T any](its ...Iterator[T]) Iterator[T] {
	return Func[T](func() (T, bool, error) {
		for len(its) > 0 {
			item, ok, err := its[0].Next()
			if err != nil || ok {
				return item, ok, err
			}
			its = its[1:]
		}
		var zero T
		return zero, false, nil
	})
}

// Map applies fn to each item of it.
func Map[T, U any](it Iterator[T], fn func(T) U) Iterator[U] {
	return Func[U](func() (U, bool, error) {
		item, ok, err := it.Next()
		if !ok || err != nil {
			var zero U
			return zero, false, err
		}
		return fn(item), true, nil
	})
}

// Filter returns only the items of it for which keep returns true.
func Filter[T any](it Iterator[T], keep func(T) bool) Iterator[T] {
	return Func[T](func() (T, bool, error) {
		for {
			item, ok, err := it.Next()
			if !ok || err != nil {
				return item, false, err
			}
			if keep(item) {
				return item, true, nil
			}
		}
	})
}

// Limit returns at most n items from it. Once n items have been returned, it
// is never pulled from again. A negative n means no limit.
func Limit[T any](it Iterator[T], n int) Iterator[T] {
	if n < 0 {
		return it
	}
	return Func[T](func() (T, bool, error) {
		if n == 0 {
			var zero T
			return zero, false, nil
		}
		item, ok, err := it.Next()
		if ok && err == nil {
			n--
		}
		return item, ok, err
	})
}

// Distinct drops items whose key has already been returned.
func Distinct[T any](it Iterator[T], key func(T) string) Iterator[T] {
	seen := make(map[string]struct{})
	return Filter(it, func(item T) bool {
		k := key(item)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

// Collect drains it into a slice. On error, it returns the items read so far
// along with the error.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var res []T
	for {
		item, ok, err := it.Next()
		if err != nil {
			return res, err
		}
		if !ok {
			return res, nil
		}
		res = append(res, item)
	}
}

// ForEach calls fn for every item of it, stopping early if fn returns an error.
func ForEach[T any](it Iterator[T], fn func(T) error) error {
	for {
		item, ok, err := it.Next()
		if err != nil || !ok {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}
