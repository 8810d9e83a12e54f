/*
Copyright 2025 The Kubernetes Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package futex

import (
	"sync/atomic"
	"unsafe"
)

// Word is an atomic view of a 32-bit integer at a caller supplied address.
// All accesses are sequentially consistent.
type Word struct {
	p *uint32
}

// NewWord interprets addr as a 4-byte aligned uint32. The memory behind addr
// must stay mapped for the lifetime of the Word.
func NewWord(addr unsafe.Pointer) *Word {
	return &Word{p: (*uint32)(addr)}
}

// WordAt returns a view of p.
func WordAt(p *uint32) *Word {
	return &Word{p: p}
}

// Addr returns the address the word refers to.
func (w *Word) Addr() *uint32 {
	return w.p
}

// Load atomically reads the word.
func (w *Word) Load() uint32 {
	return atomic.LoadUint32(w.p)
}

// Store atomically writes v.
func (w *Word) Store(v uint32) {
	atomic.StoreUint32(w.p, v)
}

// FetchSub atomically subtracts delta and returns the value held before.
func (w *Word) FetchSub(delta uint32) uint32 {
	return atomic.AddUint32(w.p, -delta) + delta
}

// CompareAndSwap sets the word to desired if it equals expected. It returns
// the value observed before the attempt, which is expected exactly when the
// swap happened.
func (w *Word) CompareAndSwap(expected, desired uint32) uint32 {
	for {
		if atomic.CompareAndSwapUint32(w.p, expected, desired) {
			return expected
		}
		// The swap failed, so the word held something else. Report that
		// value, unless it changed back to expected in between, in which
		// case the swap is retried so the result stays consistent.
		if cur := atomic.LoadUint32(w.p); cur != expected {
			return cur
		}
	}
}
