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

package shm

import (
	"sync/atomic"
	"unsafe"

	"k8s.io/shmfutex/pkg/futex"
)

// Offsets into a segment. Every field is 8-byte aligned from the start of
// the mapping, which is itself page aligned.
const (
	LockWordOffset = 0
	HolderOffset   = 8
	CounterOffset  = 16

	// LayoutSize is the smallest segment that holds every field.
	LayoutSize = 24
)

// LockWord returns the address of the lock word.
func (s *Segment) LockWord() unsafe.Pointer {
	return unsafe.Pointer(&s.data[LockWordOffset])
}

// Mutex returns a futex handle on the segment's lock word. The handle must
// not be used after Close.
func (s *Segment) Mutex(opts ...futex.Option) *futex.Mutex {
	return futex.New(s.LockWord(), opts...)
}

func (s *Segment) holder() *uint32 {
	return (*uint32)(unsafe.Pointer(&s.data[HolderOffset]))
}

// Holder returns the pid recorded by the last process that took the lock
// through SetHolder, and whether one is recorded. The record is advisory:
// nothing ties it to the lock word.
func (s *Segment) Holder() (int, bool) {
	pid := atomic.LoadUint32(s.holder())
	return int(pid), pid != 0
}

// SetHolder records pid as the current holder.
func (s *Segment) SetHolder(pid int) {
	atomic.StoreUint32(s.holder(), uint32(pid))
}

// ClearHolder removes the holder record.
func (s *Segment) ClearHolder() {
	atomic.StoreUint32(s.holder(), 0)
}

// Counter returns the shared counter. It is plain memory; callers serialize
// access through the segment's mutex or use sync/atomic.
func (s *Segment) Counter() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.data[CounterOffset]))
}
