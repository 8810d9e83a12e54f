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
	"time"
	"unsafe"

	"k8s.io/klog/v2"
)

// Mutex is a handle on a lock word in shared memory. A Mutex holds no state
// of its own: any number of handles, in this or other processes, may refer
// to the same word and be created or dropped at any time.
//
// The lock is not reentrant, and a holder that exits without unlocking
// leaves the word held.
type Mutex struct {
	word    *Word
	backend Backend
}

// Option configures a Mutex.
type Option func(*Mutex)

// WithBackend replaces the kernel backend.
func WithBackend(b Backend) Option {
	return func(m *Mutex) {
		m.backend = b
	}
}

// New returns a handle on the lock word at addr. It performs no system calls
// and does not validate addr.
func New(addr unsafe.Pointer, opts ...Option) *Mutex {
	m := &Mutex{
		word:    NewWord(addr),
		backend: DefaultBackend,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Word returns the atomic view of the lock word.
func (m *Mutex) Word() *Word {
	return m.word
}

// Lock blocks until the calling thread owns the lock.
func (m *Mutex) Lock() {
	prev := m.word.CompareAndSwap(uint32(Unlocked), uint32(LockedNoWaiters))
	if prev == uint32(Unlocked) {
		return
	}
	m.lockSlow(prev)
}

func (m *Mutex) lockSlow(prev uint32) {
	for {
		// Announce a waiter before sleeping so the holder's Unlock issues a
		// wake. A CAS observing Unlocked skips the sleep.
		if prev == uint32(LockedWaiters) ||
			m.word.CompareAndSwap(uint32(LockedNoWaiters), uint32(LockedWaiters)) != uint32(Unlocked) {
			if err := m.backend.Wait(m.word.Addr(), uint32(LockedWaiters), NoTimeout); err != nil {
				klog.V(4).Infof("futex wait on %p returned %v, rechecking", m.word.Addr(), err)
			}
		}
		// Other waiters may still be asleep, so take the lock as contended.
		prev = m.word.CompareAndSwap(uint32(Unlocked), uint32(LockedWaiters))
		if prev == uint32(Unlocked) {
			return
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did. It
// never blocks.
func (m *Mutex) TryLock() bool {
	return m.word.CompareAndSwap(uint32(Unlocked), uint32(LockedNoWaiters)) == uint32(Unlocked)
}

// Unlock releases the lock and, if it was contended, wakes up to waiters
// sleeping threads. The caller must hold the lock; releasing a lock that is
// not held corrupts the word.
func (m *Mutex) Unlock(waiters uint32) {
	if m.word.FetchSub(1) == uint32(LockedNoWaiters) {
		return
	}
	m.word.Store(uint32(Unlocked))
	n, err := m.backend.Wake(m.word.Addr(), waiters)
	if err != nil {
		klog.V(4).Infof("futex wake on %p failed: %v", m.word.Addr(), err)
		return
	}
	klog.V(5).Infof("futex wake on %p: %d of %d woken", m.word.Addr(), n, waiters)
}

// Wait sleeps while the word equals expected. It may return early or
// spuriously; the error is the kernel's status, such as unix.EAGAIN when the
// word did not hold expected.
func (m *Mutex) Wait(expected uint32) error {
	return m.backend.Wait(m.word.Addr(), expected, NoTimeout)
}

// WaitWithTimeout is Wait bounded by timeout. A non-positive timeout only
// checks the word.
func (m *Mutex) WaitWithTimeout(expected uint32, timeout time.Duration) error {
	if timeout < 0 {
		timeout = 0
	}
	return m.backend.Wait(m.word.Addr(), expected, timeout)
}

// Post wakes up to waiters threads sleeping on the word without changing it.
func (m *Mutex) Post(waiters uint32) (int, error) {
	return m.backend.Wake(m.word.Addr(), waiters)
}

// PostWithValue stores value and then wakes up to waiters threads. The store
// is visible before the wake is issued; the two are not one atomic step.
func (m *Mutex) PostWithValue(value, waiters uint32) (int, error) {
	m.word.Store(value)
	return m.backend.Wake(m.word.Addr(), waiters)
}

// SetValue stores value without waking anyone.
func (m *Mutex) SetValue(value uint32) {
	m.word.Store(value)
}

// Value returns the raw word.
func (m *Mutex) Value() uint32 {
	return m.word.Load()
}

// State returns the word as a lock state.
func (m *Mutex) State() State {
	return State(m.word.Load())
}
