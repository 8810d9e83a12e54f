//go:build linux

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
	"errors"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// waitForValue polls w until it holds v or the deadline passes.
func waitForValue(t *testing.T, w *Word, v uint32, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for w.Load() != v {
		if time.Now().After(deadline) {
			t.Fatalf("word = %d, still not %d after %s", w.Load(), v, d)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLinuxWaitMismatch(t *testing.T) {
	word := uint32(1)
	m := New(unsafe.Pointer(&word))
	err := m.Wait(0)
	if !errors.Is(err, unix.EAGAIN) {
		t.Fatalf("Wait on mismatched word = %v, want EAGAIN", err)
	}
	if got := Errno(err); got != -int(unix.EAGAIN) {
		t.Errorf("Errno = %d, want %d", got, -int(unix.EAGAIN))
	}
}

func TestLinuxWaitTimeout(t *testing.T) {
	word := uint32(2)
	m := New(unsafe.Pointer(&word))
	start := time.Now()
	err := m.WaitWithTimeout(2, 50*time.Millisecond)
	if !errors.Is(err, unix.ETIMEDOUT) {
		t.Fatalf("WaitWithTimeout = %v, want ETIMEDOUT", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("WaitWithTimeout returned after %s, expected about 50ms", elapsed)
	}
}

func TestLinuxPostWithoutWaiters(t *testing.T) {
	var word uint32
	m := New(unsafe.Pointer(&word))
	n, err := m.Post(8)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if n != 0 {
		t.Errorf("Post woke %d threads, want 0", n)
	}
}

func TestLinuxPostWithValueWakesWaiter(t *testing.T) {
	var word uint32
	m := New(unsafe.Pointer(&word))
	done := make(chan error, 1)
	go func() {
		for m.Value() == 0 {
			if err := m.WaitWithTimeout(0, time.Second); err != nil && !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EINTR) && !errors.Is(err, unix.ETIMEDOUT) {
				done <- err
				return
			}
		}
		done <- nil
	}()
	time.Sleep(20 * time.Millisecond)
	if _, err := m.PostWithValue(7, 1); err != nil {
		t.Fatalf("PostWithValue: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter never observed the posted value")
	}
}

func TestLinuxContendedLock(t *testing.T) {
	word := uint32(LockedNoWaiters)
	holder := New(unsafe.Pointer(&word))

	acquired := make(chan struct{})
	go func() {
		New(unsafe.Pointer(&word)).Lock()
		close(acquired)
	}()

	// The second locker marks the word contended before it sleeps.
	waitForValue(t, holder.Word(), uint32(LockedWaiters), 2*time.Second)
	select {
	case <-acquired:
		t.Fatalf("Lock returned while the word was held")
	case <-time.After(50 * time.Millisecond):
	}

	holder.Unlock(1)

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatalf("Lock did not return within 2s of Unlock")
	}
	if s := holder.State(); !s.Held() {
		t.Errorf("state after handoff = %v, want a held state", s)
	}
}

func TestLinuxMutualExclusion(t *testing.T) {
	const (
		workers    = 2
		iterations = 10000
	)
	var word uint32
	counter := 0
	inside := int32(0)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			m := New(unsafe.Pointer(&word))
			for j := 0; j < iterations; j++ {
				m.Lock()
				inside++
				if inside != 1 {
					m.Unlock(1)
					return errors.New("two holders inside the critical section")
				}
				counter++
				inside--
				m.Unlock(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if counter != workers*iterations {
		t.Errorf("counter = %d, want %d", counter, workers*iterations)
	}
	if word != uint32(Unlocked) {
		t.Errorf("word = %d after all unlocks, want 0", word)
	}
}
