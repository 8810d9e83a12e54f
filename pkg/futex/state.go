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

import "fmt"

// State is the value of a lock word. The numeric values are shared with
// every process mapping the word and must not change.
type State uint32

const (
	// Unlocked means the lock is free.
	Unlocked State = 0
	// LockedNoWaiters means the lock is held and nobody sleeps in the kernel.
	LockedNoWaiters State = 1
	// LockedWaiters means the lock is held and at least one thread may be
	// sleeping in the kernel.
	LockedWaiters State = 2
)

// Valid reports whether s is one of the defined lock states.
func (s State) Valid() bool {
	return s <= LockedWaiters
}

// Held reports whether s denotes a held lock.
func (s State) Held() bool {
	return s == LockedNoWaiters || s == LockedWaiters
}

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case LockedNoWaiters:
		return "locked"
	case LockedWaiters:
		return "contended"
	default:
		return fmt.Sprintf("invalid(%d)", uint32(s))
	}
}
