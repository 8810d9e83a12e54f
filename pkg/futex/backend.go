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
	"syscall"
	"time"
)

// ErrUnsupported is returned by the default backend on platforms without futexes.
var ErrUnsupported = errors.New("futex: not supported on this platform")

// NoTimeout makes Backend.Wait block without a deadline.
const NoTimeout time.Duration = -1

// Backend is the kernel facility a Mutex sleeps and wakes through.
type Backend interface {
	// Wait blocks the calling thread while *addr equals expected, for at
	// most timeout unless timeout is NoTimeout. A nil return does not mean
	// the word changed; callers re-check it.
	Wait(addr *uint32, expected uint32, timeout time.Duration) error
	// Wake wakes up to count threads blocked in Wait on addr and returns how
	// many were woken. It never blocks.
	Wake(addr *uint32, count uint32) (int, error)
}

// Errno returns err as the negative status code the kernel reported, 0 for
// a nil error, or -1 for errors that did not come from the kernel.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}
	return -1
}
