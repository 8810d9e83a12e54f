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
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Operations from linux/futex.h. FUTEX_PRIVATE_FLAG is never set: the word is
// keyed by its backing page so that waiters in other processes meet.
const (
	opWait = 0
	opWake = 1
)

// Linux issues futex(2) system calls.
type Linux struct{}

// DefaultBackend is the backend used when none is given to New.
var DefaultBackend Backend = Linux{}

// Wait implements Backend.
func (Linux) Wait(addr *uint32, expected uint32, timeout time.Duration) error {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	_, _, e := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(opWait),
		uintptr(expected),
		uintptr(unsafe.Pointer(ts)),
		0, 0)
	if e != 0 {
		return e
	}
	return nil
}

// Wake implements Backend.
func (Linux) Wake(addr *uint32, count uint32) (int, error) {
	n, _, e := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(opWake),
		uintptr(count),
		0, 0, 0)
	if e != 0 {
		return 0, e
	}
	return int(n), nil
}
