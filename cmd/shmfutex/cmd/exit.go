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

package cmd

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/shm"
)

// Exit codes based on sysexits(3)
const (
	Failure     = 1  // Failure represents a general failure code
	BadUsage    = 64 // Usage represents an incorrect command line
	Unavailable = 69 // Unavailable represents when a service was unavailable
	IO          = 74 // IO represents an I/O error
)

// usageError is an error in the command line.
type usageError struct {
	err error
}

func (u usageError) Error() string { return u.err.Error() }

func (u usageError) Unwrap() error { return u.err }

func usagef(format string, args ...interface{}) error {
	return usageError{err: errors.Errorf(format, args...)}
}

// exitCode maps an error to the exit code reported for it.
func exitCode(err error) int {
	var u usageError
	switch {
	case errors.As(err, &u):
		return BadUsage
	case errors.Is(err, shm.ErrNotExist), errors.Is(err, shm.ErrUnsupported):
		return Unavailable
	case errors.Is(err, shm.ErrTooSmall):
		return IO
	default:
		return Failure
	}
}

// exitWithError outputs an error and exits.
func exitWithError(err error) {
	klog.Infof("exitWithError(%v) called from:\n%s", err, debug.Stack())
	fmt.Fprintf(os.Stderr, "X Error: %v\n", err)
	klog.Flush()
	os.Exit(exitCode(err))
}
