/*
Copyright 2019 The Kubernetes Authors All rights reserved.

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

// Package lock serializes work on a path across processes.
package lock

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/mutex/v2"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PathMutexSpec returns a mutex spec for a path. The name is derived from a
// hash of the whole path, so distinct paths never share a lock.
func PathMutexSpec(path string) mutex.Spec {
	s := mutex.Spec{
		Name:  fmt.Sprintf("shm%x", sha1.Sum([]byte(path)))[0:40],
		Clock: clock.WallClock,
		Delay: 50 * time.Millisecond,
	}
	return s
}

// WithLock runs fn while holding the cross-process lock for path, waiting at
// most timeout to acquire it. A zero timeout waits forever.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	spec := PathMutexSpec(path)
	spec.Timeout = timeout
	klog.V(3).Infof("acquiring lock %s for %s: %+v", spec.Name, path, spec)

	start := time.Now()
	releaser, err := mutex.Acquire(spec)
	if err != nil {
		return errors.Wrapf(err, "error acquiring lock for %s", path)
	}
	defer releaser.Release()
	klog.V(3).Infof("acquired lock for %s in %s", path, time.Since(start))

	return fn()
}
