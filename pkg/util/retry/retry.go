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

// Package retry implements wrappers to retry function calls
package retry

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"k8s.io/klog/v2"
)

// logStuckThreshold is the time after which a persistent error is flagged as "maybe stuck"
const logStuckThreshold = 10 * time.Second

var (
	firstLogTime time.Time
	lastLogErr   string
	logMu        sync.Mutex
)

// notify logs each distinct retry error once, and again once it has
// persisted past logStuckThreshold.
func notify(err error, d time.Duration) {
	logMu.Lock()
	defer logMu.Unlock()

	if err.Error() != lastLogErr {
		lastLogErr = err.Error()
		firstLogTime = time.Now()
		klog.Infof("will retry after %s: %v", d, err)
		return
	}
	if stuck := time.Since(firstLogTime); stuck > logStuckThreshold {
		klog.Warningf("will retry after %s: %v - maybe stuck %s", d, err, stuck.Round(time.Second))
		firstLogTime = time.Now()
		return
	}
	klog.V(4).Infof("will retry after %s: %v", d, err)
}

// Local is back-off retry for local resources, such as a segment another
// process is still creating.
func Local(callback func() error, maxTime time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	b.RandomizationFactor = 0.25
	b.Multiplier = 1.5
	b.MaxElapsedTime = maxTime
	return backoff.RetryNotify(callback, b, notify)
}

// Permanent marks err as not worth retrying; Local returns it at once.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
