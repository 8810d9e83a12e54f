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

// Package futex implements a mutex whose lock word lives in memory shared
// between processes. Uncontended Lock and Unlock are a single atomic
// operation; contended callers sleep in the kernel on the word's address
// using the Linux futex facility.
//
// The package never allocates the lock word. Callers hand it an address
// inside a region they mapped themselves (see k8s.io/shmfutex/pkg/shm) and
// keep that mapping alive for as long as any Mutex refers to it.
package futex
