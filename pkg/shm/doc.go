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

// Package shm creates and maps the shared memory segments that hold a
// futex lock word. A segment is a file under /dev/shm mapped MAP_SHARED into
// every participating process; its first bytes follow the fixed layout in
// layout.go so that the lock word, the advisory holder record and the shared
// counter are at the same offsets for every process.
package shm
