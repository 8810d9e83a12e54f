//go:build !linux

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

import "time"

// unsupported fails every request.
type unsupported struct{}

// DefaultBackend is the backend used when none is given to New.
var DefaultBackend Backend = unsupported{}

func (unsupported) Wait(*uint32, uint32, time.Duration) error { return ErrUnsupported }

func (unsupported) Wake(*uint32, uint32) (int, error) { return 0, ErrUnsupported }
