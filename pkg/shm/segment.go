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

package shm

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/util/retry"
)

const (
	// DefaultDir is where segments are created.
	DefaultDir = "/dev/shm"
	// DefaultSize is the size given to new segments.
	DefaultSize = 4096
	// DefaultMode is the permission of new segments.
	DefaultMode os.FileMode = 0o600
	// DefaultLockTimeout bounds how long Create waits for another process
	// creating the same segment.
	DefaultLockTimeout = 30 * time.Second
)

var (
	// ErrNotExist is returned when opening a segment that was never created.
	ErrNotExist = errors.New("shared memory segment does not exist")
	// ErrTooSmall is returned when a segment is shorter than LayoutSize.
	ErrTooSmall = errors.New("shared memory segment is too small")
	// ErrUnsupported is returned on platforms without shared mappings.
	ErrUnsupported = errors.New("shared memory segments are not supported on this platform")
)

// Segment is a shared memory segment mapped into this process.
type Segment struct {
	name string
	path string
	data []byte

	mu     sync.Mutex
	closed bool
}

type options struct {
	dir         string
	size        int
	mode        os.FileMode
	lockTimeout time.Duration
}

// Option configures Create, Open and Remove.
type Option func(*options)

// WithDir places the segment in dir instead of DefaultDir.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithSize sets the size of a new segment. Sizes below LayoutSize are raised.
func WithSize(size int) Option {
	return func(o *options) { o.size = size }
}

// WithMode sets the permission of a new segment.
func WithMode(mode os.FileMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithLockTimeout bounds how long Create waits for the creation lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

func newOptions(opts []Option) options {
	o := options{
		dir:         DefaultDir,
		size:        DefaultSize,
		mode:        DefaultMode,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size < LayoutSize {
		o.size = LayoutSize
	}
	return o
}

// Path returns the file backing the segment called name.
func Path(name string, opts ...Option) (string, error) {
	o := newOptions(opts)
	return o.path(name)
}

func (o options) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) {
		return "", errors.Errorf("invalid segment name %q", name)
	}
	return filepath.Join(o.dir, name), nil
}

// Name returns the segment name.
func (s *Segment) Name() string { return s.name }

// Path returns the file backing the segment.
func (s *Segment) Path() string { return s.path }

// Size returns the mapped length.
func (s *Segment) Size() int { return len(s.data) }

// Bytes returns the mapped memory.
func (s *Segment) Bytes() []byte { return s.data }

// Close unmaps the segment. The segment file and the lock word in it are
// left untouched. Close is idempotent.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := unmap(s.data); err != nil {
		return errors.Wrapf(err, "unmap %s", s.path)
	}
	s.closed = true
	klog.V(2).Infof("unmapped segment %s", s.path)
	return nil
}

// Remove unlinks the segment called name. Processes that still map it keep
// their mapping.
func Remove(name string, opts ...Option) error {
	path, err := Path(name, opts...)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotExist, "remove %s", path)
		}
		return errors.Wrapf(err, "remove %s", path)
	}
	klog.Infof("removed segment %s", path)
	return nil
}

// OpenWait opens the segment called name, retrying while it does not exist
// yet or is still being sized by its creator, for at most timeout. A zero
// timeout retries forever.
func OpenWait(name string, timeout time.Duration, opts ...Option) (*Segment, error) {
	var seg *Segment
	err := retry.Local(func() error {
		s, err := Open(name, opts...)
		if err == nil {
			seg = s
			return nil
		}
		if errors.Is(err, ErrNotExist) || errors.Is(err, ErrTooSmall) {
			return err
		}
		return retry.Permanent(err)
	}, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "waiting for segment %q", name)
	}
	return seg, nil
}
