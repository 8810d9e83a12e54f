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

package shm

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/futex"
	"k8s.io/shmfutex/pkg/util/lock"
)

// Create opens the segment called name, creating, sizing and seeding it
// first if it does not exist. Seeding stores Unlocked into the lock word and
// happens only for the process that created the file; creation is serialized
// across processes so no participant maps a segment before it is sized.
func Create(name string, opts ...Option) (*Segment, error) {
	o := newOptions(opts)
	path, err := o.path(name)
	if err != nil {
		return nil, err
	}

	var seg *Segment
	err = lock.WithLock(path, o.lockTimeout, func() error {
		created := true
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, o.mode)
		if os.IsExist(err) {
			created = false
			f, err = os.OpenFile(path, os.O_RDWR, 0)
		}
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()

		if created {
			if err := f.Truncate(int64(o.size)); err != nil {
				os.Remove(path)
				return errors.Wrapf(err, "truncate %s to %d bytes", path, o.size)
			}
		}
		seg, err = mapFile(name, path, f)
		if err != nil {
			if created {
				os.Remove(path)
			}
			return err
		}
		if created {
			seg.Mutex().SetValue(uint32(futex.Unlocked))
			klog.Infof("created segment %s (%d bytes)", path, seg.Size())
		} else {
			klog.Infof("segment %s already exists, opened it", path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create segment %q", name)
	}
	return seg, nil
}

// Open maps the existing segment called name.
func Open(name string, opts ...Option) (*Segment, error) {
	o := newOptions(opts)
	path, err := o.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotExist, "open %s", path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	seg, err := mapFile(name, path, f)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("opened segment %s (%d bytes)", path, seg.Size())
	return seg, nil
}

func mapFile(name, path string, f *os.File) (*Segment, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if fi.Size() < LayoutSize {
		return nil, errors.Wrapf(ErrTooSmall, "%s is %d bytes, need %d", path, fi.Size(), LayoutSize)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	return &Segment{name: name, path: path, data: data}, nil
}

func unmap(data []byte) error {
	return unix.Munmap(data)
}
